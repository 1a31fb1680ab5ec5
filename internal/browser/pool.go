package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const browserlessPort = "3000/tcp"

// Instance is a browser running in a container
type Instance struct {
	ContainerID string
	SessionID   string
	ConnectURL  string
	Port        string
}

// Pool launches browsers as browserless/chrome containers
type Pool struct {
	client client.APIClient
	image  string
	// readyURL formats the readiness probe for a host port.
	readyURL func(port string) string
}

func NewPool(imageRef string) (*Pool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Pool{
		client: cli,
		image:  imageRef,
		readyURL: func(port string) string {
			return fmt.Sprintf("http://localhost:%s/json/version", port)
		},
	}, nil
}

func (p *Pool) LaunchBrowser(ctx context.Context, sessionID string) (*Instance, error) {
	containerConfig := &container.Config{
		Image: p.image,
		Labels: map[string]string{
			"session-id": sessionID,
			"managed-by": "chrome-keepalive",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",        // the session lives as long as the process
			"MAX_CONCURRENT_SESSIONS=1",    // one keepalive per container
			"PREBOOT_CHROME=true",          // faster first connect
			"KEEP_ALIVE=true",              // keep chrome up between connections
			"EXIT_ON_HEALTH_FAILURE=false", // never drop the logged-in session
		},
		ExposedPorts: nat.PortSet{
			browserlessPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			browserlessPort: []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
	}

	resp, err := p.client.ContainerCreate(
		ctx,
		containerConfig,
		hostConfig,
		nil,
		nil,
		containerName(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	// a failed launch must not leave the container running
	launched := false
	defer func() {
		if !launched {
			p.removeContainer(ctx, resp.ID)
		}
	}()

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	var bindings []nat.PortBinding
	if inspect.NetworkSettings != nil {
		bindings = inspect.NetworkSettings.Ports[browserlessPort]
	}
	if len(bindings) == 0 {
		return nil, fmt.Errorf("container %s exposes no browser port", shortID(resp.ID))
	}
	port := bindings[0].HostPort

	if err := p.waitForBrowserReady(ctx, port); err != nil {
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	launched = true
	return &Instance{
		ContainerID: resp.ID,
		SessionID:   sessionID,
		ConnectURL:  fmt.Sprintf("ws://localhost:%s", port),
		Port:        port,
	}, nil
}

func (p *Pool) StopBrowser(ctx context.Context, containerID string) error {
	timeout := 10
	stopOptions := container.StopOptions{
		Timeout: &timeout,
	}

	if err := p.client.ContainerStop(ctx, containerID, stopOptions); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// removeContainer force-removes a container that never became usable. It runs
// even when ctx is already cancelled.
func (p *Pool) removeContainer(ctx context.Context, containerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_ = p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (p *Pool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.image {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *Pool) Close() error {
	return p.client.Close()
}

// waitForBrowserReady polls the /json/version endpoint until the browser answers
func (p *Pool) waitForBrowserReady(ctx context.Context, port string) error {
	url := p.readyURL(port)
	maxRetries := 20 // 10 seconds total (20 * 500ms)

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				// the websocket lags the HTTP endpoint slightly
				time.Sleep(500 * time.Millisecond)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func containerName(sessionID string) string {
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	return fmt.Sprintf("keepalive-%s", sessionID)
}
