// Package browser drives Chrome through the DevTools protocol using go-rod.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

// Session is one connected browser with the single page the keepalive drives
type Session struct {
	browser    *rod.Browser
	page       *rod.Page
	controlURL string
	release    func(ctx context.Context) error
	logger     *zap.Logger
}

// Launch starts or attaches to a browser according to opts
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		controlURL string
		release    = func(context.Context) error { return nil }
	)

	switch opts.Mode {
	case ModeLocal, "":
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		} else if path, has := launcher.LookPath(); has {
			l = l.Bin(path)
		}
		for name, values := range opts.Flags() {
			l = l.Set(name, values...)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		release = func(context.Context) error {
			l.Kill()
			l.Cleanup()
			return nil
		}

	case ModeDocker:
		pool, err := NewPool(opts.Image)
		if err != nil {
			return nil, err
		}
		if err := pool.EnsureImage(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure image: %w", err)
		}
		instance, err := pool.LaunchBrowser(ctx, opts.SessionID)
		if err != nil {
			pool.Close()
			return nil, err
		}
		controlURL = withLaunchArgs(instance.ConnectURL, opts.Args())
		release = func(ctx context.Context) error {
			defer pool.Close()
			return pool.StopBrowser(ctx, instance.ContainerID)
		}

	case ModeRemote:
		if opts.ControlURL == "" {
			return nil, fmt.Errorf("remote mode requires a control url")
		}
		controlURL = opts.ControlURL

	default:
		return nil, fmt.Errorf("unsupported browser mode: %s", opts.Mode)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		_ = release(ctx)
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := firstPage(b)
	if err != nil {
		_ = b.Close()
		_ = release(ctx)
		return nil, err
	}

	logger.Info("Browser connected",
		zap.String("mode", opts.Mode),
		zap.Strings("args", opts.Args()),
	)

	return &Session{
		browser:    b,
		page:       page,
		controlURL: controlURL,
		release:    release,
		logger:     logger,
	}, nil
}

func firstPage(b *rod.Browser) (*rod.Page, error) {
	pages, err := b.Pages()
	if err == nil && len(pages) > 0 {
		return pages.First(), nil
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return page, nil
}

// ControlURL returns the DevTools websocket URL of the browser
func (s *Session) ControlURL() string {
	return s.controlURL
}

// Navigate loads url in the session page and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// Cookies returns the cookies visible to the current page
func (s *Session) Cookies(ctx context.Context) ([]models.Cookie, error) {
	cookies, err := s.page.Context(ctx).Cookies([]string{})
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}

	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, fromProto(c))
	}
	return out, nil
}

// AddCookie sets one cookie. Cookies without a domain are scoped to the current page.
func (s *Session) AddCookie(ctx context.Context, c models.Cookie) error {
	page := s.page.Context(ctx)
	param := toProto(c)

	if param.Domain == "" {
		info, err := page.Info()
		if err != nil {
			return fmt.Errorf("failed to get page info: %w", err)
		}
		param.URL = info.URL
	}

	if err := page.SetCookies([]*proto.NetworkCookieParam{param}); err != nil {
		return fmt.Errorf("failed to add cookie %s: %w", c.Name, err)
	}
	return nil
}

// Eval runs a JavaScript function in the page and decodes its result into out
func (s *Session) Eval(ctx context.Context, out any, js string, args ...any) error {
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	if out == nil {
		return nil
	}

	data, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal script result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

// Close closes the browser and releases whatever launched it
func (s *Session) Close(ctx context.Context) error {
	closeErr := s.browser.Close()
	if err := s.release(ctx); err != nil {
		return fmt.Errorf("failed to release browser: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close browser: %w", closeErr)
	}

	s.logger.Info("Browser closed")
	return nil
}

func fromProto(c *proto.NetworkCookie) models.Cookie {
	cookie := models.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: models.SameSite(c.SameSite),
	}
	if !c.Session && c.Expires > 0 {
		cookie.Expiry = float64(c.Expires)
	}
	return cookie
}

func toProto(c models.Cookie) *proto.NetworkCookieParam {
	return &proto.NetworkCookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: proto.NetworkCookieSameSite(c.SameSite),
		Expires:  proto.TimeSinceEpoch(c.Expiry),
	}
}
