package browser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-rod/rod/lib/launcher/flags"
)

// Modes
const (
	ModeLocal  = "local"
	ModeDocker = "docker"
	ModeRemote = "remote"
)

const (
	flagNoSandbox      flags.Flag = "no-sandbox"
	flagDisableDevShm  flags.Flag = "disable-dev-shm-usage"
	flagHomepage       flags.Flag = "homepage"
	flagKiosk          flags.Flag = "kiosk"
	flagStartMaximized flags.Flag = "start-maximized"
)

// Options describes how to obtain the browser
type Options struct {
	Mode string
	// Bin overrides the Chrome binary in local mode.
	Bin string
	// ControlURL is the DevTools websocket of an already running browser (remote mode).
	ControlURL string
	// Image is the container image in docker mode.
	Image    string
	Homepage string
	// Kiosk selects fullscreen kiosk presentation; otherwise the window is maximized.
	Kiosk     bool
	Headless  bool
	SessionID string
}

// Flags returns the Chrome switches for these options
func (o Options) Flags() map[flags.Flag][]string {
	f := map[flags.Flag][]string{
		flagNoSandbox:     nil,
		flagDisableDevShm: nil,
	}
	if o.Homepage != "" {
		f[flagHomepage] = []string{o.Homepage}
	}
	if o.Kiosk {
		f[flagKiosk] = nil
	} else {
		f[flagStartMaximized] = nil
	}
	return f
}

// Args renders Flags as command line switches in a stable order
func (o Options) Args() []string {
	var args []string
	for name, values := range o.Flags() {
		if len(values) == 0 {
			args = append(args, "--"+string(name))
			continue
		}
		args = append(args, fmt.Sprintf("--%s=%s", name, strings.Join(values, ",")))
	}
	sort.Strings(args)
	return args
}

// withLaunchArgs appends Chrome switches to a browserless websocket URL
func withLaunchArgs(connectURL string, args []string) string {
	if len(args) == 0 {
		return connectURL
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = url.QueryEscape(a)
	}
	sep := "?"
	if strings.Contains(connectURL, "?") {
		sep = "&"
	}
	return connectURL + sep + strings.Join(parts, "&")
}
