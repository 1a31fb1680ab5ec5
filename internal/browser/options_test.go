package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

func TestOptionsArgs_Maximized(t *testing.T) {
	opts := Options{Homepage: "https://uulanding.vercel.app/"}

	assert.Equal(t, []string{
		"--disable-dev-shm-usage",
		"--homepage=https://uulanding.vercel.app/",
		"--no-sandbox",
		"--start-maximized",
	}, opts.Args())
}

func TestOptionsArgs_Kiosk(t *testing.T) {
	opts := Options{Homepage: "https://example.com/", Kiosk: true}
	args := opts.Args()

	assert.Contains(t, args, "--kiosk")
	assert.NotContains(t, args, "--start-maximized")
	assert.Contains(t, args, "--no-sandbox")
}

func TestWithLaunchArgs(t *testing.T) {
	assert.Equal(t, "ws://localhost:3000", withLaunchArgs("ws://localhost:3000", nil))

	got := withLaunchArgs("ws://localhost:3000", []string{"--kiosk", "--homepage=https://a.b/"})
	assert.Equal(t, "ws://localhost:3000?--kiosk&--homepage%3Dhttps%3A%2F%2Fa.b%2F", got)

	got = withLaunchArgs("ws://localhost:3000?token=x", []string{"--kiosk"})
	assert.True(t, strings.HasSuffix(got, "?token=x&--kiosk"))
}

func TestCookieConversion(t *testing.T) {
	in := models.Cookie{
		Name:     "sid",
		Value:    "abc",
		Domain:   ".example.com",
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		SameSite: models.SameSiteLax,
		Expiry:   1900000000,
	}

	param := toProto(in)
	assert.Equal(t, proto.NetworkCookieSameSiteLax, param.SameSite)
	assert.Equal(t, proto.TimeSinceEpoch(1900000000), param.Expires)

	out := fromProto(&proto.NetworkCookie{
		Name:     param.Name,
		Value:    param.Value,
		Domain:   param.Domain,
		Path:     param.Path,
		Secure:   param.Secure,
		HTTPOnly: param.HTTPOnly,
		SameSite: param.SameSite,
		Expires:  param.Expires,
	})
	assert.Equal(t, in, out)
}

func TestCookieConversion_SessionCookie(t *testing.T) {
	out := fromProto(&proto.NetworkCookie{Name: "s", Expires: -1, Session: true})
	assert.Zero(t, out.Expiry)
}

func TestWaitForBrowserReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"Browser":"HeadlessChrome"}`))
	}))
	defer srv.Close()

	p := &Pool{readyURL: func(string) string { return srv.URL + "/json/version" }}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.waitForBrowserReady(ctx, "0"))
	assert.Equal(t, int32(2), hits.Load())
}

func TestContainerName(t *testing.T) {
	assert.Equal(t, "keepalive-0123abcd", containerName("0123abcd-ef45-6789"))
	assert.Equal(t, "keepalive-x", containerName("x"))
}
