// Package session keeps one browser session alive and mirrors its cookies and
// localStorage into the record store.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/chrome-keepalive/internal/browser"
	"github.com/shehryarbajwa/chrome-keepalive/internal/localstorage"
	"github.com/shehryarbajwa/chrome-keepalive/internal/records"
	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

// Operation names used in status and logs
const (
	OpLoadCookies      = "load_cookies"
	OpSaveCookies      = "save_cookies"
	OpLoadLocalStorage = "load_localstorage"
	OpSaveLocalStorage = "save_localstorage"
)

// Browser is what the manager needs from a launched browser
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Cookies(ctx context.Context) ([]models.Cookie, error)
	AddCookie(ctx context.Context, c models.Cookie) error
	Eval(ctx context.Context, out any, js string, args ...any) error
	ControlURL() string
	Close(ctx context.Context) error
}

// LaunchFunc starts a browser with the given options
type LaunchFunc func(ctx context.Context, opts browser.Options) (Browser, error)

// Config is the part of the process configuration the manager uses
type Config struct {
	SinglePage   string
	LandingPage  string
	SaveInterval time.Duration
	BrowserMode  string
	BrowserBin   string
	BrowserURL   string
	BrowserImage string
	Headless     bool
}

type saveRequest struct {
	done chan error
}

// Manager owns the browser session and its synchronization with the store
type Manager struct {
	cfg    Config
	launch LaunchFunc
	repo   *records.Repository
	clock  Clock
	out    io.Writer
	logger *zap.Logger

	browser Browser
	storage *localstorage.Storage

	saves   chan saveRequest
	stopped chan struct{}

	mu     sync.RWMutex
	status models.Session
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock replaces the wall clock that paces the save loop
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithOutput sets where progress lines are printed
func WithOutput(w io.Writer) Option {
	return func(m *Manager) { m.out = w }
}

// WithLogger sets the structured logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a session manager
func NewManager(cfg Config, launch LaunchFunc, repo *records.Repository, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		launch:  launch,
		repo:    repo,
		clock:   SystemClock{},
		out:     io.Discard,
		logger:  zap.NewNop(),
		saves:   make(chan saveRequest),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.status = models.Session{
		ID:           uuid.New().String(),
		Status:       models.StatusStarting,
		SinglePage:   cfg.SinglePage,
		LandingPage:  cfg.LandingPage,
		SaveInterval: cfg.SaveInterval.String(),
		Operations:   make(map[string]models.Outcome),
	}
	return m
}

// SinglePage reports whether a single-page target is configured
func (m *Manager) SinglePage() bool {
	return m.cfg.SinglePage != ""
}

// LaunchOptions returns the browser options derived from the configuration
func (m *Manager) LaunchOptions() browser.Options {
	return browser.Options{
		Mode:       m.cfg.BrowserMode,
		Bin:        m.cfg.BrowserBin,
		ControlURL: m.cfg.BrowserURL,
		Image:      m.cfg.BrowserImage,
		Homepage:   m.cfg.LandingPage,
		Kiosk:      m.SinglePage(),
		Headless:   m.cfg.Headless,
		SessionID:  m.status.ID,
	}
}

// Start launches the browser and restores any persisted state
func (m *Manager) Start(ctx context.Context) error {
	b, err := m.launch(ctx, m.LaunchOptions())
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	m.browser = b
	m.storage = localstorage.New(b)

	m.mu.Lock()
	m.status.StartedAt = m.clock.Now()
	m.status.ConnectURL = b.ControlURL()
	m.mu.Unlock()

	// localStorage is scoped to the loaded page, so the target must be open first
	if m.SinglePage() {
		if err := b.Navigate(ctx, m.cfg.SinglePage); err != nil {
			return err
		}
	}

	hasCookies, err := m.repo.HasCookies(ctx)
	if err != nil {
		m.logger.Warn("Failed to check for saved cookies", zap.Error(err))
	}
	if hasCookies {
		m.printf("Found some cookies to restore!\n")
		m.LoadCookies(ctx)
	}

	if m.SinglePage() {
		hasStorage, err := m.repo.HasStorage(ctx)
		if err != nil {
			m.logger.Warn("Failed to check for saved localStorage", zap.Error(err))
		}
		if hasStorage {
			m.printf("Found some LocalStorage data to restore!\n")
			m.LoadLocalStorage(ctx)
		}
	}

	if !m.SinglePage() {
		if err := b.Navigate(ctx, m.cfg.LandingPage); err != nil {
			return err
		}
	}

	m.setStatus(models.StatusRunning)
	m.printf("Done loading! Stop the process to save cookies.\n")
	return nil
}

// LoadCookies adds every saved cookie to the current page in index order.
// The first failure abandons the rest.
func (m *Manager) LoadCookies(ctx context.Context) error {
	m.printf("Loading cookies...")

	n, err := m.repo.EachCookie(ctx, func(c models.Cookie) error {
		return fromBrowser(m.browser.AddCookie(ctx, c))
	})
	return m.finish(OpLoadCookies, n, err)
}

// SaveCookies replaces the saved cookies with the browser's current ones
func (m *Manager) SaveCookies(ctx context.Context) error {
	m.printf("Saving cookies...")

	cookies, err := m.browser.Cookies(ctx)
	if err != nil {
		return m.finish(OpSaveCookies, 0, fromBrowser(err))
	}

	err = m.repo.ReplaceCookies(ctx, cookies)
	return m.finish(OpSaveCookies, len(cookies), err)
}

// LoadLocalStorage writes every saved storage entry into the page.
// It panics with ErrSinglePageRequired when no single-page target is configured.
func (m *Manager) LoadLocalStorage(ctx context.Context) error {
	m.printf("Loading LocalStorage...")
	if !m.SinglePage() {
		m.printf("fail\n")
		panic(ErrSinglePageRequired)
	}

	entries, err := m.repo.StorageEntries(ctx)
	if err != nil {
		return m.finish(OpLoadLocalStorage, 0, err)
	}

	for i, e := range entries {
		if err := m.storage.Set(ctx, e.Key, e.Value); err != nil {
			return m.finish(OpLoadLocalStorage, i, fromBrowser(err))
		}
	}
	return m.finish(OpLoadLocalStorage, len(entries), nil)
}

// SaveLocalStorage upserts every page storage entry into the store
func (m *Manager) SaveLocalStorage(ctx context.Context) error {
	m.printf("Saving LocalStorage...")

	items, err := m.storage.Items(ctx)
	if err != nil {
		return m.finish(OpSaveLocalStorage, 0, fromBrowser(err))
	}

	saved := 0
	var skipped []string
	for k, v := range items {
		ok, err := m.repo.UpsertStorage(ctx, k, v)
		if err != nil {
			return m.finish(OpSaveLocalStorage, saved, err)
		}
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		saved++
	}

	if len(skipped) > 0 {
		m.logger.Debug("Skipped localStorage keys the key scheme cannot store", zap.Strings("keys", skipped))
	}
	return m.finish(OpSaveLocalStorage, saved, nil)
}

// Save runs one save cycle: cookies, then localStorage in single-page mode
func (m *Manager) Save(ctx context.Context) error {
	errs := []error{m.SaveCookies(ctx)}
	if m.SinglePage() {
		errs = append(errs, m.SaveLocalStorage(ctx))
	}

	m.mu.Lock()
	m.status.Cycles++
	m.mu.Unlock()

	return errors.Join(errs...)
}

// Run saves on every tick until ctx is cancelled, then saves once more and
// closes the browser.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.stopped)

	ticker := m.clock.NewTicker(m.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.shutdown(context.WithoutCancel(ctx))
		case <-ticker.C():
			m.Save(ctx)
		case req := <-m.saves:
			req.done <- m.Save(ctx)
		}
	}
}

// SaveNow asks the running loop for an immediate save cycle and waits for it
func (m *Manager) SaveNow(ctx context.Context) error {
	req := saveRequest{done: make(chan error, 1)}

	select {
	case m.saves <- req:
	case <-m.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the session
func (m *Manager) Status() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.status
	s.Operations = make(map[string]models.Outcome, len(m.status.Operations))
	for k, v := range m.status.Operations {
		s.Operations[k] = v
	}
	return s
}

// ControlURL returns the DevTools websocket of the running browser
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.ConnectURL
}

// Records exposes the record repository the session saves into
func (m *Manager) Records() *records.Repository {
	return m.repo
}

// Close releases the browser without saving. Run does this itself on shutdown.
func (m *Manager) Close(ctx context.Context) error {
	if m.browser == nil {
		return nil
	}
	return m.browser.Close(ctx)
}

func (m *Manager) shutdown(ctx context.Context) error {
	m.setStatus(models.StatusStopping)
	m.printf("Received an interrupt! Shutting down...\n")

	saveErr := m.Save(ctx)

	closeErr := m.Close(ctx)
	if closeErr != nil {
		m.logger.Error("Failed to close browser", zap.Error(closeErr))
	}

	m.setStatus(models.StatusStopped)
	if saveErr != nil {
		m.logger.Warn("Final save incomplete", zap.Error(saveErr))
	}
	return closeErr
}

// finish prints the outcome of op, logs failures and records them in the status
func (m *Manager) finish(op string, count int, err error) error {
	outcome := models.Outcome{At: m.clock.Now(), OK: err == nil, Count: count}

	var opErr *OpError
	if err != nil {
		opErr = newOpError(op, err)
		outcome.Error = opErr.Error()
		m.printf("fail\n")
		m.logger.Warn("Operation failed",
			zap.String("op", op),
			zap.String("kind", opErr.Kind.String()),
			zap.Int("count", count),
			zap.Error(err),
		)
	} else {
		m.printf("done\n")
		m.logger.Debug("Operation complete", zap.String("op", op), zap.Int("count", count))
	}

	m.mu.Lock()
	m.status.Operations[op] = outcome
	m.mu.Unlock()

	if opErr == nil {
		return nil
	}
	return opErr
}

func (m *Manager) setStatus(s models.SessionStatus) {
	m.mu.Lock()
	m.status.Status = s
	m.mu.Unlock()
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}
