package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/chrome-keepalive/internal/api"
	"github.com/shehryarbajwa/chrome-keepalive/internal/browser"
	"github.com/shehryarbajwa/chrome-keepalive/internal/config"
	"github.com/shehryarbajwa/chrome-keepalive/internal/kv"
	"github.com/shehryarbajwa/chrome-keepalive/internal/proxy"
	"github.com/shehryarbajwa/chrome-keepalive/internal/ratelimit"
	"github.com/shehryarbajwa/chrome-keepalive/internal/records"
	"github.com/shehryarbajwa/chrome-keepalive/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Keepalive stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level == "debug" {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	fmt.Println("Starting chrome-keepalive...")

	store, err := kv.Open(cfg.StoreDriver, cfg.StoreURL, cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	scheme, ok := records.SchemeByName(cfg.KeyScheme)
	if !ok {
		return fmt.Errorf("unsupported key scheme: %s", cfg.KeyScheme)
	}
	repo := records.NewRepository(store, scheme)
	logger.Info("Store opened", zap.String("driver", cfg.StoreDriver), zap.String("scheme", cfg.KeyScheme))
	if cfg.IsSinglePage() {
		logger.Info("Single-page mode", zap.String("target", cfg.SinglePage))
	}

	launch := func(ctx context.Context, opts browser.Options) (session.Browser, error) {
		b, err := browser.Launch(ctx, opts, logger.Named("browser"))
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	mgr := session.NewManager(session.Config{
		SinglePage:   cfg.SinglePage,
		LandingPage:  cfg.LandingPage,
		SaveInterval: cfg.SaveInterval,
		BrowserMode:  cfg.BrowserMode,
		BrowserBin:   cfg.BrowserBin,
		BrowserURL:   cfg.BrowserURL,
		BrowserImage: cfg.BrowserImage,
		Headless:     cfg.Headless,
	}, launch, repo,
		session.WithOutput(os.Stdout),
		session.WithLogger(logger.Named("session")),
	)

	ctx, stop := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Start(ctx); err != nil {
		if closeErr := mgr.Close(context.Background()); closeErr != nil {
			logger.Warn("Failed to close browser", zap.Error(closeErr))
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mgr.Run(gctx)
	})

	if cfg.APIAddr != "" {
		srv := newAPIServer(cfg, mgr, logger.Named("api"))
		g.Go(func() error {
			logger.Info("Control API listening", zap.String("addr", cfg.APIAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// notifyContext is cancelled by the first of sigs. Signal handling is released
// at that point, so a second signal during the final save kills the process.
func notifyContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func newAPIServer(cfg config.Config, mgr *session.Manager, logger *zap.Logger) *http.Server {
	handler := api.NewHandler(mgr, logger)
	recordHandler := api.NewRecordHandler(mgr.Records())
	proxyServer := proxy.NewServer(mgr, logger.Named("proxy"))
	rateLimiter := ratelimit.NewLimiter(cfg.APIRatePerHour, cfg.APIBurst)

	return &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      handler.SetupRoutes(recordHandler, proxyServer, rateLimiter, cfg.APIRatePerHour),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // debug websocket connections are long lived
		IdleTimeout:  60 * time.Second,
	}
}
