package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultLandingPage  = "https://uulanding.vercel.app/"
	DefaultSaveInterval = 60 * time.Second
	DefaultStorePath    = "./storage/keepalive.db"
	DefaultBrowserImage = "browserless/chrome:latest"
)

// Store drivers
const (
	StoreReplit = "replit"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Key schemes
const (
	SchemePrefixed = "prefixed"
	SchemeLegacy   = "legacy"
)

// Browser modes
const (
	BrowserLocal  = "local"
	BrowserDocker = "docker"
	BrowserRemote = "remote"
)

// Config holds everything the keepalive process needs to run
type Config struct {
	// SinglePage enables kiosk mode and localStorage persistence when set.
	SinglePage   string
	LandingPage  string
	SaveInterval time.Duration

	StoreDriver string
	StoreURL    string
	StorePath   string
	KeyScheme   string

	BrowserMode  string
	BrowserBin   string
	BrowserURL   string
	BrowserImage string
	Headless     bool

	APIAddr        string
	APIRatePerHour int
	APIBurst       int

	LogLevel string
}

// Default returns the configuration the original tool ran with
func Default() Config {
	return Config{
		LandingPage:    DefaultLandingPage,
		SaveInterval:   DefaultSaveInterval,
		StoreDriver:    StoreSQLite,
		StorePath:      DefaultStorePath,
		KeyScheme:      SchemePrefixed,
		BrowserMode:    BrowserLocal,
		BrowserImage:   DefaultBrowserImage,
		APIRatePerHour: 600,
		APIBurst:       10,
		LogLevel:       "info",
	}
}

// Load reads an optional .env file and then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, starting from Default
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("SINGLE_PAGE"); v != "" {
		cfg.SinglePage = v
	}
	if v := getenv("LANDING_PAGE"); v != "" {
		cfg.LandingPage = v
	}
	if v := getenv("SAVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SAVE_INTERVAL %q: %w", v, err)
		}
		cfg.SaveInterval = d
	}

	cfg.StoreURL = getenv("REPLIT_DB_URL")
	if cfg.StoreURL != "" {
		cfg.StoreDriver = StoreReplit
	}
	if v := getenv("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}
	if v := getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := getenv("KEY_SCHEME"); v != "" {
		cfg.KeyScheme = v
	}

	if v := getenv("BROWSER_MODE"); v != "" {
		cfg.BrowserMode = v
	}
	cfg.BrowserBin = getenv("BROWSER_BIN")
	cfg.BrowserURL = getenv("BROWSER_URL")
	if v := getenv("BROWSER_IMAGE"); v != "" {
		cfg.BrowserImage = v
	}
	if v := getenv("HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid HEADLESS %q: %w", v, err)
		}
		cfg.Headless = b
	}

	cfg.APIAddr = getenv("API_ADDR")
	if v := getenv("API_RATE_PER_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid API_RATE_PER_HOUR %q: %w", v, err)
		}
		cfg.APIRatePerHour = n
	}
	if v := getenv("API_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid API_BURST %q: %w", v, err)
		}
		cfg.APIBurst = n
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, cfg.Validate()
}

// Validate checks enum values and ranges
func (c Config) Validate() error {
	if c.SaveInterval <= 0 {
		return fmt.Errorf("save interval must be positive, got %s", c.SaveInterval)
	}
	if c.LandingPage == "" {
		return fmt.Errorf("landing page is required")
	}

	switch c.StoreDriver {
	case StoreReplit:
		if c.StoreURL == "" {
			return fmt.Errorf("REPLIT_DB_URL is required for the %s store", StoreReplit)
		}
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("STORE_PATH is required for the %s store", StoreSQLite)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported store driver: %s", c.StoreDriver)
	}

	switch c.KeyScheme {
	case SchemePrefixed, SchemeLegacy:
	default:
		return fmt.Errorf("unsupported key scheme: %s", c.KeyScheme)
	}

	switch c.BrowserMode {
	case BrowserLocal, BrowserDocker:
	case BrowserRemote:
		if c.BrowserURL == "" {
			return fmt.Errorf("BROWSER_URL is required in %s mode", BrowserRemote)
		}
	default:
		return fmt.Errorf("unsupported browser mode: %s", c.BrowserMode)
	}

	if c.APIAddr != "" && (c.APIRatePerHour <= 0 || c.APIBurst <= 0) {
		return fmt.Errorf("api rate limit must be positive")
	}

	return nil
}

// IsSinglePage reports whether a single-page target is configured
func (c Config) IsSinglePage() bool {
	return c.SinglePage != ""
}
