// ABOUTME: Runtime configuration from environment and dotenv files
// ABOUTME: Resolves backend, bucket, logging and local path settings once at startup
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	env "github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// AppName names the local data directory and the charm KV database.
const AppName = "cardsync"

// DefaultCharmHost is the self-hosted 2389 research server.
const DefaultCharmHost = "charm.2389.dev"

// Backend choices.
const (
	BackendAuto     = "auto"
	BackendSheets   = "sheets"
	BackendSnapshot = "snapshot"
)

// Bucket choices.
const (
	BucketAuto   = "auto"
	BucketR2     = "r2"
	BucketCharm  = "charm"
	BucketBadger = "badger"
	BucketDir    = "dir"
)

// EnvFiles are loaded in order; values already in the environment win.
var EnvFiles = []string{".env.local", ".env"}

type GoogleConfig struct {
	SpreadsheetID       string `env:"GOOGLE_SPREADSHEET_ID"`
	ServiceAccountEmail string `env:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	PrivateKey          string `env:"GOOGLE_PRIVATE_KEY"`
	SheetName           string `env:"CARDSYNC_SHEET_NAME" envDefault:"Contacts"`

	// OAuth client for importing the user's own Google Contacts.
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8085/oauth/callback"`
}

// Complete reports whether every credential needed for Sheets is set.
func (g GoogleConfig) Complete() bool {
	return g.SpreadsheetID != "" && g.ServiceAccountEmail != "" && g.PrivateKey != ""
}

// OAuthComplete reports whether an OAuth client is configured.
func (g GoogleConfig) OAuthComplete() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type R2Config struct {
	AccountID       string `env:"R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	BucketName      string `env:"R2_BUCKET_NAME"`
	Endpoint        string `env:"R2_ENDPOINT"`
	PublicURL       string `env:"R2_PUBLIC_URL"`
}

// Complete reports whether every value needed for R2 is set.
func (r R2Config) Complete() bool {
	return (r.AccountID != "" || r.Endpoint != "") && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.BucketName != ""
}

type CharmConfig struct {
	Host     string `env:"CHARM_HOST" envDefault:"charm.2389.dev"`
	AutoSync bool   `env:"CARDSYNC_CHARM_AUTOSYNC" envDefault:"true"`
}

type WebConfig struct {
	Addr          string        `env:"CARDSYNC_WEB_ADDR" envDefault:"127.0.0.1:8080"`
	AdminPassword string        `env:"CARDSYNC_ADMIN_PASSWORD"`
	SessionSecret string        `env:"CARDSYNC_SESSION_SECRET"`
	SessionTTL    time.Duration `env:"CARDSYNC_SESSION_TTL" envDefault:"24h"`
	SecureCookie  bool          `env:"CARDSYNC_SECURE_COOKIE" envDefault:"false"`
}

type Config struct {
	Backend string `env:"CARDSYNC_BACKEND" envDefault:"auto"`
	Bucket  string `env:"CARDSYNC_BUCKET" envDefault:"auto"`

	Google GoogleConfig
	R2     R2Config
	Charm  CharmConfig
	Web    WebConfig

	DataDir    string        `env:"CARDSYNC_DATA_DIR"`
	ManifestDB string        `env:"CARDSYNC_MANIFEST_DB"`
	CacheTTL   time.Duration `env:"CARDSYNC_CACHE_TTL" envDefault:"30s"`
	TagsFile   string        `env:"CARDSYNC_TAGS_FILE"`

	ExtractorURL   string        `env:"CARDSYNC_EXTRACTOR_URL"`
	ExtractorToken string        `env:"CARDSYNC_EXTRACTOR_TOKEN"`
	HTTPTimeout    time.Duration `env:"CARDSYNC_HTTP_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"CARDSYNC_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CARDSYNC_LOG_FORMAT" envDefault:"console"`
}

// Load reads dotenv files (missing ones are skipped) and then the environment.
func Load() (*Config, error) {
	for _, f := range EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv parses the current environment without touching dotenv files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.Bucket = strings.ToLower(strings.TrimSpace(c.Bucket))
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.ManifestDB == "" {
		c.ManifestDB = filepath.Join(c.DataDir, "manifest.db")
	}
}

// Validate checks enum values and that an explicit choice has credentials.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendSnapshot:
	case BackendSheets:
		if !c.Google.Complete() {
			return fmt.Errorf("backend %q requires GOOGLE_SPREADSHEET_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	switch c.Bucket {
	case BucketAuto, BucketCharm, BucketBadger, BucketDir:
	case BucketR2:
		if !c.R2.Complete() {
			return fmt.Errorf("bucket %q requires R2 credentials and bucket name", c.Bucket)
		}
	default:
		return fmt.Errorf("unknown bucket %q", c.Bucket)
	}

	if c.Web.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}

// ResolvedBackend turns "auto" into a concrete backend.
func (c *Config) ResolvedBackend() string {
	if c.Backend != BackendAuto {
		return c.Backend
	}
	if c.Google.Complete() {
		return BackendSheets
	}
	return BackendSnapshot
}

// ResolvedBucket turns "auto" into a concrete bucket.
func (c *Config) ResolvedBucket() string {
	if c.Bucket != BucketAuto {
		return c.Bucket
	}
	if c.R2.Complete() {
		return BucketR2
	}
	return BucketDir
}

// BucketDir is where the directory bucket keeps its files.
func (c *Config) BucketDir() string {
	return filepath.Join(c.DataDir, "bucket")
}

// GoogleTokenPath is where the Google OAuth token is kept.
func (c *Config) GoogleTokenPath() string {
	return filepath.Join(c.DataDir, "google-credentials.json")
}

// BadgerDir is where the badger bucket keeps its database.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}

// DefaultDataDir is the XDG data directory for the app.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
