package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration.
type Config struct {
	Env       string
	Store     StoreConfig
	Documents DocumentsConfig
	Auth      AuthConfig
	Bootstrap BootstrapConfig
	Log       LogConfig
}

// StoreConfig selects and locates the snapshot backend.
type StoreConfig struct {
	Backend    string // "file" or "sqlite"
	Path       string // JSON document path for the file backend
	SQLitePath string // database path for the sqlite backend
	History    int    // superseded sqlite snapshots kept for recovery
}

// DocumentsConfig selects where uploaded documents live.
type DocumentsConfig struct {
	Backend string // "fs" or "s3"
	Dir     string // root directory for the fs backend
	S3      S3Config
}

// S3Config contains settings for any S3-compatible bucket.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

// AuthConfig contains credential and session settings.
type AuthConfig struct {
	SessionSecret string        // HS256 signing secret for session tokens
	SessionTTL    time.Duration // lifetime of an issued session token
	BcryptCost    int
}

// BootstrapConfig names the default admin created on first start.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	DocsFS        = "fs"
	DocsS3        = "s3"
)

var defaults = map[string]any{
	"INTAKE_ENV":         "development",
	"STORE_BACKEND":      BackendFile,
	"STORE_PATH":         "crm_data.json",
	"STORE_SQLITE_PATH":  "crm_data.db",
	"STORE_HISTORY":      10,
	"DOCS_BACKEND":       DocsFS,
	"DOCS_DIR":           "uploads",
	"DOCS_S3_BUCKET":     "",
	"DOCS_S3_REGION":     "us-east-1",
	"DOCS_S3_ENDPOINT":   "",
	"DOCS_S3_ACCESS_KEY": "",
	"DOCS_S3_SECRET_KEY": "",
	"DOCS_S3_PATH_STYLE": true,
	"DOCS_S3_PREFIX":     "documents/",
	"SESSION_SECRET":     "",
	"SESSION_TTL":        "12h",
	"BCRYPT_COST":        bcrypt.DefaultCost,
	"ADMIN_USERNAME":     "admin",
	"ADMIN_PASSWORD":     "",
	"LOG_LEVEL":          "info",
	"LOG_FORMAT":         "console",
	"LOG_OUTPUT":         "stderr",
}

// Load loads configuration from the environment (and a .env file when present).
// SESSION_SECRET and ADMIN_PASSWORD are required.
func Load() (*Config, error) {
	cfg, err := load(nil)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET environment variable is not set; required for production")
	}
	if cfg.Bootstrap.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses development defaults for secrets.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load(map[string]any{
		"SESSION_SECRET": "dev-secret-change-me",
		"ADMIN_PASSWORD": "admin123",
	})
}

func load(overrides map[string]any) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
		_ = v.BindEnv(key)
	}
	for key, val := range overrides {
		v.SetDefault(key, val)
	}

	cfg := &Config{
		Env: v.GetString("INTAKE_ENV"),
		Store: StoreConfig{
			Backend:    strings.ToLower(v.GetString("STORE_BACKEND")),
			Path:       v.GetString("STORE_PATH"),
			SQLitePath: v.GetString("STORE_SQLITE_PATH"),
			History:    v.GetInt("STORE_HISTORY"),
		},
		Documents: DocumentsConfig{
			Backend: strings.ToLower(v.GetString("DOCS_BACKEND")),
			Dir:     v.GetString("DOCS_DIR"),
			S3: S3Config{
				Bucket:       v.GetString("DOCS_S3_BUCKET"),
				Region:       v.GetString("DOCS_S3_REGION"),
				Endpoint:     v.GetString("DOCS_S3_ENDPOINT"),
				AccessKey:    v.GetString("DOCS_S3_ACCESS_KEY"),
				SecretKey:    v.GetString("DOCS_S3_SECRET_KEY"),
				UsePathStyle: v.GetBool("DOCS_S3_PATH_STYLE"),
				Prefix:       v.GetString("DOCS_S3_PREFIX"),
			},
		},
		Auth: AuthConfig{
			SessionSecret: v.GetString("SESSION_SECRET"),
			SessionTTL:    v.GetDuration("SESSION_TTL"),
			BcryptCost:    v.GetInt("BCRYPT_COST"),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: v.GetString("ADMIN_USERNAME"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("STORE_PATH must not be empty")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("STORE_SQLITE_PATH must not be empty")
		}
		if c.Store.History < 0 {
			return errors.New("STORE_HISTORY must not be negative")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want %q or %q)", c.Store.Backend, BackendFile, BackendSQLite)
	}
	switch c.Documents.Backend {
	case DocsFS:
		if c.Documents.Dir == "" {
			return errors.New("DOCS_DIR must not be empty")
		}
	case DocsS3:
		if c.Documents.S3.Bucket == "" {
			return errors.New("DOCS_S3_BUCKET is required for the s3 document backend")
		}
	default:
		return fmt.Errorf("unknown DOCS_BACKEND %q (want %q or %q)", c.Documents.Backend, DocsFS, DocsS3)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if strings.TrimSpace(c.Bootstrap.AdminUsername) == "" {
		return errors.New("ADMIN_USERNAME must not be empty")
	}
	return nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	storePath := c.Store.Path
	if c.Store.Backend == BackendSQLite {
		storePath = c.Store.SQLitePath
	}
	docs := c.Documents.Dir
	if c.Documents.Backend == DocsS3 {
		docs = "s3://" + c.Documents.S3.Bucket + "/" + c.Documents.S3.Prefix
	}
	return fmt.Sprintf("Config{Env: %s, Store: %s(%s), Docs: %s(%s), Admin: %s, Auth: *** (masked) ***}",
		c.Env, c.Store.Backend, storePath, c.Documents.Backend, docs, c.Bootstrap.AdminUsername)
}
