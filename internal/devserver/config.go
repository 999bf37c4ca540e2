package devserver

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8000"

// Config holds the development backend configuration, loadable from
// environment variables (STOREFRONT_DEV_ prefix), flags, or YAML files.
type Config struct {
	Addr        string `default:"0.0.0.0:8000" usage:"Listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DEV_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	PathPrefix  string `default:"/api" usage:"URL prefix of the REST API" flag:"path-prefix"`
	PageSize    int    `default:"5" usage:"Orders per history page" flag:"page-size"`
	BcryptCost  int    `default:"10" usage:"bcrypt cost of new password hashes" flag:"bcrypt-cost"`
	Tokens      TokenConfig
	LoginLimit  LimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT_DEV",
		Files:     []string{"config.dev.yaml", "/etc/storefront/config.dev.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set STOREFRONT_DEV_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Tokens.Secret == "" {
		return nil, errors.New("token secret is required: set STOREFRONT_DEV_TOKENS_SECRET")
	}
	if err := cfg.LoginLimit.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL and PORT
// variables onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
