package app

import (
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the storefront configuration, loadable from environment
// variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	BaseURL   string        `default:"http://localhost:8000/api" usage:"REST API root" flag:"base-url"`
	StateDir  string        `usage:"Directory holding the saved session (default: user config dir)" flag:"state-dir"`
	Ephemeral bool          `default:"false" usage:"Keep the session in memory only"`
	Timeout   time.Duration `default:"30s" usage:"Timeout of a single API request"`
	UserAgent string        `default:"kart-storefront" usage:"User-Agent sent to the API" flag:"user-agent"`
}

// LoadConfig loads configuration from environment variables and YAML files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required: set STOREFRONT_BASE_URL")
	}
	return &cfg, nil
}
