package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int      `mapstructure:"RATE_LIMIT_BURST"`
	EmailRelayURL     string   `mapstructure:"EMAIL_RELAY_URL"`
	EmailFrom         string   `mapstructure:"EMAIL_FROM"`
	EmailRelayTimeout int      `mapstructure:"EMAIL_RELAY_TIMEOUT"` // seconds
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("EMAIL_FROM", "alerts@heartwatch.local")
	v.SetDefault("EMAIL_RELAY_TIMEOUT", 10)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("EMAIL_RELAY_URL")
	v.BindEnv("EMAIL_FROM")
	v.BindEnv("EMAIL_RELAY_TIMEOUT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RelayTimeout returns the sink HTTP timeout as a duration.
func (c *Config) RelayTimeout() time.Duration {
	return time.Duration(c.EmailRelayTimeout) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// the email-relay endpoint must be configured so tachycardia alerts have a
// real delivery path; development falls back to a logging sink.
func (c *Config) Validate() error {
	if !c.IsDev() && c.EmailRelayURL == "" {
		return fmt.Errorf("EMAIL_RELAY_URL is required when ENV=%q", c.Env)
	}
	if c.EmailRelayTimeout <= 0 {
		return fmt.Errorf("EMAIL_RELAY_TIMEOUT must be positive, got %d", c.EmailRelayTimeout)
	}
	if c.EmailRelayURL != "" && !strings.HasPrefix(c.EmailRelayURL, "http://") && !strings.HasPrefix(c.EmailRelayURL, "https://") {
		return fmt.Errorf("EMAIL_RELAY_URL must be an http(s) URL, got %q", c.EmailRelayURL)
	}
	return nil
}
