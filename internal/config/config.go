package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the rollcall client.
type Config struct {
	AppName         string
	AppEnv          string
	BaseURL         string
	RequestTimeout  time.Duration
	RefreshTimeout  time.Duration
	CredentialsPath string
	LogLevel        string
}

// APIURL joins the configured base URL with a relative endpoint path.
func (c Config) APIURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ROLLCALL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "rollcall")
	v.SetDefault("app.env", "development")
	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("refresh_timeout", "10s")
	v.SetDefault("log.level", "info")

	requestTimeout, err := time.ParseDuration(v.GetString("request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid request timeout: %w", err)
	}

	refreshTimeout, err := time.ParseDuration(v.GetString("refresh_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid refresh timeout: %w", err)
	}

	credentialsPath := v.GetString("credentials_path")
	if credentialsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		credentialsPath = filepath.Join(home, ".rollcall", "credentials.json")
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		BaseURL:         v.GetString("api.base_url"),
		RequestTimeout:  requestTimeout,
		RefreshTimeout:  refreshTimeout,
		CredentialsPath: credentialsPath,
		LogLevel:        v.GetString("log.level"),
	}

	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("api base url must be provided")
	}

	return cfg, nil
}
