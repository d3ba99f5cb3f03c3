// Package config loads service configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the sync engine needs to talk to the provider.
type Config struct {
	// Meta/Instagram app credentials used for the OAuth code exchange.
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`

	// WebhookVerifyToken is echoed back during the GET verification handshake.
	WebhookVerifyToken string `yaml:"webhook_verify_token"`
	// WebhookSecret signs webhook POST bodies (X-Hub-Signature-256). Empty
	// disables signature verification (local development only).
	WebhookSecret string `yaml:"webhook_secret"`

	// BaseURL is the public application URL, used to construct the OAuth
	// redirect and webhook callback URLs.
	BaseURL string `yaml:"base_url"`

	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
}

// Load reads the config file (if any) and applies environment overrides.
// Missing file is not an error; env-only deployments are supported.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr: "127.0.0.1:8090",
		DBPath:     "socialsync.db",
	}

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return cfg, nil
}

// Validate reports the settings without which the provider integration cannot run.
func (c *Config) Validate() error {
	var missing []string
	if c.AppID == "" {
		missing = append(missing, "app_id")
	}
	if c.AppSecret == "" {
		missing = append(missing, "app_secret")
	}
	if c.WebhookVerifyToken == "" {
		missing = append(missing, "webhook_verify_token")
	}
	if c.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RedirectURL is the OAuth callback the provider redirects to.
func (c *Config) RedirectURL() string {
	return c.BaseURL + "/auth/instagram/callback"
}

// WebhookURL is the callback registered with the provider's webhook subscription.
func (c *Config) WebhookURL() string {
	return c.BaseURL + "/webhooks/instagram"
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"SOCIALSYNC_APP_ID":               &cfg.AppID,
		"SOCIALSYNC_APP_SECRET":           &cfg.AppSecret,
		"SOCIALSYNC_WEBHOOK_VERIFY_TOKEN": &cfg.WebhookVerifyToken,
		"SOCIALSYNC_WEBHOOK_SECRET":       &cfg.WebhookSecret,
		"SOCIALSYNC_BASE_URL":             &cfg.BaseURL,
		"SOCIALSYNC_LISTEN_ADDR":          &cfg.ListenAddr,
		"SOCIALSYNC_DB_PATH":              &cfg.DBPath,
	}
	for env, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("SOCIALSYNC_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/socialsync.yaml",
		"./socialsync.yaml",
		"/etc/socialsync/config.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, ".config", "socialsync", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}
