// Package config defines the central application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shared by the daemon and CLI.
type Config struct {
	Server   ServerConfig `json:"server" yaml:"server"`
	Auth     AuthConfig   `json:"auth" yaml:"auth"`
	Remote   RemoteConfig `json:"remote" yaml:"remote"`
	DataDir  string       `json:"data_dir" yaml:"data_dir"`
	LogLevel string       `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the centrald HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":9290"
}

// AuthConfig controls centrald authentication: the API access key used
// by sync clients and the admin login for JWT-issued dashboard tokens.
type AuthConfig struct {
	AccessKey string `json:"access_key" yaml:"access_key"`
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	AdminUser string `json:"admin_user" yaml:"admin_user"`
	AdminPass string `json:"admin_pass" yaml:"admin_pass"` // bcrypt hash
}

// RemoteConfig holds the client-side connection parameters for the
// remote strategy. Both values empty means local-only mode.
type RemoteConfig struct {
	URL string `json:"url" yaml:"url"`
	Key string `json:"key" yaml:"key"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":9290"},
		Auth:     AuthConfig{AdminUser: "admin"},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Conventional environment variable spellings for the remote endpoint
// and access key, tried in order. Deployments have accumulated several.
var (
	urlEnvVars = []string{"CENTRAL_SYNC_URL", "BPD_CLOUD_URL", "SYNC_ENDPOINT_URL"}
	keyEnvVars = []string{"CENTRAL_SYNC_KEY", "BPD_CLOUD_KEY", "SYNC_ACCESS_KEY"}
)

const credentialsFile = "credentials.yaml"

// ResolveRemote determines the remote connection parameters: a saved
// override in dataDir wins, then the environment variants. Missing
// values are returned empty; the caller treats that as local-only mode,
// never as an error.
func ResolveRemote(dataDir string, cfg RemoteConfig) RemoteConfig {
	if saved, err := loadSavedCredentials(dataDir); err == nil {
		if saved.URL != "" {
			cfg.URL = saved.URL
		}
		if saved.Key != "" {
			cfg.Key = saved.Key
		}
	}
	if cfg.URL == "" {
		cfg.URL = firstEnv(urlEnvVars)
	}
	if cfg.Key == "" {
		cfg.Key = firstEnv(keyEnvVars)
	}
	return cfg
}

// SaveRemote persists a credential override in dataDir so a pasted
// endpoint/key survives restarts.
func SaveRemote(dataDir string, cfg RemoteConfig) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	path := filepath.Join(dataDir, credentialsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials %s: %w", path, err)
	}
	return nil
}

func loadSavedCredentials(dataDir string) (RemoteConfig, error) {
	var cfg RemoteConfig
	data, err := os.ReadFile(filepath.Join(dataDir, credentialsFile))
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

func firstEnv(names []string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
