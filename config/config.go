// Package config loads and persists the YAML application configuration:
// remote backend selection, chat model defaults, chunking defaults, and
// upload polling cadence.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RemoteConfig selects and configures the remote backend.
type RemoteConfig struct {
	Backend     string `yaml:"backend"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// ChatConfig configures grounded chat defaults.
type ChatConfig struct {
	Model  string   `yaml:"model"`
	Models []string `yaml:"models,omitempty"`
}

// ChunkingConfig holds document chunking defaults applied when an upload
// request leaves them unset.
type ChunkingConfig struct {
	MaxTokensPerChunk int `yaml:"max_tokens_per_chunk"`
	OverlapTokens     int `yaml:"overlap_tokens"`
}

// PollConfig configures upload status polling.
type PollConfig struct {
	IntervalSecs int `yaml:"interval_secs"`
	TimeoutSecs  int `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Chat     ChatConfig     `yaml:"chat"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Poll     PollConfig     `yaml:"poll"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/filesearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/filesearch/config.yaml
// and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "filesearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Remote: RemoteConfig{
			Backend:     "gemini",
			APIKeyEnv:   "GEMINI_API_KEY",
			TimeoutSecs: 60,
			MaxRetries:  3,
		},
		Chat: ChatConfig{
			Model:  "gemini-2.5-flash",
			Models: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		},
		Chunking: ChunkingConfig{MaxTokensPerChunk: 200, OverlapTokens: 20},
		Poll:     PollConfig{IntervalSecs: 2, TimeoutSecs: 300},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Remote.Backend == "" {
		cfg.Remote.Backend = "gemini"
	}
	if cfg.Remote.APIKeyEnv == "" {
		switch cfg.Remote.Backend {
		case "openai":
			cfg.Remote.APIKeyEnv = "OPENAI_API_KEY"
		default:
			cfg.Remote.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Remote.TimeoutSecs == 0 {
		cfg.Remote.TimeoutSecs = 60
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gemini-2.5-flash"
	}
	if cfg.Chunking.MaxTokensPerChunk == 0 {
		cfg.Chunking.MaxTokensPerChunk = 200
	}
	if cfg.Chunking.OverlapTokens == 0 {
		cfg.Chunking.OverlapTokens = 20
	}
	if cfg.Poll.IntervalSecs == 0 {
		cfg.Poll.IntervalSecs = 2
	}
	if cfg.Poll.TimeoutSecs == 0 {
		cfg.Poll.TimeoutSecs = 300
	}
}
