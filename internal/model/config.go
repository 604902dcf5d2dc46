package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DefaultAPIKeyEnv is the environment variable consulted for the Gemini key.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"

// CapabilityTimeouts bounds each AI-backed call.
type CapabilityTimeouts struct {
	Relevance   time.Duration `mapstructure:"relevance" yaml:"relevance"`
	Welcome     time.Duration `mapstructure:"welcome" yaml:"welcome"`
	Summary     time.Duration `mapstructure:"summary" yaml:"summary"`
	Interests   time.Duration `mapstructure:"interests" yaml:"interests"`
	Ranking     time.Duration `mapstructure:"ranking" yaml:"ranking"`
	Exploration time.Duration `mapstructure:"exploration" yaml:"exploration"`
}

// AIConfig holds settings for the generative API orchestration.
type AIConfig struct {
	// Models are tried in order during optimistic initialization.
	Models []string `mapstructure:"models" yaml:"models"`

	// ProbeModels are tried with a real minimal request when no
	// optimistic candidate could be constructed.
	ProbeModels []string `mapstructure:"probe_models" yaml:"probe_models"`

	Temperature     float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	MaxRetries      int     `mapstructure:"max_retries" yaml:"max_retries"`

	StartDelay        time.Duration `mapstructure:"start_delay" yaml:"start_delay"`
	ProbeDelay        time.Duration `mapstructure:"probe_delay" yaml:"probe_delay"`
	QuotaDelay        time.Duration `mapstructure:"quota_delay" yaml:"quota_delay"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	ProbeBackoffBase  time.Duration `mapstructure:"probe_backoff_base" yaml:"probe_backoff_base"`
	ProbeBackoffCap   time.Duration `mapstructure:"probe_backoff_cap" yaml:"probe_backoff_cap"`
	ErrorBackoffBase  time.Duration `mapstructure:"error_backoff_base" yaml:"error_backoff_base"`
	ErrorBackoffCap   time.Duration `mapstructure:"error_backoff_cap" yaml:"error_backoff_cap"`
	ResurrectionDelay time.Duration `mapstructure:"resurrection_delay" yaml:"resurrection_delay"`
	ReinitDelay       time.Duration `mapstructure:"reinit_delay" yaml:"reinit_delay"`
	WelcomeInitWait   time.Duration `mapstructure:"welcome_init_wait" yaml:"welcome_init_wait"`

	Timeouts CapabilityTimeouts `mapstructure:"timeouts" yaml:"timeouts"`
}

// StorageConfig locates the local key/value database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CredentialConfig selects where the API key is persisted.
type CredentialConfig struct {
	// Backend is "keyring" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`

	// KeyringDir is the directory used by the file keyring fallback.
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`

	// EnvKey is populated from the environment at load time and never
	// written back to disk.
	EnvKey string `mapstructure:"api_key" yaml:"-" json:"-"`
}

// NetworkConfig controls connectivity monitoring.
type NetworkConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	ProbeURL     string        `mapstructure:"probe_url" yaml:"probe_url"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Credential CredentialConfig `mapstructure:"credential" yaml:"credential"`
	Network    NetworkConfig    `mapstructure:"network" yaml:"network"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// configDir returns ~/.config/smartonboard, or "." if home is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "smartonboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/smartonboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAIConfig returns the orchestration defaults.
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Models: []string{
			"gemini-2.0-flash",
			"gemini-1.5-flash",
			"gemini-1.5-pro",
			"models/gemini-2.0-flash",
			"models/gemini-1.5-flash",
		},
		ProbeModels:       []string{"gemini-2.0-flash-lite", "gemini-1.5-flash-8b"},
		Temperature:       0.7,
		MaxOutputTokens:   512,
		MaxRetries:        3,
		StartDelay:        500 * time.Millisecond,
		ProbeDelay:        2 * time.Second,
		QuotaDelay:        3 * time.Second,
		ProbeTimeout:      10 * time.Second,
		ProbeBackoffBase:  10 * time.Second,
		ProbeBackoffCap:   120 * time.Second,
		ErrorBackoffBase:  time.Second,
		ErrorBackoffCap:   30 * time.Second,
		ResurrectionDelay: 30 * time.Minute,
		ReinitDelay:       time.Second,
		WelcomeInitWait:   time.Second,
		Timeouts: CapabilityTimeouts{
			Relevance:   10 * time.Second,
			Welcome:     5 * time.Second,
			Summary:     6 * time.Second,
			Interests:   7 * time.Second,
			Ranking:     8 * time.Second,
			Exploration: 8 * time.Second,
		},
	}
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		AI: DefaultAIConfig(),
		Storage: StorageConfig{
			Path: filepath.Join(configDir(), "smartonboard.db"),
		},
		Credential: CredentialConfig{
			Backend:    "keyring",
			KeyringDir: filepath.Join(configDir(), "credentials"),
		},
		Network: NetworkConfig{
			Enabled:      true,
			ProbeURL:     "https://generativelanguage.googleapis.com/",
			PollInterval: 30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every default on v so partially written files
// still resolve to complete values.
func setDefaults(v *viper.Viper, cfg *AppConfig) {
	ai := cfg.AI
	v.SetDefault("ai.models", ai.Models)
	v.SetDefault("ai.probe_models", ai.ProbeModels)
	v.SetDefault("ai.temperature", ai.Temperature)
	v.SetDefault("ai.max_output_tokens", ai.MaxOutputTokens)
	v.SetDefault("ai.max_retries", ai.MaxRetries)
	v.SetDefault("ai.start_delay", ai.StartDelay)
	v.SetDefault("ai.probe_delay", ai.ProbeDelay)
	v.SetDefault("ai.quota_delay", ai.QuotaDelay)
	v.SetDefault("ai.probe_timeout", ai.ProbeTimeout)
	v.SetDefault("ai.probe_backoff_base", ai.ProbeBackoffBase)
	v.SetDefault("ai.probe_backoff_cap", ai.ProbeBackoffCap)
	v.SetDefault("ai.error_backoff_base", ai.ErrorBackoffBase)
	v.SetDefault("ai.error_backoff_cap", ai.ErrorBackoffCap)
	v.SetDefault("ai.resurrection_delay", ai.ResurrectionDelay)
	v.SetDefault("ai.reinit_delay", ai.ReinitDelay)
	v.SetDefault("ai.welcome_init_wait", ai.WelcomeInitWait)
	v.SetDefault("ai.timeouts.relevance", ai.Timeouts.Relevance)
	v.SetDefault("ai.timeouts.welcome", ai.Timeouts.Welcome)
	v.SetDefault("ai.timeouts.summary", ai.Timeouts.Summary)
	v.SetDefault("ai.timeouts.interests", ai.Timeouts.Interests)
	v.SetDefault("ai.timeouts.ranking", ai.Timeouts.Ranking)
	v.SetDefault("ai.timeouts.exploration", ai.Timeouts.Exploration)

	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("credential.backend", cfg.Credential.Backend)
	v.SetDefault("credential.keyring_dir", cfg.Credential.KeyringDir)
	v.SetDefault("network.enabled", cfg.Network.Enabled)
	v.SetDefault("network.probe_url", cfg.Network.ProbeURL)
	v.SetDefault("network.poll_interval", cfg.Network.PollInterval)
	v.SetDefault("network.probe_timeout", cfg.Network.ProbeTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.pretty", cfg.Log.Pretty)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, the defaults are used. The API key is read
// from envVar (DefaultAPIKeyEnv when empty) exactly once, here.
func LoadConfig(path string, envVar string) (*AppConfig, error) {
	if envVar == "" {
		envVar = DefaultAPIKeyEnv
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v, DefaultAppConfig())
	if err := v.BindEnv("credential.api_key", envVar); err != nil {
		return nil, fmt.Errorf("binding %s: %w", envVar, err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The environment-provided API
// key is never written.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("ai", cfg.AI)
	v.Set("storage", cfg.Storage)
	v.Set("credential.backend", cfg.Credential.Backend)
	v.Set("credential.keyring_dir", cfg.Credential.KeyringDir)
	v.Set("network", cfg.Network)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
