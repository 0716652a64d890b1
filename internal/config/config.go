package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Parvis assistant.
// It is loaded from ~/.parvis/config.yaml and can be overridden by
// environment variables with the PARVIS_ prefix.
type Config struct {
	Classifier  ClassifierConfig  `mapstructure:"classifier" yaml:"classifier"`
	Timeouts    TimeoutsConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Vision      VisionConfig      `mapstructure:"vision" yaml:"vision"`
	Speech      SpeechConfig      `mapstructure:"speech" yaml:"speech"`
	Wake        WakeConfig        `mapstructure:"wake" yaml:"wake"`
	Translation TranslationConfig `mapstructure:"translation" yaml:"translation"`
	Observer    ObserverConfig    `mapstructure:"observer" yaml:"observer"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ClassifierConfig tunes the intent classifier.
type ClassifierConfig struct {
	// ConfidenceThreshold is the minimum combined score for an intent match.
	// Scores below this fall back to the language model. Inclusive boundary.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
}

// TimeoutsConfig holds the per-stage timeouts for a conversation turn.
// Every suspension point in the pipeline has its own bound so no turn can
// leave the orchestrator stuck in a non-idle state.
type TimeoutsConfig struct {
	// Capture bounds the transcription stage.
	Capture time.Duration `mapstructure:"capture" yaml:"capture"`
	// Generation bounds language-model delegation.
	Generation time.Duration `mapstructure:"generation" yaml:"generation"`
	// Handler bounds a single intent handler invocation.
	Handler time.Duration `mapstructure:"handler" yaml:"handler"`
	// Synthesis bounds the speech-synthesis stage.
	Synthesis time.Duration `mapstructure:"synthesis" yaml:"synthesis"`
}

// HistoryConfig controls the turn history.
type HistoryConfig struct {
	// MaxTurns is the number of most-recent turns kept in memory.
	MaxTurns int `mapstructure:"max_turns" yaml:"max_turns"`
	// DBPath is an optional SQLite file for persistent turn logs.
	// Empty disables persistence.
	DBPath string `mapstructure:"db_path" yaml:"db_path,omitempty"`
}

// LLMConfig configures the generation collaborator.
type LLMConfig struct {
	// Provider selects the backend: "openai", "ollama", or "canned".
	Provider string `mapstructure:"provider" yaml:"provider"`
	// Endpoint is the API base URL (used by ollama).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// APIKey authenticates against hosted providers. Usually supplied via
	// the OPENAI_API_KEY environment variable instead.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Model is the model identifier to use.
	Model string `mapstructure:"model" yaml:"model"`
	// MaxTokens caps response length for delegated turns.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// VisionConfig configures the scene-description collaborator.
type VisionConfig struct {
	// Enabled controls whether vision intents delegate to a live detector.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the detection sidecar URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// SpeechConfig selects the capture and synthesis implementations.
type SpeechConfig struct {
	// Mode is "live", "simulated", or "text".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// STTEndpoint is the transcription server URL (live mode).
	STTEndpoint string `mapstructure:"stt_endpoint" yaml:"stt_endpoint"`
	// TTSEndpoint is the synthesis server URL (live mode).
	TTSEndpoint string `mapstructure:"tts_endpoint" yaml:"tts_endpoint"`
	// Voice is the synthesis voice identifier.
	Voice string `mapstructure:"voice" yaml:"voice"`
}

// WakeConfig configures the activation signal source.
type WakeConfig struct {
	// Source is "socket" (unix-socket trigger) or "mock" (periodic wake).
	Source string `mapstructure:"source" yaml:"source"`
	// SocketPath is the unix socket the trigger server listens on.
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"`
	// MockInterval is the simulated wake period for the mock source.
	MockInterval time.Duration `mapstructure:"mock_interval" yaml:"mock_interval"`
}

// TranslationConfig enumerates the supported target languages.
type TranslationConfig struct {
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// ObserverConfig controls the WebSocket event observer.
type ObserverConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the log file.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			ConfidenceThreshold: 0.3,
		},
		Timeouts: TimeoutsConfig{
			Capture:    10 * time.Second,
			Generation: 30 * time.Second,
			Handler:    5 * time.Second,
			Synthesis:  15 * time.Second,
		},
		History: HistoryConfig{
			MaxTurns: 10,
		},
		LLM: LLMConfig{
			Provider:  "ollama",
			Endpoint:  "http://127.0.0.1:11434",
			Model:     "llama3",
			MaxTokens: 100,
		},
		Vision: VisionConfig{
			Enabled:  false,
			Endpoint: "http://127.0.0.1:8022",
		},
		Speech: SpeechConfig{
			Mode:        "simulated",
			STTEndpoint: "http://127.0.0.1:8020",
			TTSEndpoint: "http://127.0.0.1:8021",
			Voice:       "en",
		},
		Wake: WakeConfig{
			Source:       "mock",
			SocketPath:   "/tmp/parvis.sock",
			MockInterval: 15 * time.Second,
		},
		Translation: TranslationConfig{
			Languages: []string{"spanish", "french", "german"},
		},
		Observer: ObserverConfig{
			Enabled: false,
			Port:    8765,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the default location (~/.parvis/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".parvis", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment overrides, e.g. PARVIS_LLM_API_KEY.
	v.SetEnvPrefix("PARVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.History.DBPath = expandPath(cfg.History.DBPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values with sensible defaults so a sparse
// config file still yields a runnable configuration.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Classifier.ConfidenceThreshold == 0 {
		c.Classifier.ConfidenceThreshold = defaults.Classifier.ConfidenceThreshold
	}
	if c.Timeouts.Capture == 0 {
		c.Timeouts.Capture = defaults.Timeouts.Capture
	}
	if c.Timeouts.Generation == 0 {
		c.Timeouts.Generation = defaults.Timeouts.Generation
	}
	if c.Timeouts.Handler == 0 {
		c.Timeouts.Handler = defaults.Timeouts.Handler
	}
	if c.Timeouts.Synthesis == 0 {
		c.Timeouts.Synthesis = defaults.Timeouts.Synthesis
	}
	if c.History.MaxTurns == 0 {
		c.History.MaxTurns = defaults.History.MaxTurns
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaults.LLM.Provider
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaults.LLM.Model
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaults.LLM.MaxTokens
	}
	if c.Speech.Mode == "" {
		c.Speech.Mode = defaults.Speech.Mode
	}
	if c.Wake.Source == "" {
		c.Wake.Source = defaults.Wake.Source
	}
	if c.Wake.SocketPath == "" {
		c.Wake.SocketPath = defaults.Wake.SocketPath
	}
	if c.Wake.MockInterval == 0 {
		c.Wake.MockInterval = defaults.Wake.MockInterval
	}
	if len(c.Translation.Languages) == 0 {
		c.Translation.Languages = defaults.Translation.Languages
	}
	if c.Observer.Port == 0 {
		c.Observer.Port = defaults.Observer.Port
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// writeConfigFile marshals a config to YAML and writes it to disk.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
