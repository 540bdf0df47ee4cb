package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Extraction Extraction `yaml:"extraction"`
	Content    Content    `yaml:"content"`
	SERP       SERP       `yaml:"serp"`
	LLM        LLM        `yaml:"llm"`
	Analysis   Analysis   `yaml:"analysis"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Extraction configures the keyword extractor. Provider is "yake" or "llm".
type Extraction struct {
	Provider        string   `yaml:"provider"`
	YAKEURL         string   `yaml:"yake_url"`
	Language        string   `yaml:"language"`
	MaxNGramSize    int      `yaml:"max_ngram_size"`
	DedupThreshold  float64  `yaml:"dedup_threshold"`
	TopK            int      `yaml:"top_k"`
	CustomStopwords []string `yaml:"custom_stopwords"`
}

// Content configures page cleanup. Provider is "readability" or "textrazor".
type Content struct {
	Provider  string        `yaml:"provider"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// SERP configures result lookup. Provider is "serpapi" or "googlenews".
type SERP struct {
	Provider   string `yaml:"provider"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Location   string `yaml:"location"`
	Language   string `yaml:"language"`
	Country    string `yaml:"country"`
	NumResults int    `yaml:"num_results"`
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Analysis struct {
	Workers       int           `yaml:"workers"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for kwscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kwscout")
}

// DataDir returns the XDG data directory for kwscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "kwscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kwscout/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'kwscout init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration, used when no file exists.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Extraction: Extraction{
			Provider:       "yake",
			YAKEURL:        "http://localhost:5000",
			Language:       "fr",
			MaxNGramSize:   3,
			DedupThreshold: 0.9,
			TopK:           20,
		},
		Content: Content{
			Provider:  "readability",
			APIKeyEnv: "TEXTRAZOR_API_KEY",
			Timeout:   15 * time.Second,
			UserAgent: "kwscout/1.0 (keyword research)",
		},
		SERP: SERP{
			Provider:   "serpapi",
			APIKeyEnv:  "SERPAPI_API_KEY",
			Location:   "France",
			Language:   "fr",
			Country:    "fr",
			NumResults: 10,
		},
		LLM: LLM{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
		},
		Analysis: Analysis{
			Workers:       4,
			SourceTimeout: 30 * time.Second,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Extraction.Provider) {
	case "yake", "llm":
	default:
		return fmt.Errorf("unknown extraction provider %q", c.Extraction.Provider)
	}
	switch strings.ToLower(c.Content.Provider) {
	case "readability", "textrazor":
	default:
		return fmt.Errorf("unknown content provider %q", c.Content.Provider)
	}
	switch strings.ToLower(c.SERP.Provider) {
	case "serpapi", "googlenews":
	default:
		return fmt.Errorf("unknown serp provider %q", c.SERP.Provider)
	}
	if c.Extraction.DedupThreshold < 0 || c.Extraction.DedupThreshold > 1 {
		return fmt.Errorf("dedup_threshold must be within [0,1], got %v", c.Extraction.DedupThreshold)
	}
	if c.Extraction.MaxNGramSize < 1 {
		return fmt.Errorf("max_ngram_size must be positive, got %d", c.Extraction.MaxNGramSize)
	}
	if c.Extraction.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.Extraction.TopK)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// LogLevel maps logging.level to a slog level, defaulting to INFO.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// APIKey reads a credential from the named environment variable. Keys are
// never stored in the config file itself.
func APIKey(envName string) string {
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
