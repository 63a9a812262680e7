// Package config loads genpod settings from genpod.yaml, GENPOD_* environment
// variables and defaults, in that order of precedence after explicit flags.
package config

import (
	gerrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/hooks"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
	"github.com/felixgeelhaar/genpod/internal/shell"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
)

const (
	// FileName is the config file name without extension.
	FileName = "genpod"
	// EnvPrefix prefixes every environment override, e.g. GENPOD_LLM_MODEL.
	EnvPrefix = "GENPOD"
)

// Config holds every genpod setting.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Store      StoreConfig      `mapstructure:"store"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	RAG        RAGConfig        `mapstructure:"rag"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Shell      ShellConfig      `mapstructure:"shell"`
	Review     ReviewConfig     `mapstructure:"review"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Hooks      []hooks.Config   `mapstructure:"hooks"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	APIKeyEnv      string        `mapstructure:"api_key_env"`
	BaseURL        string        `mapstructure:"base_url"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	ReplayFile     string        `mapstructure:"replay_file"`
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type RAGConfig struct {
	CacheLimit          int     `mapstructure:"cache_limit"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	KnowledgeDir        string  `mapstructure:"knowledge_dir"`
	IndexPath           string  `mapstructure:"index_path"`
	MaxHallucination    int     `mapstructure:"max_hallucination"`
	TopK                int     `mapstructure:"top_k"`
}

type WorkspaceConfig struct {
	// OutputDir holds one directory per generated project.
	OutputDir string `mapstructure:"output_dir"`
	// LicenseHeader is prefixed, as comments, to generated source files.
	LicenseHeader string `mapstructure:"license_header"`
}

type ShellConfig struct {
	AllowedCommands []string      `mapstructure:"allowed_commands"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type ReviewConfig struct {
	Commands  []string `mapstructure:"commands"`
	MaxCycles int      `mapstructure:"max_cycles"`
}

type SupervisorConfig struct {
	RecursionLimit  int `mapstructure:"recursion_limit"`
	MaxItemAttempts int `mapstructure:"max_item_attempts"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// DataDir is where genpod keeps its stores when no path is configured.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".genpod"
	}
	return filepath.Join(home, ".genpod")
}

func setDefaults(v *viper.Viper) {
	data := DataDir()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("llm.provider", llm.ProviderAnthropic)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.initial_backoff", "1s")
	v.SetDefault("llm.max_backoff", "30s")
	v.SetDefault("llm.replay_file", "")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", filepath.Join(data, "checkpoints.db"))
	v.SetDefault("registry.path", filepath.Join(data, "registry.db"))

	v.SetDefault("rag.cache_limit", ragcache.DefaultLimit)
	v.SetDefault("rag.similarity_threshold", ragcache.DefaultThreshold)
	v.SetDefault("rag.knowledge_dir", "")
	v.SetDefault("rag.index_path", filepath.Join(data, "knowledge.db"))
	v.SetDefault("rag.max_hallucination", rag.DefaultMaxHallucination)
	v.SetDefault("rag.top_k", rag.DefaultTopK)

	v.SetDefault("workspace.output_dir", "output")
	v.SetDefault("workspace.license_header", "")

	v.SetDefault("shell.allowed_commands", shell.DefaultAllowed)
	v.SetDefault("shell.timeout", shell.DefaultTimeout.String())

	v.SetDefault("review.commands", []string{})
	v.SetDefault("review.max_cycles", supervisor.DefaultMaxReviewCycles)

	v.SetDefault("supervisor.recursion_limit", supervisor.DefaultRecursionLimit)
	v.SetDefault("supervisor.max_item_attempts", supervisor.DefaultMaxItemAttempts)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("metrics.addr", "")
}

// Load reads configuration. An explicit path must exist; otherwise genpod.yaml
// is searched in the working directory and $HOME/.genpod, and a missing file
// leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case gerrors.As(err, &notFound):
		case path != "" && os.IsNotExist(err):
			return nil, errors.NewFileNotFoundError(path)
		default:
			return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to read configuration", err).
				WithSuggestion("Check the YAML syntax of " + v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to decode configuration", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.expandHome()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandHome() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	for _, p := range []*string{
		&c.Store.Path, &c.Registry.Path, &c.RAG.KnowledgeDir, &c.RAG.IndexPath,
		&c.Workspace.OutputDir, &c.LLM.ReplayFile,
	} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
}

// Validate rejects settings the rest of genpod cannot work with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
	case llm.ProviderReplay:
		if c.LLM.ReplayFile == "" {
			return errors.NewConfigInvalidError("llm.replay_file", "required when llm.provider is replay")
		}
	default:
		return errors.NewConfigInvalidError("llm.provider", "must be anthropic, openai or replay, got "+c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.NewConfigInvalidError("llm.max_tokens", "must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.NewConfigInvalidError("llm.temperature", "must be between 0 and 2")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.NewConfigInvalidError("llm.max_retries", "must not be negative")
	}

	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return errors.NewConfigInvalidError("store.backend", "must be file or sqlite, got "+c.Store.Backend)
	}
	if c.Store.Path == "" {
		return errors.NewConfigInvalidError("store.path", "must not be empty")
	}
	if c.Registry.Path == "" {
		return errors.NewConfigInvalidError("registry.path", "must not be empty")
	}

	if c.RAG.SimilarityThreshold <= 0 || c.RAG.SimilarityThreshold > 1 {
		return errors.NewConfigInvalidError("rag.similarity_threshold", "must be in (0, 1]")
	}
	if c.RAG.CacheLimit < 1 {
		return errors.NewConfigInvalidError("rag.cache_limit", "must be at least 1")
	}
	if c.RAG.TopK < 1 {
		return errors.NewConfigInvalidError("rag.top_k", "must be at least 1")
	}
	if c.Workspace.OutputDir == "" {
		return errors.NewConfigInvalidError("workspace.output_dir", "must not be empty")
	}
	if c.Review.MaxCycles < 0 {
		return errors.NewConfigInvalidError("review.max_cycles", "must not be negative")
	}
	if c.Supervisor.RecursionLimit < 1 {
		return errors.NewConfigInvalidError("supervisor.recursion_limit", "must be at least 1")
	}
	if c.Supervisor.MaxItemAttempts < 1 {
		return errors.NewConfigInvalidError("supervisor.max_item_attempts", "must be at least 1")
	}

	for i := range c.Hooks {
		h := &c.Hooks[i]
		if h.Name == "" {
			return errors.NewConfigInvalidError("hooks", "every hook needs a name")
		}
		for _, ev := range h.Events {
			if !hooks.IsValidEvent(ev) {
				return errors.NewConfigInvalidError("hooks."+h.Name, "unknown event "+string(ev))
			}
		}
	}
	return nil
}

// LLMSettings maps the llm.* keys onto the provider factory config.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config{
		Provider:       c.LLM.Provider,
		Model:          c.LLM.Model,
		APIKeyEnv:      c.LLM.APIKeyEnv,
		BaseURL:        c.LLM.BaseURL,
		MaxTokens:      c.LLM.MaxTokens,
		Temperature:    c.LLM.Temperature,
		MaxRetries:     c.LLM.MaxRetries,
		InitialBackoff: c.LLM.InitialBackoff,
		MaxBackoff:     c.LLM.MaxBackoff,
		ReplayFile:     c.LLM.ReplayFile,
	}
}

// SupervisorSettings maps the supervisor, review and rag bounds.
func (c *Config) SupervisorSettings() supervisor.Config {
	return supervisor.Config{
		RecursionLimit:   c.Supervisor.RecursionLimit,
		MaxItemAttempts:  c.Supervisor.MaxItemAttempts,
		MaxReviewCycles:  c.Review.MaxCycles,
		MaxHallucination: c.RAG.MaxHallucination,
	}
}

// ShellOptions configures command runners for the coder and reviewer.
func (c *Config) ShellOptions() []shell.Option {
	return []shell.Option{shell.WithAllowed(c.Shell.AllowedCommands...), shell.WithTimeout(c.Shell.Timeout)}
}
