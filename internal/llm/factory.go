package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderReplay    = "replay"
)

// Config selects and configures a provider. It mirrors the llm.* configuration keys.
type Config struct {
	Provider       string
	Model          string
	APIKeyEnv      string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ReplayFile     string
}

var getenv = os.Getenv

// New builds the configured client wrapped with retries and instrumentation.
func New(cfg Config, m *metrics.Metrics, logger *log.Logger) (Client, error) {
	if logger == nil {
		logger = log.Nop()
	}

	var base Client
	switch cfg.Provider {
	case ProviderReplay:
		if cfg.ReplayFile == "" {
			return nil, errors.NewConfigInvalidError("llm.replay_file", "required when llm.provider is replay")
		}
		replay, err := LoadReplay(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		// replayed answers never fail transiently
		return Instrument(replay, m, logger), nil

	case ProviderAnthropic, ProviderOpenAI:
		envVar := cfg.APIKeyEnv
		if envVar == "" {
			envVar = defaultKeyEnv(cfg.Provider)
		}
		key := getenv(envVar)
		if key == "" {
			return nil, errors.NewProviderAuthError(cfg.Provider, envVar)
		}

		httpCfg := HTTPConfig{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}
		var err error
		if cfg.Provider == ProviderAnthropic {
			base, err = NewAnthropic(httpCfg)
		} else {
			base, err = NewOpenAI(httpCfg)
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLLMConfig, "failed to create provider", err)
		}

	default:
		return nil, errors.NewConfigInvalidError("llm.provider",
			fmt.Sprintf("unknown provider %q (want anthropic, openai or replay)", cfg.Provider))
	}

	policy := RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		OnRetry: func(err error, wait time.Duration) {
			m.ObserveRetry(base.Name())
			logger.WithError(err).Warn("retrying llm call", "provider", base.Name(), "wait", wait.String())
		},
	}
	return Instrument(WithRetry(base, policy), m, logger), nil
}

func defaultKeyEnv(provider string) string {
	if provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}
