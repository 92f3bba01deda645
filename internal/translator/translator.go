package translator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
)

// Supported providers
const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"
)

// SourceAuto asks the provider to detect the source language
const SourceAuto = "auto"

// Provider is a translation backend
type Provider interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	Name() string
}

// Config selects and configures a provider
type Config struct {
	Provider    string
	Timeout     time.Duration
	GoogleURL   string // override for the Google endpoint
	OpenAIKey   string
	OpenAIModel string
	OpenAIURL   string // optional base URL for OpenAI-compatible servers
}

// NewProvider builds the configured provider.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGoogle, "":
		return NewGoogle(cfg.GoogleURL, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIURL)
	default:
		return nil, fmt.Errorf("unknown translation provider: %s", cfg.Provider)
	}
}

// Adapter translates transcripts, turning provider failures into
// translation errors.
type Adapter struct {
	provider Provider
	logger   *slog.Logger
}

// NewAdapter wraps a provider.
func NewAdapter(provider Provider, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{provider: provider, logger: logger}
}

// Translate converts text into target with auto-detected source language.
// Empty text returns "" without calling the provider.
func (a *Adapter) Translate(ctx context.Context, text, target string) (string, error) {
	const op = "translator.Translate"

	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if target == "" {
		return "", apperr.Errorf(apperr.KindTranslation, op, "empty target language")
	}

	start := time.Now()
	out, err := a.provider.Translate(ctx, text, SourceAuto, target)
	if err != nil {
		return "", apperr.E(apperr.KindTranslation, op, fmt.Errorf("%s: %w", a.provider.Name(), err))
	}

	a.logger.Debug("Translation finished",
		slog.String("provider", a.provider.Name()),
		slog.String("target", target),
		slog.Duration("elapsed", time.Since(start)),
	)
	return strings.TrimSpace(out), nil
}
