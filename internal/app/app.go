// Package app wires configuration into pipeline components.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/config"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/language"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/media"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/metrics"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/transcriber"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/translator"
)

// Components are shared by every run of a process. The model is loaded
// once; each run gets its own recognizer and orchestrator.
type Components struct {
	Config     *config.Config
	Model      transcriber.Model
	Engine     *transcriber.Engine
	Normalizer *audio.Normalizer
	Translator *translator.Adapter
	Metadata   language.ModelMetadata
	Metrics    *metrics.Collector
	Logger     *slog.Logger
}

// Build loads the model and creates the adapters. A model failure is
// returned as an apperr.KindModelLoad error.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	model, err := transcriber.LoadModel(ctx, transcriber.Config{
		Engine:      cfg.Model.Engine,
		ModelPath:   cfg.Model.Path,
		ServerURL:   cfg.Model.VoskURL,
		DialTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Config:     cfg,
		Model:      model,
		Engine:     transcriber.NewEngine(model, logger),
		Normalizer: audio.NewNormalizer(media.NewFFmpeg(cfg.FFmpeg.Binary), cfg.Audio.SampleRate, os.TempDir(), logger),
		Metadata:   language.LoadMetadata(cfg.Model.Path),
		Metrics:    metrics.NewCollector(),
		Logger:     logger,
	}
	if c.Metadata.ModelLanguage != "" {
		logger.Debug("Model metadata loaded", slog.String("model_language", c.Metadata.ModelLanguage))
	}

	if cfg.Translation.Provider != "none" {
		provider, err := translator.NewProvider(translator.Config{
			Provider:    cfg.Translation.Provider,
			Timeout:     cfg.Translation.Timeout,
			OpenAIKey:   cfg.Translation.OpenAIKey,
			OpenAIModel: cfg.Translation.OpenAIModel,
			OpenAIURL:   cfg.Translation.OpenAIBaseURL,
		})
		if err != nil {
			// Translation is optional; runs still report the transcript.
			logger.Warn("Translation disabled", slog.String("error", err.Error()))
		} else {
			c.Translator = translator.NewAdapter(provider, logger)
		}
	}

	return c, nil
}

// Pipeline returns a fresh orchestrator. recorder may be nil when no run
// captures from a device.
func (c *Components) Pipeline(recorder pipeline.Recorder) *pipeline.Orchestrator {
	deps := pipeline.Deps{
		Normalizer:  c.Normalizer,
		Transcriber: c.Engine,
		Metadata:    c.Metadata,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	}
	// Keep typed nils out of the interfaces.
	if recorder != nil {
		deps.Recorder = recorder
	}
	if c.Translator != nil {
		deps.Translator = c.Translator
	}
	return pipeline.New(pipeline.Config{
		Duration:     c.Config.Audio.Duration,
		SampleRate:   c.Config.Audio.SampleRate,
		ModelPath:    c.Config.Model.Path,
		DefaultLabel: c.Config.Translation.DefaultLabel,
	}, deps)
}

func (c *Components) Close() {
	if err := c.Model.Close(); err != nil {
		c.Logger.Debug("Model close failed", slog.String("error", err.Error()))
	}
}

// NewRedis returns a client for the redis section, or nil when no address
// is configured.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
