package server

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
)

// TranscriptionResponse is returned by POST /v1/transcriptions
type TranscriptionResponse struct {
	RunID       string `json:"run_id"`
	State       string `json:"state"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Target      string `json:"target,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

type HTTPConfig struct {
	Addr        string
	TempDir     string
	BodyLimit   int
	ReadTimeout time.Duration
	RunTimeout  time.Duration // per request; runs are also canceled by Stop
}

// HTTPServer exposes file transcription, health and metrics over HTTP.
type HTTPServer struct {
	config      HTTPConfig
	app         *fiber.App
	newPipeline PipelineFactory
	logger      *slog.Logger

	// runs derive from baseCtx so Stop can abort them
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewHTTPServer(config HTTPConfig, newPipeline PipelineFactory, registry *prometheus.Registry, logger *slog.Logger) *HTTPServer {
	if config.BodyLimit <= 0 {
		config.BodyLimit = 64 * 1024 * 1024
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 30 * time.Second
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		config:      config,
		newPipeline: newPipeline,
		logger:      logger,
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.app = fiber.New(fiber.Config{
		AppName:               "cloudwhisper",
		BodyLimit:             config.BodyLimit,
		ReadTimeout:           config.ReadTimeout,
		DisableStartupMessage: true,
	})

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if registry != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	s.app.Post("/v1/transcriptions", s.handleTranscription)

	return s
}

// App returns the underlying fiber app.
func (s *HTTPServer) App() *fiber.App {
	return s.app
}

func (s *HTTPServer) Start() error {
	s.logger.Info("HTTP server listening", slog.String("addr", s.config.Addr))
	return s.app.Listen(s.config.Addr)
}

// Stop aborts in-flight runs, then waits for their responses to be written.
func (s *HTTPServer) Stop() error {
	s.cancel()
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *HTTPServer) handleTranscription(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart field `file` is required"})
	}

	// Keep the extension so the normalizer can tell WAV from compressed input.
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	tmp, err := os.CreateTemp(s.config.TempDir, "cloudwhisper-upload-*"+ext)
	if err != nil {
		s.logger.Error("Failed to create upload file", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store upload"})
	}
	path := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to remove upload", slog.String("path", path), slog.String("error", err.Error()))
		}
	}()

	if err := c.SaveFile(fh, path); err != nil {
		s.logger.Error("Failed to save upload", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store upload"})
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.config.RunTimeout)
	defer cancel()
	res, runErr := s.newPipeline().Run(ctx, pipeline.Request{
		Mode:           pipeline.ModeFile,
		File:           path,
		ExplicitTarget: c.FormValue("translate_target"),
		Label:          c.FormValue("lang"),
	})

	resp := TranscriptionResponse{
		RunID:       res.RunID,
		State:       res.State.String(),
		Text:        res.Text,
		Translation: res.Translation,
		Target:      res.Target.Code,
	}
	if res.TranslationErr != nil {
		resp.Error = res.TranslationErr.Error()
		resp.ErrorKind = string(apperr.KindTranslation)
	}
	if runErr != nil {
		resp.Error = runErr.Error()
		resp.ErrorKind = string(apperr.KindOf(runErr))
	}
	return c.Status(statusFor(runErr)).JSON(resp)
}

// statusFor maps a run error to an HTTP status.
func statusFor(err error) int {
	if err == nil {
		return fiber.StatusOK
	}
	switch apperr.KindOf(err) {
	case apperr.KindNoSpeech, apperr.KindFileRead, apperr.KindUnsupportedFormat, apperr.KindConversion, apperr.KindFileNotFound:
		return fiber.StatusUnprocessableEntity
	case apperr.KindCanceled:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
