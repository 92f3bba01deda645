package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
)

// Supported engines
const (
	EngineVoskServer = "vosk-server"
	EngineVosk       = "vosk"
)

// ModelGuidance is shown to the user when no model could be loaded
const ModelGuidance = "Download a model from https://alphacephei.com/vosk/models and unzip it into ./model, " +
	"or point --model-path at an existing model directory."

// Model is a loaded speech recognition model. It is safe to share between
// runs; every transcription creates its own Recognizer.
type Model interface {
	NewRecognizer(ctx context.Context, sampleRate int) (Recognizer, error)
	Close() error
}

// Recognizer decodes one utterance batch
type Recognizer interface {
	// AcceptWaveform feeds PCM16 audio
	AcceptWaveform(pcm []byte) error
	// FinalResult flushes the recognizer and returns the full hypothesis
	FinalResult() (string, error)
	Close() error
}

// TranscriptionResult is the outcome of one transcription. An empty Text
// means no speech was detected.
type TranscriptionResult struct {
	Text       string
	SampleRate int
}

// Config selects and configures an engine
type Config struct {
	Engine      string
	ModelPath   string
	ServerURL   string
	DialTimeout time.Duration
}

// LoadModel loads the configured engine. Every failure is a model load error.
func LoadModel(ctx context.Context, cfg Config, logger *slog.Logger) (Model, error) {
	const op = "transcriber.LoadModel"
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Engine {
	case EngineVoskServer, "":
		if cfg.ServerURL == "" {
			return nil, apperr.Errorf(apperr.KindModelLoad, op, "vosk server URL is required")
		}
		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		model, err := NewVoskServerModel(dialCtx, cfg.ServerURL)
		if err != nil {
			return nil, apperr.E(apperr.KindModelLoad, op, err)
		}
		logger.Info("Vosk server reachable", slog.String("url", cfg.ServerURL))
		return model, nil

	case EngineVosk:
		fi, err := os.Stat(cfg.ModelPath)
		if err != nil {
			return nil, apperr.E(apperr.KindModelLoad, op, fmt.Errorf("model not found at %q: %w", cfg.ModelPath, err))
		}
		if !fi.IsDir() {
			return nil, apperr.Errorf(apperr.KindModelLoad, op, "model path %q is not a directory", cfg.ModelPath)
		}
		model, err := NewNativeModel(cfg.ModelPath)
		if err != nil {
			return nil, apperr.E(apperr.KindModelLoad, op, err)
		}
		logger.Info("Vosk model loaded", slog.String("path", cfg.ModelPath))
		return model, nil

	default:
		return nil, apperr.Errorf(apperr.KindModelLoad, op, "unknown engine: %s", cfg.Engine)
	}
}

// Engine runs batch transcriptions against a loaded model
type Engine struct {
	model  Model
	logger *slog.Logger
}

// NewEngine wraps a loaded model.
func NewEngine(model Model, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{model: model, logger: logger}
}

// Transcribe feeds the whole buffer to a fresh recognizer bound to the
// buffer's sample rate and returns the final hypothesis.
func (e *Engine) Transcribe(ctx context.Context, buf audio.Buffer) (TranscriptionResult, error) {
	const op = "transcriber.Transcribe"

	rec, err := e.model.NewRecognizer(ctx, buf.SampleRate)
	if err != nil {
		return TranscriptionResult{}, apperr.E(apperr.KindTranscription, op, fmt.Errorf("failed to create recognizer: %w", err))
	}
	defer func() {
		if err := rec.Close(); err != nil {
			e.logger.Debug("Recognizer close failed", slog.String("error", err.Error()))
		}
	}()

	start := time.Now()
	if err := rec.AcceptWaveform(buf.PCM); err != nil {
		return TranscriptionResult{}, apperr.E(apperr.KindTranscription, op, err)
	}
	text, err := rec.FinalResult()
	if err != nil {
		return TranscriptionResult{}, apperr.E(apperr.KindTranscription, op, err)
	}

	text = strings.TrimSpace(text)
	e.logger.Debug("Transcription finished",
		slog.Duration("audio", buf.Duration()),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("chars", len(text)),
	)
	return TranscriptionResult{Text: text, SampleRate: buf.SampleRate}, nil
}

// VoskResult is the JSON document produced by Vosk recognizers
type VoskResult struct {
	Text   *string `json:"text"`
	Result []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Conf  float64 `json:"conf"`
	} `json:"result"`
	Partial string `json:"partial"`
}

// IsFinal reports whether the document is a full result, not a partial one.
func (r VoskResult) IsFinal() bool {
	return r.Text != nil
}

// ParseVoskResult decodes a Vosk result document.
func ParseVoskResult(raw []byte) (VoskResult, error) {
	var res VoskResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return VoskResult{}, fmt.Errorf("failed to parse Vosk result: %w", err)
	}
	return res, nil
}

// textOf extracts the text of a final result document.
func textOf(raw string) (string, error) {
	res, err := ParseVoskResult([]byte(raw))
	if err != nil {
		return "", err
	}
	if res.Text == nil {
		return "", nil
	}
	return *res.Text, nil
}

// joinText concatenates utterance texts, skipping empty ones.
func joinText(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p)
	}
	return b.String()
}
