package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/language"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/metrics"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/transcriber"
)

// Mode selects where a run gets its audio
type Mode string

const (
	ModeDevice Mode = "device"
	ModeFile   Mode = "file"
	ModeBuffer Mode = "buffer"
)

// Config holds the run defaults
type Config struct {
	Duration     time.Duration
	SampleRate   int
	ModelPath    string
	DefaultLabel string
}

// DefaultConfig returns 5s recordings at 16kHz with the model in ./model.
func DefaultConfig() Config {
	return Config{
		Duration:     5 * time.Second,
		SampleRate:   audio.DefaultSampleRate,
		ModelPath:    "model",
		DefaultLabel: language.DefaultLabel,
	}
}

// Recorder captures audio from an input device
type Recorder interface {
	Record(ctx context.Context, duration time.Duration) (audio.Buffer, error)
}

// Normalizer converts input files to canonical WAV
type Normalizer interface {
	Normalize(ctx context.Context, path string) (*audio.Normalized, error)
}

// Transcriber turns PCM into text
type Transcriber interface {
	Transcribe(ctx context.Context, buf audio.Buffer) (transcriber.TranscriptionResult, error)
}

// Translator turns text into the target language
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Deps are the collaborators of an Orchestrator. Recorder and Normalizer are
// only needed for the modes that use them; a nil Translator disables
// translation.
type Deps struct {
	Recorder    Recorder
	Normalizer  Normalizer
	Transcriber Transcriber
	Translator  Translator
	Metadata    language.ModelMetadata
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Request describes one run
type Request struct {
	Mode           Mode
	File           string        // ModeFile
	Buffer         audio.Buffer  // ModeBuffer
	Duration       time.Duration // ModeDevice; zero uses Config.Duration
	ExplicitTarget string
	Label          string // zero uses Config.DefaultLabel
}

// Result is the outcome of a run. It is returned even when the run fails.
type Result struct {
	RunID          string
	Text           string
	Translation    string
	Target         language.Target
	Translated     bool
	TranslationErr error
	State          State
	Metrics        *metrics.RunMetrics
}

// Orchestrator sequences capture, transcription and translation. One
// Orchestrator serves one run at a time; concurrent runs need their own.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	machine stateMachine
}

func New(cfg Config, deps Deps) *Orchestrator {
	def := DefaultConfig()
	if cfg.Duration <= 0 {
		cfg.Duration = def.Duration
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = def.ModelPath
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = def.DefaultLabel
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}
}

// Subscribe registers a listener for every state change.
func (o *Orchestrator) Subscribe(l Listener) {
	o.machine.subscribe(l)
}

// State returns the current phase.
func (o *Orchestrator) State() State {
	return o.machine.Current()
}

// Run executes one capture → transcribe → translate pass. Empty speech is
// reported as an apperr.KindNoSpeech error. Translation failures are kept in
// Result.TranslationErr and do not fail the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	res := &Result{RunID: runID, Metrics: metrics.NewRunMetrics(string(req.Mode), runID)}
	o.machine.reset(runID)
	o.deps.Metrics.RunStarted(string(req.Mode))

	logger := o.logger.With(slog.String("run_id", runID), slog.String("mode", string(req.Mode)))
	logger.Debug("Run started")

	err := o.run(ctx, req, res, logger)

	res.Metrics.Finalize()
	outcome, kind := metrics.OutcomeOK, ""
	if err != nil {
		o.machine.transition(StateError, err)
		kind = string(apperr.KindOf(err))
		switch apperr.KindOf(err) {
		case apperr.KindNoSpeech:
			outcome = metrics.OutcomeNoSpeech
		case apperr.KindCanceled:
			outcome = metrics.OutcomeCanceled
		default:
			outcome = metrics.OutcomeError
		}
		logger.Warn("Run failed", slog.String("kind", kind), slog.String("error", err.Error()))
	} else {
		o.machine.transition(StateDone, nil)
		logger.Info("Run finished",
			slog.Int("chars", len(res.Text)),
			slog.String("target", res.Target.Code),
			slog.Duration("elapsed", res.Metrics.EndTime.Sub(res.Metrics.StartTime)),
		)
	}
	o.deps.Metrics.RunFinished(res.Metrics, outcome, kind)
	res.State = o.machine.Current()
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, res *Result, logger *slog.Logger) error {
	buf, cleanup, err := o.acquire(ctx, req, res)
	defer cleanup()
	if err != nil {
		return err
	}
	res.Metrics.SetAudio(buf)

	if err := checkCtx(ctx, "pipeline.transcribe"); err != nil {
		return err
	}
	if o.deps.Transcriber == nil {
		return apperr.Errorf(apperr.KindModelLoad, "pipeline.transcribe", "no transcription engine")
	}

	start := time.Now()
	tr, err := o.deps.Transcriber.Transcribe(ctx, buf)
	res.Metrics.Time(metrics.StageTranscribe, start)
	if err != nil {
		return canceledOr(ctx, err)
	}
	res.Text = tr.Text
	res.Metrics.SetTranscript(tr.Text)
	if tr.Text == "" {
		return apperr.Errorf(apperr.KindNoSpeech, "pipeline.transcribe", "no transcription detected")
	}

	if err := checkCtx(ctx, "pipeline.translate"); err != nil {
		return err
	}
	o.translate(ctx, req, res, logger)
	return nil
}

// acquire produces the audio buffer for the run. The returned cleanup must
// be called on every path; it removes temporary files.
func (o *Orchestrator) acquire(ctx context.Context, req Request, res *Result) (audio.Buffer, func(), error) {
	noop := func() {}
	start := time.Now()
	defer res.Metrics.Time(metrics.StageAcquire, start)

	switch req.Mode {
	case ModeDevice:
		o.machine.transition(StateRecording, nil)
		if o.deps.Recorder == nil {
			return audio.Buffer{}, noop, apperr.Errorf(apperr.KindDevice, "pipeline.record", "no recording device configured")
		}
		d := req.Duration
		if d <= 0 {
			d = o.cfg.Duration
		}
		buf, err := o.deps.Recorder.Record(ctx, d)
		if err != nil {
			return audio.Buffer{}, noop, canceledOr(ctx, err)
		}
		if err := checkCtx(ctx, "pipeline.record"); err != nil {
			return audio.Buffer{}, noop, err
		}
		o.machine.transition(StateProcessing, nil)
		return buf, noop, nil

	case ModeFile:
		o.machine.transition(StateProcessing, nil)
		if o.deps.Normalizer == nil {
			return audio.Buffer{}, noop, apperr.Errorf(apperr.KindConversion, "pipeline.normalize", "no normalizer configured")
		}
		norm, err := o.deps.Normalizer.Normalize(ctx, req.File)
		if err != nil {
			return audio.Buffer{}, noop, canceledOr(ctx, err)
		}
		cleanup := func() { norm.Cleanup(o.logger) }
		buf, err := audio.LoadFile(norm.Path)
		if err != nil {
			return audio.Buffer{}, cleanup, err
		}
		return buf, cleanup, nil

	case ModeBuffer:
		o.machine.transition(StateProcessing, nil)
		buf := req.Buffer
		if buf.Channels > 1 {
			buf.PCM = audio.FirstChannel(buf.PCM, buf.Channels)
			buf.Channels = 1
		}
		checked, err := audio.NewBuffer(buf.PCM, buf.SampleRate)
		if err != nil {
			return audio.Buffer{}, noop, apperr.E(apperr.KindUnsupportedFormat, "pipeline.buffer", err)
		}
		return checked, noop, nil

	default:
		return audio.Buffer{}, noop, apperr.Errorf(apperr.KindUnknown, "pipeline.acquire", "unknown mode %q", req.Mode)
	}
}

// translate resolves the target and makes at most one translation attempt.
func (o *Orchestrator) translate(ctx context.Context, req Request, res *Result, logger *slog.Logger) {
	label := req.Label
	if label == "" {
		label = o.cfg.DefaultLabel
	}
	target, ok := language.Resolve(req.ExplicitTarget, label, o.deps.Metadata)
	if !ok || o.deps.Translator == nil {
		logger.Debug("Translation skipped")
		return
	}
	res.Target = target

	start := time.Now()
	out, err := o.deps.Translator.Translate(ctx, res.Text, target.Code)
	res.Metrics.Time(metrics.StageTranslate, start)
	o.deps.Metrics.TranslationFinished(err)
	if err != nil {
		res.TranslationErr = err
		logger.Warn("Translation failed", slog.String("target", target.Code), slog.String("error", err.Error()))
		return
	}
	res.Translation = out
	res.Translated = out != ""
	res.Metrics.SetTranslation(out)
}

func checkCtx(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperr.E(apperr.KindCanceled, op, err)
	}
	return nil
}

// canceledOr reports a stage failure caused by cancellation as
// KindCanceled, keeping the stage error otherwise.
func canceledOr(ctx context.Context, err error) error {
	if ctx.Err() != nil && !apperr.Is(err, apperr.KindCanceled) {
		return apperr.E(apperr.KindCanceled, "pipeline", errors.Join(ctx.Err(), err))
	}
	return err
}
