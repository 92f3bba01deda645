package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/app"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio/mic"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/config"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/events"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/report"
)

var (
	cfgFile         string
	verbose         bool
	seconds         int
	file            string
	translateTarget string
	lang            string
	modelPath       string
	engine          string
	voskURL         string
	translatorName  string
	device          string
)

// exitError carries the process exit code for a failed run
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "cloudwhisper",
	Short: "Offline speech transcription with translation",
	Long: `cloudwhisper records from the microphone (or reads an audio file),
transcribes it with an offline Vosk model and translates the transcript.

Exit codes:
  0  success
  1  transcription failed
  2  no speech detected (or recording failed)
  3  model could not be loaded
  4  audio file missing, unreadable or not convertible`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE:          runTranscription,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return apperr.ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return apperr.ExitTranscriptionFailed
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	f := rootCmd.Flags()
	f.IntVarP(&seconds, "seconds", "s", 5, "Recording seconds for microphone")
	f.StringVarP(&file, "file", "f", "", "Audio file to transcribe instead of recording (WAV, MP3, ...)")
	f.StringVarP(&translateTarget, "translate-target", "t", "", "Translate the transcript to this language code (e.g. en)")
	f.StringVarP(&lang, "lang", "l", "Portuguese", "Target language name, used when --translate-target is not set")
	f.StringVar(&modelPath, "model-path", "model", "Path to the Vosk model directory")
	f.StringVar(&engine, "engine", "", "Recognition engine: vosk-server or vosk")
	f.StringVar(&voskURL, "vosk-url", "", "Vosk server websocket URL")
	f.StringVar(&translatorName, "translator", "", "Translation provider: google, openai or none")
	f.StringVar(&device, "device", "", "Input device name (default: system default)")
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("seconds") {
		cfg.Audio.Duration = time.Duration(seconds) * time.Second
	}
	if flags.Changed("model-path") || cfgFile == "" {
		cfg.Model.Path = modelPath
	}
	if flags.Changed("engine") {
		cfg.Model.Engine = engine
	}
	if flags.Changed("vosk-url") {
		cfg.Model.VoskURL = voskURL
	}
	if flags.Changed("translator") {
		cfg.Translation.Provider = translatorName
	}
	if flags.Changed("device") {
		cfg.Audio.Device = device
	}
	if flags.Changed("lang") || cfgFile == "" {
		cfg.Translation.DefaultLabel = lang
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func runTranscription(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if seconds <= 0 && file == "" {
		return fmt.Errorf("--seconds must be positive")
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	presenter := report.NewPresenter(os.Stdout, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		presenter.Failure(err)
		return &exitError{code: apperr.ExitCode(err), err: err}
	}
	defer components.Close()

	req := pipeline.Request{
		ExplicitTarget: translateTarget,
		Label:          cfg.Translation.DefaultLabel,
	}
	var recorder pipeline.Recorder
	if file != "" {
		req.Mode = pipeline.ModeFile
		req.File = file
	} else {
		req.Mode = pipeline.ModeDevice
		req.Duration = cfg.Audio.Duration
		recorder = mic.NewRecorder(mic.Config{
			SampleRate: cfg.Audio.SampleRate,
			DeviceName: cfg.Audio.Device,
		}, logger)
		presenter.SetRecordingDuration(req.Duration)
	}

	orch := components.Pipeline(recorder)
	orch.Subscribe(presenter.Listener())
	if rdb := app.NewRedis(cfg.Redis); rdb != nil {
		defer rdb.Close()
		orch.Subscribe(events.NewPublisher(rdb, cfg.Redis.EventsChannel, logger).Listener(""))
	}

	res, runErr := orch.Run(ctx, req)
	if runErr != nil {
		presenter.Failure(runErr)
	} else {
		presenter.Result(res)
	}
	if verbose {
		presenter.Summary(res)
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := components.Metrics.Push(pushCtx, url, cfg.Metrics.Job); err != nil {
			logger.Warn("Metrics push failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	if runErr != nil {
		return &exitError{code: apperr.ExitCode(runErr), err: runErr}
	}
	return nil
}
