package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/language"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/metrics"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/transcriber"
)

type fakeTranscriber struct {
	text    string
	err     error
	calls   int
	lastBuf audio.Buffer
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, buf audio.Buffer) (transcriber.TranscriptionResult, error) {
	f.calls++
	f.lastBuf = buf
	if f.err != nil {
		return transcriber.TranscriptionResult{}, f.err
	}
	return transcriber.TranscriptionResult{Text: f.text, SampleRate: buf.SampleRate}, nil
}

type fakeTranslator struct {
	out        string
	err        error
	calls      int
	lastTarget string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	f.calls++
	f.lastTarget = target
	return f.out, f.err
}

type fakeRecorder struct {
	buf      audio.Buffer
	err      error
	duration time.Duration
}

func (f *fakeRecorder) Record(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	f.duration = d
	return f.buf, f.err
}

// fakeTranscoder writes a short 16kHz WAV, then returns fail.
type fakeTranscoder struct {
	fail error
}

func (f *fakeTranscoder) Transcode(ctx context.Context, in, out string, rate, channels int) error {
	if err := os.WriteFile(out, audio.EncodeWAV(audio.FromSamples(make([]int16, 1600), rate)), 0644); err != nil {
		return err
	}
	return f.fail
}

func writeWAV(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func speechWAV(t *testing.T) string {
	return writeWAV(t, "speech.wav", audio.EncodeWAV(audio.FromSamples(make([]int16, 16000), 16000)))
}

func recordStates(o *Orchestrator) *[]State {
	var states []State
	o.Subscribe(func(tr Transition) {
		states = append(states, tr.To)
	})
	return &states
}

func equalStates(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunFileEndToEnd(t *testing.T) {
	stt := &fakeTranscriber{text: "hello world"}
	tr := &fakeTranslator{out: "hola mundo"}
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: stt,
		Translator:  tr,
		Metrics:     metrics.NewCollector(),
	})
	states := recordStates(o)

	res, err := o.Run(context.Background(), Request{Mode: ModeFile, File: speechWAV(t), ExplicitTarget: "es"})
	if code := apperr.ExitCode(err); code != apperr.ExitOK {
		t.Fatalf("Expected exit 0, got %d (%v)", code, err)
	}
	if res.Text != "hello world" || res.Translation != "hola mundo" {
		t.Errorf("Unexpected result: %+v", res)
	}
	if res.Target.Code != "es" || tr.lastTarget != "es" {
		t.Errorf("Expected target es, got %q / %q", res.Target.Code, tr.lastTarget)
	}
	if stt.lastBuf.SampleRate != 16000 || stt.lastBuf.Len() != 16000 {
		t.Errorf("Unexpected buffer passed to transcriber: %d Hz, %d samples", stt.lastBuf.SampleRate, stt.lastBuf.Len())
	}
	if res.State != StateDone || res.RunID == "" {
		t.Errorf("Expected done state and a run ID, got %v %q", res.State, res.RunID)
	}
	if want := []State{StateReady, StateProcessing, StateDone}; !equalStates(*states, want) {
		t.Errorf("Expected transitions %v, got %v", want, *states)
	}
}

func TestRunNoSpeech(t *testing.T) {
	tr := &fakeTranslator{out: "x"}
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: &fakeTranscriber{text: ""},
		Translator:  tr,
	})

	res, err := o.Run(context.Background(), Request{Mode: ModeFile, File: speechWAV(t)})
	if code := apperr.ExitCode(err); code != apperr.ExitNoSpeech {
		t.Errorf("Expected exit 2 for empty transcript, got %d (%v)", code, err)
	}
	if res.State != StateError {
		t.Errorf("Expected error state, got %v", res.State)
	}
	if tr.calls != 0 {
		t.Errorf("Expected no translation attempt, got %d", tr.calls)
	}
}

func TestRunTranscriptionFailure(t *testing.T) {
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: &fakeTranscriber{err: apperr.Errorf(apperr.KindTranscription, "test", "decoder crashed")},
	})

	_, err := o.Run(context.Background(), Request{Mode: ModeFile, File: speechWAV(t)})
	if code := apperr.ExitCode(err); code != apperr.ExitTranscriptionFailed {
		t.Errorf("Expected exit 1, got %d (%v)", code, err)
	}
}

func TestRunTemporaryFileRemoved(t *testing.T) {
	testCases := []struct {
		name     string
		stt      *fakeTranscriber
		fail     error
		wantCode int
	}{
		{"success", &fakeTranscriber{text: "hello"}, nil, apperr.ExitOK},
		{"transcription failure", &fakeTranscriber{err: apperr.Errorf(apperr.KindTranscription, "test", "boom")}, nil, apperr.ExitTranscriptionFailed},
		{"no speech", &fakeTranscriber{}, nil, apperr.ExitNoSpeech},
		{"transcoder failure", &fakeTranscriber{text: "unused"}, errors.New("exit status 1"), apperr.ExitFile},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tempDir := t.TempDir()
			input := writeWAV(t, "speech.mp3", []byte("ID3 not really mp3"))
			o := New(DefaultConfig(), Deps{
				Normalizer:  audio.NewNormalizer(&fakeTranscoder{fail: tc.fail}, 16000, tempDir, nil),
				Transcriber: tc.stt,
			})

			_, err := o.Run(context.Background(), Request{Mode: ModeFile, File: input})
			if code := apperr.ExitCode(err); code != tc.wantCode {
				t.Errorf("Expected exit %d, got %d (%v)", tc.wantCode, code, err)
			}

			entries, err := os.ReadDir(tempDir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("Expected temporary files removed, found %d", len(entries))
			}
			if _, err := os.Stat(input); err != nil {
				t.Errorf("Expected input left untouched: %v", err)
			}
		})
	}
}

func TestRunUnsupportedSampleWidth(t *testing.T) {
	stt := &fakeTranscriber{text: "unused"}
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: stt,
	})
	path := writeWAV(t, "8bit.wav", audio.EncodeFrames([]byte{128, 129, 130, 131}, 16000, 1, 8))

	_, err := o.Run(context.Background(), Request{Mode: ModeFile, File: path})
	if !apperr.Is(err, apperr.KindUnsupportedFormat) {
		t.Errorf("Expected unsupported format, got %v", err)
	}
	if stt.calls != 0 {
		t.Error("Expected transcriber not to be called")
	}
}

func TestRunMissingFile(t *testing.T) {
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: &fakeTranscriber{text: "unused"},
	})
	_, err := o.Run(context.Background(), Request{Mode: ModeFile, File: filepath.Join(t.TempDir(), "nope.wav")})
	if !apperr.Is(err, apperr.KindFileNotFound) || apperr.ExitCode(err) != apperr.ExitFile {
		t.Errorf("Expected file not found with exit 4, got %v", err)
	}
}

func TestRunDevice(t *testing.T) {
	rec := &fakeRecorder{buf: audio.FromSamples(make([]int16, 800), 16000)}
	o := New(Config{Duration: 3 * time.Second}, Deps{
		Recorder:    rec,
		Transcriber: &fakeTranscriber{text: "olá"},
	})
	states := recordStates(o)

	res, err := o.Run(context.Background(), Request{Mode: ModeDevice})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rec.duration != 3*time.Second {
		t.Errorf("Expected configured duration, got %v", rec.duration)
	}
	if res.Translated {
		t.Error("Expected no translation without a translator")
	}
	want := []State{StateReady, StateRecording, StateProcessing, StateDone}
	if !equalStates(*states, want) {
		t.Errorf("Expected transitions %v, got %v", want, *states)
	}
}

func TestRunDeviceError(t *testing.T) {
	stt := &fakeTranscriber{text: "unused"}
	o := New(DefaultConfig(), Deps{
		Recorder:    &fakeRecorder{err: apperr.Errorf(apperr.KindDevice, "mic.Record", "no input device")},
		Transcriber: stt,
	})
	states := recordStates(o)

	_, err := o.Run(context.Background(), Request{Mode: ModeDevice, Duration: time.Second})
	if code := apperr.ExitCode(err); code != apperr.ExitNoSpeech {
		t.Errorf("Expected exit 2 for device error, got %d", code)
	}
	if stt.calls != 0 {
		t.Error("Expected transcriber not to be called")
	}
	if want := []State{StateReady, StateRecording, StateError}; !equalStates(*states, want) {
		t.Errorf("Expected transitions %v, got %v", want, *states)
	}
}

func TestRunTranslationFailureIsNotFatal(t *testing.T) {
	tr := &fakeTranslator{err: apperr.Errorf(apperr.KindTranslation, "test", "network down")}
	o := New(DefaultConfig(), Deps{
		Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
		Transcriber: &fakeTranscriber{text: "hello world"},
		Translator:  tr,
	})

	res, err := o.Run(context.Background(), Request{Mode: ModeFile, File: speechWAV(t), ExplicitTarget: "es"})
	if err != nil {
		t.Fatalf("Expected success despite translation failure, got %v", err)
	}
	if res.Text != "hello world" || res.Translation != "" {
		t.Errorf("Unexpected result: %+v", res)
	}
	if !apperr.Is(res.TranslationErr, apperr.KindTranslation) {
		t.Errorf("Expected translation error on result, got %v", res.TranslationErr)
	}
	if tr.calls != 1 {
		t.Errorf("Expected exactly one translation attempt, got %d", tr.calls)
	}
	if res.State != StateDone {
		t.Errorf("Expected done, got %v", res.State)
	}
}

func TestRunLanguageResolution(t *testing.T) {
	testCases := []struct {
		name     string
		explicit string
		label    string
		md       language.ModelMetadata
		want     string
	}{
		{"default label with portuguese model prefers english", "", "", language.ModelMetadata{ModelLanguage: "pt"}, "en"},
		{"default label without metadata", "", "", language.ModelMetadata{}, "pt"},
		{"explicit beats metadata", "es", "Portuguese", language.ModelMetadata{ModelLanguage: "pt"}, "es"},
		{"name lookup", "", "French", language.ModelMetadata{}, "fr"},
		{"explicit name is normalized", "English", "", language.ModelMetadata{}, "en"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &fakeTranslator{out: "ok"}
			o := New(DefaultConfig(), Deps{
				Normalizer:  audio.NewNormalizer(nil, 16000, t.TempDir(), nil),
				Transcriber: &fakeTranscriber{text: "olá mundo"},
				Translator:  tr,
				Metadata:    tc.md,
			})
			if _, err := o.Run(context.Background(), Request{Mode: ModeFile, File: speechWAV(t), ExplicitTarget: tc.explicit, Label: tc.label}); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if tr.lastTarget != tc.want {
				t.Errorf("Expected target %q, got %q", tc.want, tr.lastTarget)
			}
		})
	}
}

func TestRunCanceled(t *testing.T) {
	stt := &fakeTranscriber{text: "unused"}
	o := New(DefaultConfig(), Deps{
		Recorder:    &fakeRecorder{buf: audio.FromSamples([]int16{1, 2}, 16000)},
		Transcriber: stt,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, Request{Mode: ModeDevice})
	if code := apperr.ExitCode(err); code != apperr.ExitCanceled {
		t.Errorf("Expected exit 130, got %d (%v)", code, err)
	}
	if stt.calls != 0 {
		t.Error("Expected transcriber not to be called after cancellation")
	}
	if res.State != StateError {
		t.Errorf("Expected error state, got %v", res.State)
	}
}

func TestRunBufferDownmix(t *testing.T) {
	stt := &fakeTranscriber{text: "hello"}
	o := New(DefaultConfig(), Deps{Transcriber: stt})

	stereo := audio.FromSamples([]int16{1, -1, 2, -2, 3, -3}, 8000)
	stereo.Channels = 2
	if _, err := o.Run(context.Background(), Request{Mode: ModeBuffer, Buffer: stereo}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := stt.lastBuf
	if got.Channels != 1 || got.Len() != 3 || got.SampleRate != 8000 {
		t.Fatalf("Unexpected buffer: %d ch, %d samples, %d Hz", got.Channels, got.Len(), got.SampleRate)
	}
	for i, want := range []int16{1, 2, 3} {
		if got.Sample(i) != want {
			t.Errorf("Sample %d: expected %d, got %d", i, want, got.Sample(i))
		}
	}
}

func TestRunResetsStateBetweenRuns(t *testing.T) {
	o := New(DefaultConfig(), Deps{Transcriber: &fakeTranscriber{}})
	buf := audio.FromSamples([]int16{0, 0}, 16000)

	if _, err := o.Run(context.Background(), Request{Mode: ModeBuffer, Buffer: buf}); err == nil {
		t.Fatal("Expected no-speech error")
	}
	if o.State() != StateError {
		t.Fatalf("Expected error state, got %v", o.State())
	}

	var first Transition
	o.Subscribe(func(tr Transition) {
		if first.RunID == "" {
			first = tr
		}
	})
	o.Run(context.Background(), Request{Mode: ModeBuffer, Buffer: buf})
	if first.From != StateError || first.To != StateReady {
		t.Errorf("Expected reset from error to ready, got %v -> %v", first.From, first.To)
	}
}

func TestStateMachineRefusesBackwardMoves(t *testing.T) {
	var sm stateMachine
	sm.reset("run")
	if !sm.transition(StateProcessing, nil) {
		t.Fatal("Expected ready -> processing")
	}
	if sm.transition(StateRecording, nil) {
		t.Error("Expected processing -> recording to be refused")
	}
	if !sm.transition(StateDone, nil) {
		t.Fatal("Expected processing -> done")
	}
	if sm.transition(StateError, nil) {
		t.Error("Expected terminal state to be final")
	}
	if !StateDone.Terminal() || StateProcessing.Terminal() {
		t.Error("Unexpected Terminal result")
	}
}
