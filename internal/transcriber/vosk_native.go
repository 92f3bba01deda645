//go:build vosk

package transcriber

import (
	"context"
	"fmt"

	vosk "github.com/alphacep/vosk-api/go"
)

// NativeModel is a Vosk model loaded in-process through libvosk
type NativeModel struct {
	model *vosk.VoskModel
}

// NewNativeModel loads the model directory at path.
func NewNativeModel(path string) (*NativeModel, error) {
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load Vosk model at %q: %w", path, err)
	}
	return &NativeModel{model: model}, nil
}

// NewRecognizer creates a Kaldi recognizer for sampleRate.
func (m *NativeModel) NewRecognizer(ctx context.Context, sampleRate int) (Recognizer, error) {
	rec, err := vosk.NewRecognizer(m.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	return &nativeRecognizer{rec: rec}, nil
}

func (m *NativeModel) Close() error {
	m.model.Free()
	return nil
}

type nativeRecognizer struct {
	rec   *vosk.VoskRecognizer
	texts []string
}

func (r *nativeRecognizer) AcceptWaveform(pcm []byte) error {
	switch r.rec.AcceptWaveform(pcm) {
	case -1:
		return fmt.Errorf("vosk rejected waveform")
	case 1:
		// An endpoint was detected inside the batch; keep that utterance.
		text, err := textOf(r.rec.Result())
		if err != nil {
			return err
		}
		r.texts = append(r.texts, text)
	}
	return nil
}

func (r *nativeRecognizer) FinalResult() (string, error) {
	text, err := textOf(r.rec.FinalResult())
	if err != nil {
		return "", err
	}
	r.texts = append(r.texts, text)
	return joinText(r.texts), nil
}

func (r *nativeRecognizer) Close() error {
	r.rec.Free()
	return nil
}
