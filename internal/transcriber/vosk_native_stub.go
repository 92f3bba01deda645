//go:build !vosk

package transcriber

import (
	"context"
	"errors"
)

// ErrNativeUnavailable is returned when the binary was built without libvosk.
var ErrNativeUnavailable = errors.New("native Vosk support not compiled in; rebuild with -tags vosk or use the vosk-server engine")

// NativeModel is unavailable in this build
type NativeModel struct{}

// NewNativeModel always fails without the vosk build tag.
func NewNativeModel(path string) (*NativeModel, error) {
	return nil, ErrNativeUnavailable
}

func (m *NativeModel) NewRecognizer(ctx context.Context, sampleRate int) (Recognizer, error) {
	return nil, ErrNativeUnavailable
}

func (m *NativeModel) Close() error {
	return nil
}
