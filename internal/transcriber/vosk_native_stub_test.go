//go:build !vosk

package transcriber

import (
	"context"
	"errors"
	"testing"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
)

func TestNativeModelRequiresBuildTag(t *testing.T) {
	_, err := LoadModel(context.Background(), Config{Engine: EngineVosk, ModelPath: t.TempDir()}, nil)
	if !apperr.Is(err, apperr.KindModelLoad) {
		t.Errorf("Expected model load error, got %v", err)
	}
	if !errors.Is(err, ErrNativeUnavailable) {
		t.Errorf("Expected ErrNativeUnavailable in chain, got %v", err)
	}
}
