package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := E(KindConversion, "media.Transcode", errors.New("exit status 1"))
	wrapped := fmt.Errorf("normalize input: %w", base)

	if got := KindOf(wrapped); got != KindConversion {
		t.Errorf("Expected kind %s, got %s", KindConversion, got)
	}
	if !Is(wrapped, KindConversion) {
		t.Error("Expected Is to match wrapped kind")
	}
	if !errors.Is(wrapped, E(KindConversion, "", nil)) {
		t.Error("Expected errors.Is to match by kind")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("Expected plain errors to be unknown")
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := E(KindFileNotFound, "audio.LoadFile", os.ErrNotExist)
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{E(KindTranscription, "", nil), ExitTranscriptionFailed},
		{E(KindNoSpeech, "", nil), ExitNoSpeech},
		{E(KindDevice, "", nil), ExitNoSpeech},
		{E(KindModelLoad, "", nil), ExitModelLoad},
		{E(KindFileNotFound, "", nil), ExitFile},
		{E(KindFileRead, "", nil), ExitFile},
		{E(KindUnsupportedFormat, "", nil), ExitFile},
		{E(KindConversion, "", nil), ExitFile},
		{E(KindCanceled, "", nil), ExitCanceled},
		{errors.New("boom"), ExitTranscriptionFailed},
	}

	for _, tc := range testCases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(KindUnsupportedFormat, "audio.LoadFile", "sample width %d bits", 24)
	want := "audio.LoadFile: unsupported_format: sample width 24 bits"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
