package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindDevice            Kind = "device"
	KindFileNotFound      Kind = "file_not_found"
	KindFileRead          Kind = "file_read"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindConversion        Kind = "conversion"
	KindModelLoad         Kind = "model_load"
	KindTranscription     Kind = "transcription"
	KindTranslation       Kind = "translation"
	KindNoSpeech          Kind = "no_speech"
	KindCanceled          Kind = "canceled"
)

// Process exit codes shared by the CLI and the servers
const (
	ExitOK                  = 0
	ExitTranscriptionFailed = 1
	ExitNoSpeech            = 2
	ExitModelLoad           = 3
	ExitFile                = 4
	ExitCanceled            = 130
)

// Error is a classified failure raised at an adapter boundary
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "audio.LoadFile"
	Err  error
}

// E builds an *Error. A nil err yields an error carrying only the kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a formatted message.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, apperr.E(KindX, "", nil)) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit code. Device failures share
// the "nothing to transcribe" code, like the console tool always did.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindNoSpeech, KindDevice:
		return ExitNoSpeech
	case KindModelLoad:
		return ExitModelLoad
	case KindFileNotFound, KindFileRead, KindUnsupportedFormat, KindConversion:
		return ExitFile
	case KindCanceled:
		return ExitCanceled
	default:
		return ExitTranscriptionFailed
	}
}
