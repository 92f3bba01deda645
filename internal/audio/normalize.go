package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
)

// Transcoder converts an arbitrary audio file into a PCM16 WAV file.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath string, sampleRate, channels int) error
}

// Normalized is the canonical WAV produced for an input file.
type Normalized struct {
	Path string
	// Temporary is true when Path was created by the normalizer; the caller
	// owns it and must call Cleanup.
	Temporary bool
}

// Cleanup removes a temporary file. Failures are logged, never returned.
func (n *Normalized) Cleanup(logger *slog.Logger) {
	if n == nil || !n.Temporary || n.Path == "" {
		return
	}
	if err := os.Remove(n.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Failed to remove temporary audio file",
			slog.String("path", n.Path),
			slog.String("error", err.Error()),
		)
	}
}

// Normalizer turns input files into mono WAV files at a fixed sample rate.
type Normalizer struct {
	transcoder Transcoder
	sampleRate int
	tempDir    string
	logger     *slog.Logger
}

// NewNormalizer creates a normalizer. An empty tempDir uses os.TempDir().
func NewNormalizer(transcoder Transcoder, sampleRate int, tempDir string, logger *slog.Logger) *Normalizer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		transcoder: transcoder,
		sampleRate: sampleRate,
		tempDir:    tempDir,
		logger:     logger,
	}
}

// IsCanonical reports whether path already is a WAV container.
func IsCanonical(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// Normalize returns path unchanged for WAV input. Anything else is transcoded
// into a temporary WAV that the caller must Cleanup.
func (n *Normalizer) Normalize(ctx context.Context, path string) (*Normalized, error) {
	const op = "audio.Normalize"

	if IsCanonical(path) {
		return &Normalized{Path: path}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.E(apperr.KindFileNotFound, op, err)
		}
		return nil, apperr.E(apperr.KindFileRead, op, err)
	}
	if n.transcoder == nil {
		return nil, apperr.Errorf(apperr.KindConversion, op, "no transcoder configured for %s", filepath.Ext(path))
	}

	tmp, err := os.CreateTemp(n.tempDir, "cloudwhisper-*.wav")
	if err != nil {
		return nil, apperr.E(apperr.KindConversion, op, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	tmp.Close()

	out := &Normalized{Path: tmpPath, Temporary: true}

	n.logger.Debug("Transcoding input",
		slog.String("input", path),
		slog.String("output", tmpPath),
		slog.Int("sample_rate", n.sampleRate),
	)
	if err := n.transcoder.Transcode(ctx, path, tmpPath, n.sampleRate, 1); err != nil {
		out.Cleanup(n.logger)
		return nil, apperr.E(apperr.KindConversion, op, err)
	}

	return out, nil
}
