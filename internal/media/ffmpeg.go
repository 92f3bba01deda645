package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrFFmpegNotFound is returned when the ffmpeg binary cannot be located.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// FFmpeg transcodes audio files by running the ffmpeg binary.
type FFmpeg struct {
	Binary string // defaults to "ffmpeg"
}

// NewFFmpeg returns a transcoder using binary, or "ffmpeg" when empty.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

// Args builds the ffmpeg command line for a mono PCM16 WAV conversion.
func Args(inPath, outPath string, sampleRate, channels int) []string {
	// ffmpeg -y -hide_banner -loglevel error -i input -ar 16000 -ac 1 output
	return []string{
		"-y", "-hide_banner",
		"-loglevel", "error",
		"-i", inPath,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
}

// Transcode converts inPath to a WAV at outPath. The process is killed when
// ctx is cancelled.
func (f *FFmpeg) Transcode(ctx context.Context, inPath, outPath string, sampleRate, channels int) error {
	bin, err := exec.LookPath(f.Binary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}

	cmd := exec.CommandContext(ctx, bin, Args(inPath, outPath, sampleRate, channels)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
