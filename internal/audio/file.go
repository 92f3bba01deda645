package audio

import (
	"bufio"
	"errors"
	"io/fs"
	"os"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
)

// LoadFile reads a PCM16 WAV file into a mono Buffer. Multi-channel input is
// reduced to its first channel; samples are copied, not averaged.
func LoadFile(path string) (Buffer, error) {
	const op = "audio.LoadFile"

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Buffer{}, apperr.E(apperr.KindFileNotFound, op, err)
		}
		return Buffer{}, apperr.E(apperr.KindFileRead, op, err)
	}
	defer f.Close()

	info, frames, err := DecodeWAV(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, ErrNotPCM) {
			return Buffer{}, apperr.E(apperr.KindUnsupportedFormat, op, err)
		}
		return Buffer{}, apperr.E(apperr.KindFileRead, op, err)
	}

	if info.BitsPerSample%8 != 0 || info.SampleWidth() != BytesPerSample {
		return Buffer{}, apperr.Errorf(apperr.KindUnsupportedFormat, op,
			"unsupported WAV sample width: %d bits", info.BitsPerSample)
	}

	buf, err := NewBuffer(FirstChannel(frames, info.Channels), info.SampleRate)
	if err != nil {
		return Buffer{}, apperr.E(apperr.KindFileRead, op, err)
	}
	return buf, nil
}

// FirstChannel extracts channel 0 from interleaved PCM16 frames. A trailing
// partial frame is dropped. Mono input is returned as-is.
func FirstChannel(frames []byte, channels int) []byte {
	frameSize := channels * BytesPerSample
	n := len(frames) / frameSize
	if channels == 1 {
		return frames[:n*frameSize]
	}

	out := make([]byte, n*BytesPerSample)
	for i := 0; i < n; i++ {
		copy(out[i*2:i*2+2], frames[i*frameSize:i*frameSize+2])
	}
	return out
}
