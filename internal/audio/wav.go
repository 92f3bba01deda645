package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Errors returned by DecodeWAV. Callers classify them into pipeline kinds.
var (
	ErrNotWAV          = errors.New("not a valid WAV file")
	ErrNotPCM          = errors.New("WAV is not integer PCM")
	ErrMissingFmtChunk = errors.New("WAV has no fmt chunk")
	ErrMissingData     = errors.New("WAV has no data chunk")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	// WAVE_FORMAT_EXTENSIBLE is the largest fmt chunk in use (40 bytes)
	maxFmtChunk = 64
)

// WAVInfo describes the fmt chunk of a WAV stream
type WAVInfo struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// SampleWidth returns the sample width in bytes.
func (i WAVInfo) SampleWidth() int {
	return i.BitsPerSample / 8
}

// DecodeWAV reads a RIFF/WAVE stream and returns the fmt description and the
// raw interleaved frames of the data chunk. Chunks other than fmt and data are
// skipped, so files with LIST or fact chunks decode fine.
func DecodeWAV(r io.Reader) (WAVInfo, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WAVInfo{}, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVInfo{}, nil, ErrNotWAV
	}

	var (
		info    WAVInfo
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				if !haveFmt {
					return WAVInfo{}, nil, ErrMissingFmtChunk
				}
				return WAVInfo{}, nil, ErrMissingData
			}
			return WAVInfo{}, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 || size > maxFmtChunk {
				return WAVInfo{}, nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrNotWAV, size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return WAVInfo{}, nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			info = WAVInfo{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if info.AudioFormat != wavFormatPCM && info.AudioFormat != wavFormatExtensible {
				return info, nil, fmt.Errorf("%w: format tag %d", ErrNotPCM, info.AudioFormat)
			}
			if info.Channels <= 0 {
				return info, nil, fmt.Errorf("invalid channel count %d", info.Channels)
			}
			haveFmt = true
			if size%2 == 1 {
				if _, err := io.CopyN(io.Discard, r, 1); err != nil {
					return WAVInfo{}, nil, fmt.Errorf("failed to skip pad byte: %w", err)
				}
			}

		case "data":
			if !haveFmt {
				return WAVInfo{}, nil, ErrMissingFmtChunk
			}
			// Some writers leave the size at 0 or 0xFFFFFFFF when streaming.
			// The header size only bounds the read; memory grows with the
			// bytes actually present, and a truncated chunk keeps what was read.
			src := r
			if size != 0 && size != 0xFFFFFFFF {
				src = io.LimitReader(r, size)
			}
			data, err := io.ReadAll(src)
			if err != nil {
				return WAVInfo{}, nil, fmt.Errorf("failed to read data chunk: %w", err)
			}
			return info, data, nil

		default:
			skip := size + size%2
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return WAVInfo{}, nil, fmt.Errorf("failed to skip %q chunk: %w", id, err)
			}
		}
	}
}

// EncodeWAV writes a mono PCM16 buffer as a canonical 44-byte header WAV.
func EncodeWAV(b Buffer) []byte {
	return EncodeFrames(b.PCM, b.SampleRate, 1, 16)
}

// EncodeFrames writes interleaved frames with the given layout as a WAV file.
func EncodeFrames(frames []byte, sampleRate, channels, bitsPerSample int) []byte {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(frames)

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(frames)

	return buf.Bytes()
}
