// Package mic records audio from an input device using PortAudio.
package mic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
)

const (
	// DefaultFramesPerBuffer is the PortAudio read size
	DefaultFramesPerBuffer = 512
)

// Config holds device capture settings
type Config struct {
	SampleRate      int
	FramesPerBuffer int
	DeviceName      string // empty or "default" selects the system default input
}

// Recorder captures fixed-length mono recordings.
type Recorder struct {
	config Config
	logger *slog.Logger
}

// NewRecorder creates a recorder with defaults filled in.
func NewRecorder(cfg Config, logger *slog.Logger) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{config: cfg, logger: logger}
}

// Record blocks for duration (or until ctx is done) and returns the captured
// audio. The stream and PortAudio itself are released on every return path.
func (r *Recorder) Record(ctx context.Context, duration time.Duration) (audio.Buffer, error) {
	const op = "mic.Record"

	if duration <= 0 {
		return audio.Buffer{}, apperr.Errorf(apperr.KindDevice, op, "invalid recording duration %v", duration)
	}

	if err := portaudio.Initialize(); err != nil {
		return audio.Buffer{}, apperr.E(apperr.KindDevice, op, fmt.Errorf("failed to initialize PortAudio: %w", err))
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			r.logger.Warn("Failed to terminate PortAudio", slog.String("error", err.Error()))
		}
	}()

	in := make([]float32, r.config.FramesPerBuffer)
	stream, err := r.open(in)
	if err != nil {
		return audio.Buffer{}, apperr.E(apperr.KindDevice, op, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return audio.Buffer{}, apperr.E(apperr.KindDevice, op, fmt.Errorf("failed to start audio stream: %w", err))
	}
	defer stream.Stop()

	total := int(duration.Seconds() * float64(r.config.SampleRate))
	samples := make([]float32, 0, total)

	r.logger.Info("Recording started",
		slog.Duration("duration", duration),
		slog.Int("sample_rate", r.config.SampleRate),
		slog.String("device", r.deviceLabel()),
	)

	for len(samples) < total {
		if err := ctx.Err(); err != nil {
			return audio.Buffer{}, apperr.E(apperr.KindCanceled, op, err)
		}
		if err := stream.Read(); err != nil {
			return audio.Buffer{}, apperr.E(apperr.KindDevice, op, fmt.Errorf("failed to read audio: %w", err))
		}
		n := len(in)
		if remaining := total - len(samples); remaining < n {
			n = remaining
		}
		samples = append(samples, in[:n]...)
	}

	r.logger.Info("Recording finished", slog.Int("samples", len(samples)))
	return audio.QuantizeAll(samples, r.config.SampleRate), nil
}

func (r *Recorder) open(buffer []float32) (*portaudio.Stream, error) {
	rate := float64(r.config.SampleRate)

	if name := r.config.DeviceName; name != "" && name != "default" {
		device, err := findInputDevice(name)
		if err != nil {
			return nil, err
		}
		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   device,
				Channels: 1,
				Latency:  device.DefaultLowInputLatency,
			},
			SampleRate:      rate,
			FramesPerBuffer: len(buffer),
		}
		stream, err := portaudio.OpenStream(params, buffer)
		if err != nil {
			return nil, fmt.Errorf("failed to open device %q: %w", name, err)
		}
		return stream, nil
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, rate, len(buffer), buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open default input: %w", err)
	}
	return stream, nil
}

func (r *Recorder) deviceLabel() string {
	if r.config.DeviceName == "" {
		return "default"
	}
	return r.config.DeviceName
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", name)
}

// DeviceInfo describes an input device
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices returns the devices that can record.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperr.E(apperr.KindDevice, "mic.ListInputDevices", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperr.E(apperr.KindDevice, "mic.ListInputDevices", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         dev.Name == defaultName,
		})
	}
	return out, nil
}
