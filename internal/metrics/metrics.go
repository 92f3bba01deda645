package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
)

// Stages timed within a run
const (
	StageAcquire    = "acquire"
	StageTranscribe = "transcribe"
	StageTranslate  = "translate"
)

// RunMetrics collects timings and sizes for one pipeline run
type RunMetrics struct {
	Mode              string
	RunID             string
	StartTime         time.Time
	EndTime           time.Time
	AudioBytes        int
	SampleRate        int
	TranscriptLength  int
	TranslationLength int
	Stages            map[string]time.Duration
	mu                sync.Mutex
}

func NewRunMetrics(mode, runID string) *RunMetrics {
	return &RunMetrics{
		Mode:      mode,
		RunID:     runID,
		StartTime: time.Now(),
		Stages:    make(map[string]time.Duration),
	}
}

func (m *RunMetrics) SetAudio(buf audio.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioBytes = len(buf.PCM)
	m.SampleRate = buf.SampleRate
}

// Time records how long a stage took since start.
func (m *RunMetrics) Time(stage string, start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stages[stage] += time.Since(start)
}

func (m *RunMetrics) SetTranscript(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscriptLength = len(text)
}

func (m *RunMetrics) SetTranslation(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranslationLength = len(text)
}

func (m *RunMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		m.EndTime = time.Now()
	}
}

// AudioDuration is the length of the captured audio.
func (m *RunMetrics) AudioDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioDuration()
}

func (m *RunMetrics) audioDuration() time.Duration {
	if m.SampleRate <= 0 {
		return 0
	}
	samples := m.AudioBytes / audio.BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(m.SampleRate)
}

// RealTimeFactor is transcription time divided by audio time.
func (m *RunMetrics) RealTimeFactor() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realTimeFactor()
}

func (m *RunMetrics) realTimeFactor() float64 {
	ad := m.audioDuration()
	if ad <= 0 {
		return 0
	}
	return m.Stages[StageTranscribe].Seconds() / ad.Seconds()
}

func (m *RunMetrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fmt.Sprintf(
		"Mode: %s\n"+
			"Run: %s\n"+
			"Duration: %v\n"+
			"Audio Duration: %.2f seconds\n"+
			"Audio Bytes: %d\n"+
			"Sample Rate: %d Hz\n"+
			"Acquire: %v\n"+
			"Transcribe: %v\n"+
			"Translate: %v\n"+
			"Transcript Length: %d chars\n"+
			"Translation Length: %d chars\n"+
			"Real-time Factor: %.2fx\n",
		m.Mode,
		m.RunID,
		m.EndTime.Sub(m.StartTime),
		m.audioDuration().Seconds(),
		m.AudioBytes,
		m.SampleRate,
		m.Stages[StageAcquire],
		m.Stages[StageTranscribe],
		m.Stages[StageTranslate],
		m.TranscriptLength,
		m.TranslationLength,
		m.realTimeFactor(),
	)
}
