// Package report renders pipeline results on the console.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/transcriber"
)

// Presenter writes results to out and progress and diagnostics to diag.
type Presenter struct {
	out  io.Writer
	diag io.Writer

	outStyles  styles
	diagStyles styles

	mu       sync.Mutex
	duration time.Duration
}

func NewPresenter(out, diag io.Writer) *Presenter {
	return &Presenter{
		out:        out,
		diag:       diag,
		outStyles:  newStyles(lipgloss.NewRenderer(out)),
		diagStyles: newStyles(lipgloss.NewRenderer(diag)),
	}
}

// SetRecordingDuration is shown in the recording prompt.
func (p *Presenter) SetRecordingDuration(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duration = d
}

// Listener prints a status line for the phases the user waits on.
func (p *Presenter) Listener() pipeline.Listener {
	return func(tr pipeline.Transition) {
		p.mu.Lock()
		defer p.mu.Unlock()

		s := p.diagStyles
		switch tr.To {
		case pipeline.StateRecording:
			msg := "Recording... (please speak)"
			if p.duration > 0 {
				msg = fmt.Sprintf("Recording for %s... (please speak)", formatSeconds(p.duration))
			}
			fmt.Fprintln(p.diag, s.status.Render(msg))
		case pipeline.StateProcessing:
			if tr.From == pipeline.StateRecording {
				fmt.Fprintln(p.diag, s.status.Render("Transcribing..."))
			} else {
				fmt.Fprintln(p.diag, s.status.Render("Processing file..."))
			}
		}
	}
}

// Result prints the transcript, the translation and the simulated
// application output.
func (p *Presenter) Result(res *pipeline.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.outStyles
	fmt.Fprintln(p.out, s.title.Render("Transcription complete!"))
	fmt.Fprintf(p.out, "%s %s\n", s.label.Render("Text:"), res.Text)

	if res.TranslationErr != nil {
		fmt.Fprintf(p.diag, "%s %v\n", p.diagStyles.errText.Render("Translation error:"), res.TranslationErr)
		return
	}
	if !res.Translated {
		return
	}

	fmt.Fprintf(p.out, "%s %s\n", s.label.Render(fmt.Sprintf("Translation (%s):", res.Target.Code)), res.Translation)
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, s.block.Render("--- Simulated Output ---"))
	fmt.Fprintf(p.out, "Target Language: %s\n", res.Target.Label)
	fmt.Fprintf(p.out, "Output Text: %s\n", res.Translation)
	fmt.Fprintln(p.out, s.block.Render("--- End Simulated Output ---"))
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "Original: %q\n", res.Text)
}

// Failure explains err to the user.
func (p *Presenter) Failure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.diagStyles
	switch apperr.KindOf(err) {
	case apperr.KindNoSpeech:
		fmt.Fprintln(p.out, "No transcription detected.")
	case apperr.KindModelLoad:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Model load failed:"), err)
		fmt.Fprintln(p.diag, s.muted.Render(transcriber.ModelGuidance))
	case apperr.KindTranscription:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Transcription failed:"), err)
	case apperr.KindDevice:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Recording error:"), err)
	case apperr.KindFileNotFound:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Audio file not found:"), err)
	case apperr.KindConversion:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Error converting audio:"), err)
	case apperr.KindFileRead, apperr.KindUnsupportedFormat:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Error reading audio file:"), err)
	case apperr.KindCanceled:
		fmt.Fprintln(p.diag, s.muted.Render("Canceled."))
	default:
		fmt.Fprintf(p.diag, "%s %v\n", s.errText.Render("Error:"), err)
	}
}

// Summary prints run metrics on the diagnostic stream.
func (p *Presenter) Summary(res *pipeline.Result) {
	if res == nil || res.Metrics == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.diag, p.diagStyles.muted.Render(res.Metrics.Summary()))
	fmt.Fprintln(p.diag)
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return fmt.Sprintf("%.1f seconds", d.Seconds())
}
