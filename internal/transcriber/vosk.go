package transcriber

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultChunkBytes is 0.25s of 16kHz PCM16 per websocket frame
const DefaultChunkBytes = 8000

// VoskServerModel is a model hosted by a vosk-server websocket endpoint
type VoskServerModel struct {
	serverURL  string
	dialer     *websocket.Dialer
	chunkBytes int
}

// NewVoskServerModel checks the server is reachable and returns a model
// handle. Each recognizer opens its own connection.
func NewVoskServerModel(ctx context.Context, serverURL string) (*VoskServerModel, error) {
	m := &VoskServerModel{
		serverURL:  strings.TrimRight(serverURL, "/"),
		dialer:     websocket.DefaultDialer,
		chunkBytes: DefaultChunkBytes,
	}

	conn, _, err := m.dialer.DialContext(ctx, m.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}
	// Probe only; the server expects a config or audio message next.
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	return m, nil
}

// NewRecognizer opens a session configured for sampleRate.
func (m *VoskServerModel) NewRecognizer(ctx context.Context, sampleRate int) (Recognizer, error) {
	conn, _, err := m.dialer.DialContext(ctx, m.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}

	config := fmt.Sprintf(`{"config": {"sample_rate": %d}}`, sampleRate)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(config)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure Vosk session: %w", err)
	}

	vr := &voskServerRecognizer{
		conn:       conn,
		chunkBytes: m.chunkBytes,
	}
	// Closing the connection unblocks any pending read or write.
	vr.stop = context.AfterFunc(ctx, func() { conn.Close() })
	return vr, nil
}

// Close is a no-op; the server owns the model.
func (m *VoskServerModel) Close() error {
	return nil
}

type voskServerRecognizer struct {
	conn       *websocket.Conn
	chunkBytes int
	texts      []string
	stop       func() bool
	closeOnce  sync.Once
}

// AcceptWaveform sends the audio in frames. The server answers every frame
// with a partial or a full result; full results are collected.
func (vr *voskServerRecognizer) AcceptWaveform(pcm []byte) error {
	for off := 0; off < len(pcm); off += vr.chunkBytes {
		end := off + vr.chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := vr.conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return fmt.Errorf("failed to send audio to Vosk: %w", err)
		}
		if err := vr.readResult(); err != nil {
			return err
		}
	}
	return nil
}

// FinalResult sends EOF and returns every recognized utterance joined.
func (vr *voskServerRecognizer) FinalResult() (string, error) {
	if err := vr.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return "", fmt.Errorf("failed to send EOF to Vosk: %w", err)
	}
	if err := vr.readResult(); err != nil {
		return "", err
	}
	return joinText(vr.texts), nil
}

func (vr *voskServerRecognizer) readResult() error {
	_, message, err := vr.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read Vosk result: %w", err)
	}
	res, err := ParseVoskResult(message)
	if err != nil {
		return err
	}
	if res.IsFinal() {
		vr.texts = append(vr.texts, *res.Text)
	}
	return nil
}

func (vr *voskServerRecognizer) Close() error {
	var err error
	vr.closeOnce.Do(func() {
		if vr.stop != nil {
			vr.stop()
		}
		vr.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = vr.conn.Close()
	})
	return err
}
