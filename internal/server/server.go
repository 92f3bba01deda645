package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/CyCoreSystems/audiosocket"
	"github.com/google/uuid"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
)

// AudioSocket delivers signed linear 16-bit mono audio at 8kHz
const AudioSocketSampleRate = 8000

// PipelineFactory returns a fresh orchestrator; every call and request gets
// its own.
type PipelineFactory func() *pipeline.Orchestrator

type Config struct {
	Addr            string
	SampleRate      int
	MaxCallDuration time.Duration // audio beyond this is dropped
	RunTimeout      time.Duration // transcription and translation budget per call
	StoreTimeout    time.Duration // budget for writing the outcome, independent of the run
}

// Server accepts Asterisk AudioSocket calls and transcribes each call once
// the caller hangs up.
type Server struct {
	config      Config
	newPipeline PipelineFactory
	sessions    *SessionStore
	listeners   []func(callID string) pipeline.Listener
	logger      *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
}

type Session struct {
	id        uuid.UUID
	conn      net.Conn
	server    *Server
	pcm       []byte
	maxBytes  int
	truncated bool
	startTime time.Time
	logger    *slog.Logger
}

func New(config Config, newPipeline PipelineFactory, sessions *SessionStore, logger *slog.Logger) (*Server, error) {
	if newPipeline == nil {
		return nil, fmt.Errorf("pipeline factory is required")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = AudioSocketSampleRate
	}
	if config.MaxCallDuration <= 0 {
		config.MaxCallDuration = 5 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 2 * time.Minute
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:      config,
		newPipeline: newPipeline,
		sessions:    sessions,
		logger:      logger,
		shutdown:    make(chan struct{}),
	}, nil
}

// OnCall registers a listener factory attached to every call's pipeline.
func (s *Server) OnCall(f func(callID string) pipeline.Listener) {
	s.listeners = append(s.listeners, f)
}

// Listen binds the configured address. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.logger.Info("AudioSocket server listening",
		slog.String("addr", s.listener.Addr().String()),
		slog.Int("sample_rate", s.config.SampleRate),
	)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("Accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Stop closes the listener and waits for calls in progress.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.logger.Debug("New connection", slog.String("remote", conn.RemoteAddr().String()))

	id, err := audiosocket.GetID(conn)
	if err != nil {
		s.logger.Warn("Failed to get call ID", slog.String("error", err.Error()))
		return
	}

	session := &Session{
		id:        id,
		conn:      conn,
		server:    s,
		maxBytes:  int(s.config.MaxCallDuration.Seconds() * float64(s.config.SampleRate) * audio.BytesPerSample),
		startTime: time.Now(),
		logger:    s.logger.With(slog.String("call_id", id.String())),
	}
	session.logger.Info("Call started")

	for {
		msg, err := audiosocket.NextMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				session.logger.Warn("Failed to read message", slog.String("error", err.Error()))
			}
			break
		}

		if msg.Kind() == audiosocket.KindHangup {
			session.logger.Debug("Received hangup")
			break
		}
		if err := session.handleMessage(msg); err != nil {
			session.logger.Warn("Error handling message", slog.String("error", err.Error()))
			break
		}
	}

	session.finalize()
}

func (session *Session) handleMessage(msg audiosocket.Message) error {
	switch msg.Kind() {
	case audiosocket.KindSlin:
		payload := msg.Payload()
		if len(payload) == 0 {
			return nil
		}
		if len(session.pcm)+len(payload) > session.maxBytes {
			if !session.truncated {
				session.logger.Warn("Call exceeds maximum duration, dropping audio",
					slog.Duration("max", session.server.config.MaxCallDuration))
				session.truncated = true
			}
			return nil
		}
		session.pcm = append(session.pcm, payload...)

	case audiosocket.KindError:
		return fmt.Errorf("received error code: %d", msg.ErrorCode())
	}

	return nil
}

// finalize transcribes the collected audio and stores the outcome.
func (session *Session) finalize() {
	s := session.server
	callID := session.id.String()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()
	// Abort the run when the server shuts down.
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()

	vars := s.sessions.Lookup(ctx, callID)

	orch := s.newPipeline()
	for _, f := range s.listeners {
		orch.Subscribe(f(callID))
	}

	// Drop an odd trailing byte so the buffer stays sample aligned.
	pcm := session.pcm[:len(session.pcm)-len(session.pcm)%audio.BytesPerSample]
	res, err := orch.Run(ctx, pipeline.Request{
		Mode:           pipeline.ModeBuffer,
		Buffer:         audio.Buffer{PCM: pcm, SampleRate: s.config.SampleRate, Channels: 1},
		ExplicitTarget: vars.TranslateTarget,
		Label:          vars.Lang,
	})

	// The run context is done after a timeout or shutdown, which is exactly
	// when the failed outcome still has to be recorded.
	storeCtx, storeCancel := context.WithTimeout(context.Background(), s.config.StoreTimeout)
	s.sessions.Store(storeCtx, callID, res, err)
	storeCancel()

	attrs := []any{
		slog.Duration("duration", time.Since(session.startTime)),
		slog.Duration("audio", time.Duration(len(pcm)/audio.BytesPerSample)*time.Second/time.Duration(s.config.SampleRate)),
		slog.String("state", res.State.String()),
	}
	if err != nil {
		session.logger.Warn("Call ended without transcript", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	session.logger.Info("Call transcribed", append(attrs,
		slog.String("text", res.Text),
		slog.String("translation", res.Translation),
		slog.String("target", res.Target.Code),
	)...)
}
