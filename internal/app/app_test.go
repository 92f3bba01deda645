package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/config"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
)

// voskStub answers every audio frame with a partial and EOF with text.
func voskStub(text string) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch {
			case kind == websocket.BinaryMessage:
				conn.WriteMessage(websocket.TextMessage, []byte(`{"partial": ""}`))
			case strings.Contains(string(msg), "eof"):
				conn.WriteMessage(websocket.TextMessage, []byte(`{"text": "`+text+`"}`))
				return
			}
		}
	}
}

func TestBuildAndRun(t *testing.T) {
	srv := httptest.NewServer(voskStub("hello world"))
	defer srv.Close()

	cfg := config.Default()
	cfg.Model.VoskURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Model.Path = t.TempDir()
	cfg.Translation.Provider = "none"

	c, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer c.Close()
	if c.Translator != nil {
		t.Error("Expected translation disabled")
	}

	res, err := c.Pipeline(nil).Run(context.Background(), pipeline.Request{
		Mode:   pipeline.ModeBuffer,
		Buffer: audio.FromSamples(make([]int16, 8000), 16000),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Text != "hello world" || res.Translated {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestBuildModelLoadFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Model.VoskURL = "ws://127.0.0.1:1"

	_, err := Build(context.Background(), cfg, nil)
	if apperr.ExitCode(err) != apperr.ExitModelLoad {
		t.Errorf("Expected exit 3, got %v", err)
	}
}

func TestBuildKeepsRunningWithoutOpenAIKey(t *testing.T) {
	srv := httptest.NewServer(voskStub(""))
	defer srv.Close()

	cfg := config.Default()
	cfg.Model.VoskURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Translation.Provider = "openai"
	cfg.Translation.OpenAIKey = ""

	c, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if c.Translator != nil {
		t.Error("Expected translation disabled without an API key")
	}
}

func TestNewRedis(t *testing.T) {
	if NewRedis(config.RedisConfig{}) != nil {
		t.Error("Expected no client without an address")
	}
	client := NewRedis(config.RedisConfig{Addr: "localhost:6379", DB: 2})
	if client == nil || client.Options().DB != 2 {
		t.Error("Expected client for DB 2")
	}
	client.Close()
}
