package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
audio:
  duration: 8s
model:
  engine: vosk
  path: /opt/models/pt
translation:
  provider: openai
  timeout: 3s
redis:
  addr: localhost:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.Duration != 8*time.Second {
		t.Errorf("Expected 8s, got %v", cfg.Audio.Duration)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate kept, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Model.Engine != "vosk" || cfg.Model.Path != "/opt/models/pt" {
		t.Errorf("Unexpected model section: %+v", cfg.Model)
	}
	if cfg.Translation.Provider != "openai" || cfg.Translation.Timeout != 3*time.Second {
		t.Errorf("Unexpected translation section: %+v", cfg.Translation)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.SessionPrefix != "cloudwhisper:session:" {
		t.Errorf("Unexpected redis section: %+v", cfg.Redis)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[audio]
sample_rate = 22050
duration = "2s"

[server]
audiosocket_addr = "0.0.0.0:9000"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.Duration != 2*time.Second {
		t.Errorf("Unexpected audio section: %+v", cfg.Audio)
	}
	if cfg.Server.AudioSocketAddr != "0.0.0.0:9000" || cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("Unexpected server section: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging section: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.Path != "model" || cfg.Audio.Duration != 5*time.Second || cfg.Translation.DefaultLabel != "Portuguese" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "config.yaml", "audio:\n  sample_rte: 8000\n"},
		{"bad format", "config.ini", "[audio]\n"},
		{"invalid engine", "config.yaml", "model:\n  engine: whisper\n"},
		{"invalid provider", "config.toml", "[translation]\nprovider = \"deepl\"\n"},
		{"invalid level", "config.yaml", "logging:\n  level: loud\n"},
		{"zero duration", "config.yaml", "audio:\n  duration: 0s\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.file, tc.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSecretsFromEnvironment(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-env")
	t.Setenv(EnvRedisPassword, "hunter2")

	cfg, err := Load(writeConfig(t, "config.yaml", "redis:\n  password: from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Translation.OpenAIKey != "sk-env" {
		t.Errorf("Expected key from env, got %q", cfg.Translation.OpenAIKey)
	}
	if cfg.Redis.Password != "hunter2" {
		t.Errorf("Expected env to override file password, got %q", cfg.Redis.Password)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("CLOUDWHISPER_TEST_VAR", "")
	os.Unsetenv("CLOUDWHISPER_TEST_VAR")

	path := writeConfig(t, ".env", "CLOUDWHISPER_TEST_VAR=from-dotenv\n")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("CLOUDWHISPER_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("Expected from-dotenv, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("Expected missing .env to be ignored, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info to be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("Expected JSON record, got %q", out)
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected error level enabled")
	}
}
