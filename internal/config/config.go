package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvRedisPassword = "CLOUDWHISPER_REDIS_PASSWORD"
)

type Config struct {
	Audio       AudioConfig       `yaml:"audio" toml:"audio"`
	Model       ModelConfig       `yaml:"model" toml:"model"`
	Translation TranslationConfig `yaml:"translation" toml:"translation"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg" toml:"ffmpeg"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Redis       RedisConfig       `yaml:"redis" toml:"redis"`
	Metrics     MetricsConfig     `yaml:"metrics" toml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

type AudioConfig struct {
	SampleRate int           `yaml:"sample_rate" toml:"sample_rate"`
	Duration   time.Duration `yaml:"duration" toml:"duration"`
	Device     string        `yaml:"device" toml:"device"`
}

type ModelConfig struct {
	Path    string `yaml:"path" toml:"path"`
	Engine  string `yaml:"engine" toml:"engine"`
	VoskURL string `yaml:"vosk_url" toml:"vosk_url"`
}

type TranslationConfig struct {
	Provider      string        `yaml:"provider" toml:"provider"`
	DefaultLabel  string        `yaml:"default_label" toml:"default_label"`
	OpenAIModel   string        `yaml:"openai_model" toml:"openai_model"`
	OpenAIBaseURL string        `yaml:"openai_base_url" toml:"openai_base_url"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	OpenAIKey     string        `yaml:"-" toml:"-"`
}

type FFmpegConfig struct {
	Binary string `yaml:"binary" toml:"binary"`
}

type ServerConfig struct {
	AudioSocketAddr string `yaml:"audiosocket_addr" toml:"audiosocket_addr"`
	HTTPAddr        string `yaml:"http_addr" toml:"http_addr"`
	SampleRate      int    `yaml:"sample_rate" toml:"sample_rate"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr" toml:"addr"`
	Password      string `yaml:"password" toml:"password"`
	DB            int    `yaml:"db" toml:"db"`
	SessionPrefix string `yaml:"session_prefix" toml:"session_prefix"`
	EventsChannel string `yaml:"events_channel" toml:"events_channel"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" toml:"pushgateway_url"`
	Job            string `yaml:"job" toml:"job"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Duration:   5 * time.Second,
		},
		Model: ModelConfig{
			Path:    "model",
			Engine:  "vosk-server",
			VoskURL: "ws://localhost:2700",
		},
		Translation: TranslationConfig{
			Provider:     "google",
			DefaultLabel: "Portuguese",
			OpenAIModel:  "gpt-4o-mini",
			Timeout:      10 * time.Second,
		},
		FFmpeg: FFmpegConfig{Binary: "ffmpeg"},
		Server: ServerConfig{
			AudioSocketAddr: ":9092",
			HTTPAddr:        ":8080",
			SampleRate:      8000,
		},
		Redis: RedisConfig{
			SessionPrefix: "cloudwhisper:session:",
			EventsChannel: "cloudwhisper:events",
		},
		Metrics: MetricsConfig{Job: "cloudwhisper"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML or TOML file over the defaults, picking the format from
// the extension, then applies secrets from the environment and an optional
// .env file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := LoadDotEnv(""); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file without overriding ones already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.Translation.OpenAIKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.Redis.Password = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	if c.Audio.Duration <= 0 {
		return fmt.Errorf("audio.duration must be positive")
	}

	switch c.Model.Engine {
	case "vosk-server":
		if c.Model.VoskURL == "" {
			return fmt.Errorf("model.vosk_url is required for the vosk-server engine")
		}
	case "vosk":
		if c.Model.Path == "" {
			return fmt.Errorf("model.path is required for the vosk engine")
		}
	default:
		return fmt.Errorf("model.engine must be vosk-server or vosk, got %q", c.Model.Engine)
	}

	switch c.Translation.Provider {
	case "google", "openai", "none":
	default:
		return fmt.Errorf("translation.provider must be google, openai or none, got %q", c.Translation.Provider)
	}
	if c.Translation.Timeout < 0 {
		return fmt.Errorf("translation.timeout must not be negative")
	}

	if c.Server.SampleRate <= 0 {
		return fmt.Errorf("server.sample_rate must be positive")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative")
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the slog logger described by the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
