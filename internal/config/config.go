// Package config loads schedula settings from an optional YAML file, a .env file
// and the process environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPIURL        = "http://127.0.0.1:8000"
	defaultAPITimeout    = 30 * time.Second
	defaultFallbackDelay = 1500 * time.Millisecond
	defaultPort          = "8080"
	defaultDatabase      = "schedula"
	defaultCollection    = "session_messages"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// Audio modes
const (
	AudioModeDevice = "device"
	AudioModeMock   = "mock"
	AudioModeNone   = "none"
)

// Chat backends
const (
	ChatBackendHTTP   = "http"
	ChatBackendGemini = "gemini"
	ChatBackendMock   = "mock"
)

// Config is the full process configuration
type Config struct {
	API             APIConfig        `yaml:"api"`
	Session         SessionConfig    `yaml:"session"`
	Audio           AudioConfig      `yaml:"audio"`
	Chat            ChatConfig       `yaml:"chat"`
	ElevenLabs      ElevenLabsConfig `yaml:"eleven_labs"`
	Archive         ArchiveConfig    `yaml:"archive"`
	Control         ControlConfig    `yaml:"control"`
	Log             LogConfig        `yaml:"log"`
	CredentialsFile string           `yaml:"credentials_file"`
}

// APIConfig points at the schedule assistant backend
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig tunes the conversation session
type SessionConfig struct {
	Greeting      string        `yaml:"greeting"`
	FallbackReply string        `yaml:"fallback_reply"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
	VoiceLanguage string        `yaml:"voice_language"`
	Rate          float64       `yaml:"rate"`
	Pitch         float64       `yaml:"pitch"`
	Volume        float64       `yaml:"volume"`
}

// AudioConfig selects and configures the audio devices
type AudioConfig struct {
	Mode       string `yaml:"mode"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
	SampleRate int    `yaml:"sample_rate"`
	Encoding   string `yaml:"encoding"`
	Language   string `yaml:"language"`
}

// ChatConfig selects the chat backend; "gemini" answers locally without the HTTP API
type ChatConfig struct {
	Backend      string `yaml:"backend"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
}

// ElevenLabsConfig holds the text-to-speech settings; empty APIKey disables it
type ElevenLabsConfig struct {
	APIKey       string  `yaml:"api_key"`
	APIBaseURL   string  `yaml:"api_base_url"`
	VoiceID      string  `yaml:"voice_id"`
	ModelID      string  `yaml:"model_id"`
	OutputFormat string  `yaml:"output_format"`
	Stability    float64 `yaml:"stability"`
	Clarity      float64 `yaml:"clarity"`
}

// ArchiveConfig configures the message archive; empty MongoURI keeps it in memory
type ArchiveConfig struct {
	MongoURI   string `yaml:"mongo_uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// ControlConfig configures the local control API
type ControlConfig struct {
	Port  string `yaml:"port"`
	Token string `yaml:"token"`
}

// LogConfig configures log output
type LogConfig struct {
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a config with every default applied
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: defaultAPIURL,
			Timeout: defaultAPITimeout,
		},
		Session: SessionConfig{
			FallbackDelay: defaultFallbackDelay,
			VoiceLanguage: "en-",
			Rate:          1,
			Pitch:         1,
			Volume:        1,
		},
		Audio: AudioConfig{
			Mode:       AudioModeNone,
			SampleRate: 16000,
			Encoding:   "LINEAR16",
			Language:   "en-US",
		},
		Chat: ChatConfig{
			Backend:     ChatBackendHTTP,
			GeminiModel: defaultGeminiModel,
		},
		Archive: ArchiveConfig{
			Database:   defaultDatabase,
			Collection: defaultCollection,
		},
		Control: ControlConfig{
			Port: defaultPort,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxAgeDays: 30,
			MaxBackups: 5,
			Compress:   true,
		},
		CredentialsFile: defaultCredentialsFile(),
	}
}

// Load builds the config. path may be empty; a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("SCHEDULA_API_URL", &c.API.BaseURL)
	duration("SCHEDULA_API_TIMEOUT", &c.API.Timeout)
	duration("SCHEDULA_FALLBACK_DELAY", &c.Session.FallbackDelay)

	str("SCHEDULA_AUDIO_MODE", &c.Audio.Mode)
	str("SCHEDULA_AUDIO_INPUT", &c.Audio.InputPath)
	str("SCHEDULA_AUDIO_OUTPUT", &c.Audio.OutputPath)
	str("SCHEDULA_AUDIO_LANGUAGE", &c.Audio.Language)

	str("SCHEDULA_CHAT_BACKEND", &c.Chat.Backend)
	str("GEMINI_API_KEY", &c.Chat.GeminiAPIKey)
	str("GEMINI_MODEL", &c.Chat.GeminiModel)

	str("ELEVEN_LABS_API_KEY", &c.ElevenLabs.APIKey)
	str("ELEVEN_LABS_API_BASE_URL", &c.ElevenLabs.APIBaseURL)
	str("ELEVEN_LABS_VOICE_ID", &c.ElevenLabs.VoiceID)
	str("ELEVEN_LABS_MODEL_ID", &c.ElevenLabs.ModelID)
	str("ELEVEN_LABS_OUTPUT_FORMAT", &c.ElevenLabs.OutputFormat)
	float("ELEVEN_LABS_STABILITY", &c.ElevenLabs.Stability)
	float("ELEVEN_LABS_CLARITY", &c.ElevenLabs.Clarity)

	str("MONGODB_URI", &c.Archive.MongoURI)
	str("MONGODB_DATABASE", &c.Archive.Database)

	str("PORT", &c.Control.Port)
	str("SCHEDULA_CONTROL_TOKEN", &c.Control.Token)

	str("SCHEDULA_LOG_DIR", &c.Log.Dir)
	str("SCHEDULA_LOG_LEVEL", &c.Log.Level)

	str("SCHEDULA_CREDENTIALS_FILE", &c.CredentialsFile)
}

// Validate checks the config for values no component could work with
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Session.FallbackDelay < 0 {
		return fmt.Errorf("fallback delay must not be negative, got %s", c.Session.FallbackDelay)
	}

	switch c.Audio.Mode {
	case AudioModeDevice, AudioModeMock, AudioModeNone:
	default:
		return fmt.Errorf("unknown audio mode %q", c.Audio.Mode)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.Audio.SampleRate)
	}

	switch c.Chat.Backend {
	case ChatBackendHTTP, ChatBackendMock:
	case ChatBackendGemini:
		if c.Chat.GeminiAPIKey == "" {
			return fmt.Errorf("gemini chat backend requires GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown chat backend %q", c.Chat.Backend)
	}

	if c.ElevenLabs.Stability < 0 || c.ElevenLabs.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %f", c.ElevenLabs.Stability)
	}
	if c.ElevenLabs.Clarity < 0 || c.ElevenLabs.Clarity > 1 {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", c.ElevenLabs.Clarity)
	}

	for name, v := range map[string]float64{"rate": c.Session.Rate, "pitch": c.Session.Pitch, "volume": c.Session.Volume} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %f", name, v)
		}
	}
	return nil
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".schedula-credentials.json"
	}
	return filepath.Join(dir, "schedula", "credentials.json")
}
