// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Synthesis providers.
const (
	SynthesisAuto       = "auto"
	SynthesisElevenLabs = "elevenlabs"
	SynthesisGemini     = "gemini"
	SynthesisNone       = "none"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	AllowedOrigins  []string
	Gemini          GeminiConfig
	ElevenLabs      ElevenLabsConfig
	Synthesis       string // auto, elevenlabs, gemini, none
	Session         SessionConfig
	RateLimit       RateLimitConfig
	MaxAudioBytes   int64
	TurnTimeout     time.Duration // 0 = no timeout
	ConversationLog ConversationLogConfig
}

// GeminiConfig configures the Gemini transcription, generation and TTS calls.
type GeminiConfig struct {
	APIKey   string
	Model    string
	TTSModel string
	TTSVoice string
}

// ElevenLabsConfig configures ElevenLabs speech synthesis.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
}

// SessionConfig controls in-memory session and audio lifetimes.
type SessionConfig struct {
	TTL           time.Duration
	AudioTTL      time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig bounds turn requests per client.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		Gemini: GeminiConfig{
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			TTSModel: getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			TTSVoice: getEnv("GEMINI_TTS_VOICE", "Kore"),
		},
		ElevenLabs: ElevenLabsConfig{
			APIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			VoiceID: getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
			Model:   getEnv("ELEVENLABS_MODEL", "eleven_turbo_v2"),
		},
		Synthesis: strings.ToLower(getEnv("SYNTHESIS_PROVIDER", SynthesisAuto)),
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 60*time.Minute),
			AudioTTL:      getEnvDuration("AUDIO_TTL", 10*time.Minute),
			SweepInterval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxAudioBytes: int64(getEnvInt("MAX_AUDIO_BYTES", 25<<20)),
		TurnTimeout:   getEnvDuration("TURN_TIMEOUT", 2*time.Minute),
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	switch c.Synthesis {
	case SynthesisAuto, SynthesisElevenLabs, SynthesisGemini, SynthesisNone:
	default:
		return fmt.Errorf("SYNTHESIS_PROVIDER must be one of auto, elevenlabs, gemini, none; got %q", c.Synthesis)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.AudioTTL <= 0 {
		return fmt.Errorf("AUDIO_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be > 0")
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("TURN_TIMEOUT cannot be negative")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// SynthesisProvider resolves "auto" to a concrete provider based on which keys are set.
func (c *Config) SynthesisProvider() string {
	if c.Synthesis != SynthesisAuto {
		return c.Synthesis
	}
	if c.ElevenLabs.APIKey != "" {
		return SynthesisElevenLabs
	}
	return SynthesisNone
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
