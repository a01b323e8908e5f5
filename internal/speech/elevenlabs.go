package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haguro/elevenlabs-go"
)

const (
	elevenLabsOutputFormat = "mp3_44100_128"
	elevenLabsTimeout      = 60 * time.Second
)

// ElevenLabsConfig configures the ElevenLabs adapter.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
	Timeout time.Duration
}

// textToSpeechFunc performs one ElevenLabs text-to-speech call.
type textToSpeechFunc func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest, queries ...elevenlabs.QueryFunc) ([]byte, error)

// ElevenLabs implements Synthesizer over the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	cfg    ElevenLabsConfig
	tts    textToSpeechFunc
	logger *slog.Logger
}

// NewElevenLabs creates an ElevenLabs synthesizer.
func NewElevenLabs(cfg ElevenLabsConfig, logger *slog.Logger) (*ElevenLabs, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_turbo_v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = elevenLabsTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &ElevenLabs{cfg: cfg, logger: logger}
	// The client is bound to a context, so one is built per call.
	e.tts = func(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest, queries ...elevenlabs.QueryFunc) ([]byte, error) {
		return elevenlabs.NewClient(ctx, cfg.APIKey, cfg.Timeout).TextToSpeech(voiceID, req, queries...)
	}
	return e, nil
}

// Synthesize renders text as MP3. Long text is split on sentence boundaries and
// the per-chunk MP3 frames are concatenated. Voice.Language and Voice.Engine
// are not sent; the turbo v2 model infers language from the text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	voiceID := e.cfg.VoiceID
	if voice.ID != "" {
		voiceID = voice.ID
	}

	var out bytes.Buffer
	for i, chunk := range SplitSentences(text, DefaultChunkChars) {
		data, err := e.tts(ctx, voiceID, elevenlabs.TextToSpeechRequest{
			Text:    chunk,
			ModelID: e.cfg.Model,
			VoiceSettings: &elevenlabs.VoiceSettings{
				Stability:       0.5,
				SimilarityBoost: 0.75,
			},
		}, elevenlabs.OutputFormat(elevenLabsOutputFormat), elevenlabs.LatencyOptimizations(0))
		if err != nil {
			return Audio{}, fmt.Errorf("elevenlabs chunk %d: %w", i, err)
		}
		out.Write(data)
	}
	if out.Len() == 0 {
		return Audio{}, fmt.Errorf("elevenlabs returned no audio")
	}

	e.logger.Debug("Synthesized speech", "provider", "elevenlabs", "bytes", out.Len())
	return Audio{Data: out.Bytes(), MimeType: "audio/mpeg"}, nil
}
