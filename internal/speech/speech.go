// Package speech defines the transcription, text generation and speech synthesis
// collaborators used by the coaching turn, along with their vendor adapters.
package speech

import (
	"context"
	"errors"
	"strings"
)

// ErrNotConfigured is returned by adapters whose API key is missing.
var ErrNotConfigured = errors.New("speech provider not configured")

// Transcriber converts recorded audio to text. An empty transcript with a nil
// error means no speech was detected.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// GenerateOptions tunes a single text generation call.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int32
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Voice selects how synthesized speech should sound. Zero fields fall back to
// the adapter's configured defaults. Engine is advisory; adapters without engine
// tiers ignore it.
type Voice struct {
	ID       string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`
	Engine   string `json:"engine,omitempty"`
}

// Audio is an encoded speech payload.
type Audio struct {
	Data     []byte
	MimeType string
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (Audio, error)
}

// Supported voice options advertised to clients.
var (
	Languages = []string{"en-US", "fr-FR", "de-DE", "es-ES", "it-IT"}
	Engines   = []string{"standard", "neural", "generative"}
)

// NormalizeMimeType strips codec parameters the transcription API rejects and
// defaults to audio/webm, which is what browsers record.
func NormalizeMimeType(mimeType string) string {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	if m == "" {
		return "audio/webm"
	}
	if strings.Contains(m, "webm") {
		return "audio/webm"
	}
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}
