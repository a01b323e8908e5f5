package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const transcribePrompt = "Transcribe this audio. Return only the transcribed text, nothing else."

var transcribeOptions = GenerateOptions{Temperature: 0.1, MaxTokens: 500}

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey   string
	Model    string
	TTSModel string
	TTSVoice string
}

// Gemini implements Transcriber, Generator and Synthesizer on the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGemini creates a Gemini client. It returns ErrNotConfigured when no API key
// is set so callers can fall back to an unconfigured adapter.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, cfg: cfg, logger: logger}, nil
}

// Transcribe sends the recording inline with a transcription instruction.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	mimeType = NormalizeMimeType(mimeType)
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, mimeType),
			genai.NewPartFromText(transcribePrompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, g.contentConfig(transcribeOptions))
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	g.logger.Debug("Transcribed audio",
		"mime_type", mimeType,
		"bytes", len(audio),
		"chars", len(text),
	)
	return text, nil
}

// Generate runs a single-shot text generation.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), g.contentConfig(opts))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *Gemini) contentConfig(opts GenerateOptions) *genai.GenerateContentConfig {
	temperature := opts.Temperature
	thinkingBudget := int32(0)
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: opts.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}
}
