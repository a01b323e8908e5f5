package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Gemini TTS emits raw 16-bit little-endian mono PCM at 24 kHz.
const (
	pcmSampleRate    = 24000
	pcmBitsPerSample = 16
	pcmChannels      = 1
)

// Synthesize renders text with the Gemini TTS model and wraps the PCM in a WAV container.
func (g *Gemini) Synthesize(ctx context.Context, text string, voice Voice) (Audio, error) {
	name := g.cfg.TTSVoice
	if voice.ID != "" {
		name = voice.ID
	}

	temperature := float32(1)
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TTSModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:        &temperature,
			ResponseModalities: []string{"audio"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: name},
				},
			},
		})
	if err != nil {
		return Audio{}, fmt.Errorf("gemini speech: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return Audio{}, errors.New("gemini speech: empty audio response")
	}

	pcm := resp.Candidates[0].Content.Parts[0].InlineData.Data
	return Audio{Data: PCMToWAV(pcm), MimeType: "audio/wav"}, nil
}

// PCMToWAV prepends a 44-byte RIFF header describing Gemini's PCM format.
func PCMToWAV(pcm []byte) []byte {
	const (
		byteRate   = pcmSampleRate * pcmChannels * pcmBitsPerSample / 8
		blockAlign = pcmChannels * pcmBitsPerSample / 8
	)

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(pcmSampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
