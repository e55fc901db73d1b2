package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
	"github.com/BaSui01/mediaflow/gen/retry"
	"github.com/BaSui01/mediaflow/gen/speech"
)

const ttsModelID = "gemini-2.5-flash-preview-tts"

// SynthesizeSpeech converts text to a hosted WAV file. Synthesis tolerates
// retries (nothing is billed per attempt on the free tier), so transient
// failures go through a short backoff before giving up.
func (p *Provider) SynthesizeSpeech(ctx context.Context, req *gen.SpeechRequest) (*gen.Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, gen.NewError(gen.ErrConfiguration, "text cannot be empty for TTS").WithProvider("google")
	}
	if len(req.Text) > speech.MaxTextLength {
		return nil, gen.Errorf(gen.ErrConfiguration, "text too long for TTS (%d chars, maximum %d)",
			len(req.Text), speech.MaxTextLength).WithProvider("google")
	}

	voice := req.Voice
	if voice == "" {
		voice = speech.DefaultVoice
	}
	if !speech.ValidVoice(voice) {
		p.logger.Warn("unknown TTS voice, falling back to default",
			zap.String("voice", voice),
			zap.String("default", speech.DefaultVoice))
		voice = speech.DefaultVoice
	}

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": req.Text}}},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": voice},
				},
			},
		},
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), ttsModelID)

	retryer := retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 1 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, p.logger)

	raw, err := retryer.DoWithResult(ctx, func() (any, error) {
		var parsed struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						InlineData *struct {
							Data string `json:"data"`
						} `json:"inlineData"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}
		if err := p.postJSON(ctx, endpoint, payload, &parsed); err != nil {
			return nil, err
		}
		if len(parsed.Candidates) == 0 {
			return nil, fmt.Errorf("no candidates in TTS response")
		}
		for _, part := range parsed.Candidates[0].Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return base64.StdEncoding.DecodeString(part.InlineData.Data)
			}
		}
		return nil, fmt.Errorf("no audio data in TTS response")
	})
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "speech synthesis failed").WithProvider("google").WithCause(err)
	}

	pcm := raw.([]byte)
	wav := speech.WrapPCM(pcm, speech.SampleRate, speech.BitsPerSample, speech.Channels)
	seconds := float64(len(pcm)) / float64(speech.SampleRate*speech.Channels*speech.BitsPerSample/8)
	p.logger.Info("speech synthesized",
		zap.String("voice", voice),
		zap.Int("bytes", len(wav)),
		zap.Float64("seconds", seconds))

	url, err := p.rehoster.Rehost(ctx, "speech", "audio/wav", wav)
	if err != nil {
		return nil, gen.NewError(gen.ErrSubmission, "re-host synthesized audio").WithProvider("google").WithCause(err)
	}
	return gen.Success(url, ""), nil
}
