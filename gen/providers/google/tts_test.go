package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mediaflow/gen"
	"github.com/BaSui01/mediaflow/gen/hosting"
	"github.com/BaSui01/mediaflow/gen/speech"
)

func ttsResponse(pcm []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":"%s"}}]}}]}`,
		base64.StdEncoding.EncodeToString(pcm))
}

func TestSynthesizeSpeech(t *testing.T) {
	pcm := make([]byte, 4800)
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-2.5-flash-preview-tts:generateContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(ttsResponse(pcm)))
	}))
	defer srv.Close()

	p := testProvider(t, srv)
	res, err := p.SynthesizeSpeech(context.Background(), &gen.SpeechRequest{
		Text: "hello world", Model: "gemini-tts", Voice: "Charon",
	})

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.True(t, strings.HasPrefix(res.ResultURL, hosting.OutputRoute))
	assert.True(t, strings.HasSuffix(res.ResultURL, ".wav"))

	cfg := gotPayload["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"AUDIO"}, cfg["responseModalities"])
	voice := cfg["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, "Charon", voice["voiceName"])

	// The stored file is a WAV container wrapping the PCM payload.
	store, _ := hosting.NewLocalStore(p.rehoster.Store().Dir(), nil)
	path, ok := store.Resolve(res.ResultURL)
	require.True(t, ok)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 44+len(pcm))
	assert.Equal(t, "RIFF", string(data[0:4]))
}

func TestSynthesizeSpeech_UnknownVoiceFallsBack(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(ttsResponse([]byte("pcm"))))
	}))
	defer srv.Close()

	p := testProvider(t, srv)
	_, err := p.SynthesizeSpeech(context.Background(), &gen.SpeechRequest{Text: "hi", Voice: "NotAVoice"})
	require.NoError(t, err)

	cfg := gotPayload["generationConfig"].(map[string]any)
	voice := cfg["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
	assert.Equal(t, speech.DefaultVoice, voice["voiceName"])
}

func TestSynthesizeSpeech_Validation(t *testing.T) {
	p := New(Config{APIKey: "k"}, nil, nil, nil)

	_, err := p.SynthesizeSpeech(context.Background(), &gen.SpeechRequest{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, gen.ErrConfiguration, gen.GetErrorCode(err))

	long := strings.Repeat("a", speech.MaxTextLength+1)
	_, err = p.SynthesizeSpeech(context.Background(), &gen.SpeechRequest{Text: long})
	require.Error(t, err)
	assert.Equal(t, gen.ErrConfiguration, gen.GetErrorCode(err))
	assert.Contains(t, err.Error(), "too long")
}

func TestSynthesizeSpeech_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(ttsResponse([]byte("pcm"))))
	}))
	defer srv.Close()

	p := testProvider(t, srv)
	res, err := p.SynthesizeSpeech(context.Background(), &gen.SpeechRequest{Text: "hi"})

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, int64(2), calls.Load())
}
