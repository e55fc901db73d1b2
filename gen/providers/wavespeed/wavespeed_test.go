package wavespeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/mediaflow/gen"
)

func fastOpts() gen.PollOptions {
	return gen.PollOptions{MaxWait: 2 * time.Second, Interval: time.Millisecond, TransportRetries: 3}
}

func testProvider(srv *httptest.Server) *Provider {
	return New(Config{APIKey: "ws-key", BaseURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
}

// submitOK answers any POST with a predictions-style body whose poll URL
// points back at the given path on the same server.
func submitOK(srv **httptest.Server, pollPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"data": map[string]any{
				"id":   "pred-1",
				"urls": map[string]any{"get": (*srv).URL + pollPath},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestSubmitImage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "Bearer ws-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		submitOK(&srv, "/poll/pred-1")(w, r)
	}))
	defer srv.Close()

	p := testProvider(srv)
	sub, err := p.SubmitImage(context.Background(), &gen.ImageRequest{
		Prompt:      "a dog",
		Model:       "gpt-image-1.5",
		AspectRatio: "9:16",
		Resolution:  "2K",
		ImageURLs:   []string{"https://cdn.example/ref.png"},
	})

	require.NoError(t, err)
	assert.Equal(t, "/openai/gpt-image-1.5/edit", gotPath)
	assert.Equal(t, "1024*1536", gotPayload["size"])
	assert.Equal(t, "high", gotPayload["quality"])
	assert.Equal(t, "high", gotPayload["input_fidelity"])
	assert.Equal(t, []any{"https://cdn.example/ref.png"}, gotPayload["images"])

	require.NotNil(t, sub.Handle)
	assert.Equal(t, "pred-1", sub.Handle.ID)
	assert.Equal(t, srv.URL+"/poll/pred-1", sub.Handle.PollURL)
}

func TestImageSize(t *testing.T) {
	assert.Equal(t, "1024*1536", imageSize("9:16"))
	assert.Equal(t, "1024*1536", imageSize("2:3"))
	assert.Equal(t, "1536*1024", imageSize("16:9"))
	assert.Equal(t, "1024*1024", imageSize("1:1"))
	assert.Equal(t, "auto", imageSize("21:9"))
	assert.Equal(t, "auto", imageSize(""))
}

func TestSubmitVideo_KlingModeVariants(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		submitOK(&srv, "/poll/pred-1")(w, r)
	}))
	defer srv.Close()

	p := testProvider(srv)
	_, err := p.SubmitVideo(context.Background(), &gen.VideoRequest{
		Prompt: "p", Model: "kling-3.0", Mode: "std", Duration: 5,
		ImageURL: "https://cdn.example/f.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "/kwaivgi/kling-v3.0-std/image-to-video", gotPath)
	assert.Equal(t, float64(5), gotPayload["duration"])
	assert.Equal(t, 0.5, gotPayload["cfg_scale"])
	assert.Equal(t, "https://cdn.example/f.png", gotPayload["image"])

	_, err = p.SubmitVideo(context.Background(), &gen.VideoRequest{
		Prompt: "p", Model: "kling-3.0", Duration: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "/kwaivgi/kling-v3.0-pro/image-to-video", gotPath)
}

func TestSubmitVideo_SoraDurationGrid(t *testing.T) {
	assert.Equal(t, 4, soraDuration(3))
	assert.Equal(t, 4, soraDuration(5))
	assert.Equal(t, 8, soraDuration(10))
	assert.Equal(t, 12, soraDuration(14))
	assert.Equal(t, 16, soraDuration(18))
	assert.Equal(t, 20, soraDuration(25))
}

func TestSubmitVideo_SoraProResolution(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		submitOK(&srv, "/poll/pred-1")(w, r)
	}))
	defer srv.Close()

	p := testProvider(srv)
	_, err := p.SubmitVideo(context.Background(), &gen.VideoRequest{
		Prompt: "p", Model: "sora-2-pro", Duration: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "/openai/sora-2/image-to-video-pro", gotPath)
	assert.Equal(t, "1080p", gotPayload["resolution"])
	assert.Equal(t, float64(12), gotPayload["duration"])

	gotPayload = nil
	_, err = p.SubmitVideo(context.Background(), &gen.VideoRequest{
		Prompt: "p", Model: "sora-2", Duration: 12,
	})
	require.NoError(t, err)
	assert.NotContains(t, gotPayload, "resolution")
}

func TestSubmitTalkingHead_RequiresHostedURLs(t *testing.T) {
	p := New(Config{APIKey: "k"}, zap.NewNop())

	_, err := p.SubmitTalkingHead(context.Background(), &gen.TalkingHeadRequest{
		Model: "infinitetalk", ImageURL: "https://cdn.example/face.png",
	})
	require.Error(t, err)
	assert.Equal(t, gen.ErrSubmission, gen.GetErrorCode(err))
}

func TestSubmit_MissingPollURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"pred-1"}}`))
	}))
	defer srv.Close()

	p := testProvider(srv)
	_, err := p.SubmitImage(context.Background(), &gen.ImageRequest{Prompt: "p", Model: "gpt-image-1.5"})
	require.Error(t, err)
	assert.Equal(t, gen.ErrSubmission, gen.GetErrorCode(err))
}

func TestPoll_UsesHandlePollURL(t *testing.T) {
	var polledPath string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polledPath = r.URL.Path
		w.Write([]byte(`{"data":{"status":"completed","outputs":["https://cdn.example/out.jpg"]}}`))
	}))
	defer srv.Close()

	p := testProvider(srv)
	h := gen.Handle{Provider: "wavespeed", Cap: gen.CapImage, ID: "pred-9", PollURL: srv.URL + "/v3/predictions/pred-9/result"}
	res, err := p.PollImage(context.Background(), h, fastOpts())

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "https://cdn.example/out.jpg", res.ResultURL)
	assert.Equal(t, "/v3/predictions/pred-9/result", polledPath)
}

func TestPoll_FlatResponseAndObjectOutputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"completed","outputs":[{"url":"https://cdn.example/obj.mp4"}]}`))
	}))
	defer srv.Close()

	p := testProvider(srv)
	h := gen.Handle{Provider: "wavespeed", Cap: gen.CapVideo, ID: "pred-1", PollURL: srv.URL + "/r"}
	res, err := p.PollVideo(context.Background(), h, fastOpts())

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/obj.mp4", res.ResultURL)
}

func TestPoll_OutputURLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"completed","output":{"url":"https://cdn.example/talk.mp4"}}`))
	}))
	defer srv.Close()

	p := testProvider(srv)
	h := gen.Handle{Provider: "wavespeed", Cap: gen.CapTalkingHead, ID: "t-1", PollURL: srv.URL + "/r"}
	res, err := p.PollTalkingHead(context.Background(), h, fastOpts())

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/talk.mp4", res.ResultURL)
}

func TestPoll_FailureStatuses(t *testing.T) {
	for _, status := range []string{"failed", "error", "Failed"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"status": status, "error": "safety system rejection"},
			})
		}))

		p := testProvider(srv)
		h := gen.Handle{Provider: "wavespeed", Cap: gen.CapImage, ID: "t", PollURL: srv.URL + "/r"}
		res, err := p.PollImage(context.Background(), h, fastOpts())
		srv.Close()

		require.NoError(t, err, "status %s", status)
		assert.False(t, res.OK())
		assert.Contains(t, res.Error, "safety system rejection")
	}
}

func TestPoll_CompletedWithoutOutputsIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"completed","outputs":[]}}`))
	}))
	defer srv.Close()

	p := testProvider(srv)
	h := gen.Handle{Provider: "wavespeed", Cap: gen.CapImage, ID: "t", PollURL: srv.URL + "/r"}
	res, err := p.PollImage(context.Background(), h, fastOpts())

	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Contains(t, res.Error, "no outputs")
}

func TestPoll_MissingPollURL(t *testing.T) {
	p := New(Config{APIKey: "k"}, zap.NewNop())
	h := gen.Handle{Provider: "wavespeed", Cap: gen.CapImage, ID: "t"}
	_, err := p.PollImage(context.Background(), h, fastOpts())

	require.Error(t, err)
	assert.Equal(t, gen.ErrConfiguration, gen.GetErrorCode(err))
	assert.Contains(t, err.Error(), "no poll URL")
}

func TestPoll_ForeignHandle(t *testing.T) {
	p := New(Config{APIKey: "k"}, zap.NewNop())
	h := gen.Handle{Provider: "kie", Cap: gen.CapImage, ID: "t", PollURL: "http://x"}
	_, err := p.PollImage(context.Background(), h, fastOpts())

	require.Error(t, err)
	assert.Equal(t, gen.ErrConfiguration, gen.GetErrorCode(err))
}
