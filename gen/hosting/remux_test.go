package hosting

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemuxer_NoFfmpegIsNoop(t *testing.T) {
	r := &Remuxer{logger: zap.NewNop()}
	assert.False(t, r.Available())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really mp4"), 0o644))

	r.Faststart(context.Background(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not really mp4", string(data))
}

func TestRemuxer_FailureKeepsOriginal(t *testing.T) {
	r := NewRemuxer(zap.NewNop())
	if !r.Available() {
		t.Skip("ffmpeg not on PATH")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	// ffmpeg cannot parse this; the original must survive.
	r.Faststart(context.Background(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(data))
}
