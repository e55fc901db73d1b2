package hosting

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Remuxer moves the MP4 moov atom to the front of downloaded videos so
// browsers can start playback before the full file arrives. The ffmpeg
// binary is probed once at construction; when it is absent every call is
// a no-op. Remuxing is best-effort and never fails the pipeline.
type Remuxer struct {
	ffmpeg string
	logger *zap.Logger
}

// NewRemuxer probes for ffmpeg on PATH.
func NewRemuxer(logger *zap.Logger) *Remuxer {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		logger.Info("ffmpeg not found, videos will not be remuxed for streaming")
		return &Remuxer{logger: logger}
	}
	return &Remuxer{ffmpeg: path, logger: logger}
}

// Available reports whether ffmpeg was found.
func (r *Remuxer) Available() bool { return r.ffmpeg != "" }

// Faststart rewrites the file in place with the moov atom up front.
// Streams are copied, not re-encoded. Any failure leaves the original
// file untouched.
func (r *Remuxer) Faststart(ctx context.Context, path string) {
	if r.ffmpeg == "" {
		return
	}
	tmp := fmt.Sprintf("%s.faststart.tmp.mp4", path)
	defer os.Remove(tmp)

	cctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.ffmpeg,
		"-y", "-i", path,
		"-c", "copy",
		"-movflags", "+faststart",
		tmp)
	if out, err := cmd.CombinedOutput(); err != nil {
		r.logger.Warn("faststart remux failed, keeping original file",
			zap.String("path", path),
			zap.ByteString("output", lastBytes(out, 256)),
			zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		r.logger.Warn("faststart replace failed, keeping original file",
			zap.String("path", path),
			zap.Error(err))
	}
}

func lastBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
