package gen

import (
	"context"
	"time"

	"github.com/BaSui01/mediaflow/internal/metrics"
)

// Adapter is the contract every vendor integration implements. Submit
// methods create a job; for synchronous vendors the Submission carries the
// finished Result, for asynchronous ones it carries a Handle to poll.
//
// Poll methods check exactly one job and block until it reaches a terminal
// state or the wait budget runs out. A failed job comes back as an error
// Result; transport exhaustion, timeouts, and foreign handles come back as
// a non-nil error instead.
type Adapter interface {
	Name() string

	// IsSync reports whether the capability completes within the submit
	// call for this vendor.
	IsSync(cap Capability) bool

	SubmitImage(ctx context.Context, req *ImageRequest) (*Submission, error)
	PollImage(ctx context.Context, h Handle, opts PollOptions) (*Result, error)

	SubmitVideo(ctx context.Context, req *VideoRequest) (*Submission, error)
	PollVideo(ctx context.Context, h Handle, opts PollOptions) (*Result, error)

	// PollBatch polls many handles concurrently, bounded by the vendor's
	// worker ceiling. It never returns an error: every handle gets an
	// entry keyed by job id, failures included. An empty input yields an
	// empty map without spawning workers.
	PollBatch(ctx context.Context, handles []Handle, opts PollOptions) map[string]*Result
}

// SpeechSynthesizer is implemented by adapters that can run text-to-speech.
// Synthesis is synchronous; the audio is written out and served as a URL.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *SpeechRequest) (*Result, error)
}

// TalkingHeadAdapter is implemented by adapters that can animate an avatar
// from an image and an audio track.
type TalkingHeadAdapter interface {
	SubmitTalkingHead(ctx context.Context, req *TalkingHeadRequest) (*Submission, error)
	PollTalkingHead(ctx context.Context, h Handle, opts PollOptions) (*Result, error)
}

// PollOptions controls a poll loop.
type PollOptions struct {
	// MaxWait is the total wait budget. A still-running job surfaces as a
	// TIMEOUT error no earlier than MaxWait and no later than
	// MaxWait+Interval after polling starts.
	MaxWait time.Duration

	// Interval is the sleep between status checks.
	Interval time.Duration

	// TransportRetries is how many consecutive transport-level failures of
	// the status check are tolerated before giving up. The generation job
	// itself is never resubmitted.
	TransportRetries int

	// Quiet suppresses per-attempt progress logging. Batch pollers set it
	// so only the aggregate progress is logged.
	Quiet bool

	// Metrics, when set, records every status check and transport failure.
	// The engine threads its collector through here so adapters need no
	// metrics plumbing of their own.
	Metrics *metrics.Collector
}

// DefaultPollOptions returns the poll budget used for image jobs.
func DefaultPollOptions() PollOptions {
	return PollOptions{
		MaxWait:          5 * time.Minute,
		Interval:         5 * time.Second,
		TransportRetries: 10,
	}
}

func (o *PollOptions) normalize() {
	if o.MaxWait <= 0 {
		o.MaxWait = 5 * time.Minute
	}
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.TransportRetries <= 0 {
		o.TransportRetries = 10
	}
}
