package gen

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Probe checks a job's status once. It returns (nil, nil) while the job is
// still running, a terminal Result (success or failure) once the vendor
// reports one, or an error for a transport-level failure of the status
// check itself. Transport errors are the only thing retried: consecutive
// failures beyond opts.TransportRetries abort the loop.
type Probe func(ctx context.Context) (*Result, error)

// PollUntilTerminal drives a vendor status check to a terminal state. All
// adapters share this loop and differ only in the Probe they supply, so
// timeout and transport-retry semantics are identical across vendors.
func PollUntilTerminal(ctx context.Context, h Handle, opts PollOptions, probe Probe, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.normalize()

	deadline := time.Now().Add(opts.MaxWait)
	transportFailures := 0

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, NewError(ErrTimeout, "poll cancelled").
				WithProvider(h.Provider).WithTaskID(h.ID).WithCause(ctx.Err())
		case <-time.After(opts.Interval):
		}

		res, err := probe(ctx)
		if opts.Metrics != nil {
			opts.Metrics.RecordPollAttempt(h.Provider, err != nil)
		}
		switch {
		case err != nil:
			transportFailures++
			if !opts.Quiet {
				logger.Warn("status check failed",
					zap.String("provider", h.Provider),
					zap.String("task_id", h.ID),
					zap.Int("consecutive_failures", transportFailures),
					zap.Error(err))
			}
			if transportFailures > opts.TransportRetries {
				return nil, Errorf(ErrPollTransport, "status check failed %d times in a row", transportFailures).
					WithProvider(h.Provider).WithTaskID(h.ID).WithCause(err)
			}
		case res != nil:
			if res.TaskID == "" {
				res.TaskID = h.ID
			}
			return res, nil
		default:
			transportFailures = 0
			if !opts.Quiet {
				logger.Debug("job still running",
					zap.String("provider", h.Provider),
					zap.String("task_id", h.ID),
					zap.Int("attempt", attempt))
			}
		}

		if time.Now().After(deadline) {
			return nil, Errorf(ErrTimeout, "poll timeout after %s, job still running", opts.MaxWait).
				WithProvider(h.Provider).WithTaskID(h.ID)
		}
	}
}
