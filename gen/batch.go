package gen

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PollFunc polls one handle to a terminal state.
type PollFunc func(ctx context.Context, h Handle, opts PollOptions) (*Result, error)

// RunPollBatch polls many handles concurrently with at most
// min(len(handles), ceiling) workers. One misbehaving job never takes the
// batch down: poll errors and panics are converted to error Results, and
// the returned map always has one entry per handle, keyed by job id.
func RunPollBatch(ctx context.Context, handles []Handle, ceiling int, opts PollOptions, poll PollFunc, logger *zap.Logger) map[string]*Result {
	out := make(map[string]*Result, len(handles))
	if len(handles) == 0 {
		return out
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ceiling <= 0 {
		ceiling = 10
	}
	workers := ceiling
	if len(handles) < workers {
		workers = len(handles)
	}
	opts.Quiet = true

	// Workers write into their own slot; the map is assembled afterwards
	// by the coordinator.
	results := make([]*Result, len(handles))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, h := range handles {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Failure(h.ID, fmt.Errorf("poll panicked: %v", r))
				}
				logger.Info("poll progress",
					zap.String("provider", h.Provider),
					zap.Int64("done", done.Add(1)),
					zap.Int("total", len(handles)))
			}()

			res, err := poll(gctx, h, opts)
			if err != nil {
				results[i] = Failure(h.ID, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	// Workers never return errors; Wait only orders the map assembly
	// after all slots are written.
	_ = g.Wait()

	for i, h := range handles {
		if results[i] == nil {
			results[i] = Failure(h.ID, fmt.Errorf("poll returned no result"))
		}
		out[h.ID] = results[i]
	}
	return out
}
