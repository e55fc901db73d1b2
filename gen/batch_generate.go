package gen

import (
	"context"

	"go.uber.org/zap"
)

// pendingJob tracks an async submission until its batch poll resolves.
type pendingJob struct {
	idx    int
	handle Handle
}

// GenerateImageBatch submits a whole batch, polls the asynchronous
// remainder in parallel per provider, and returns one Result per request
// in input order. Submission failures are recorded as error Results, never
// propagated; the batch always completes. The summary charges retail per
// request and actual cost only for artifacts produced.
func (e *Engine) GenerateImageBatch(ctx context.Context, reqs []*ImageRequest) ([]*Result, CostSummary) {
	results := make([]*Result, len(reqs))
	tracker := NewCostTracker(e.pricing)
	pending := make(map[string][]pendingJob)

	for i, req := range reqs {
		if err := e.limiter.Wait(ctx); err != nil {
			results[i] = Failure("", err)
			continue
		}
		adapter, name, err := e.registry.Resolve(CapImage, req.Model, req.Provider)
		if err != nil {
			results[i] = Failure("", err)
			continue
		}
		tracker.TrackRequest(req.Model, name)

		sub, err := adapter.SubmitImage(ctx, req)
		e.recordSubmission(name, CapImage, err)
		if err == nil {
			err = validSubmission(sub, name)
		}
		switch {
		case err != nil:
			results[i] = Failure("", err)
		case sub.Result != nil:
			results[i] = sub.Result
		default:
			pending[name] = append(pending[name], pendingJob{idx: i, handle: *sub.Handle})
		}
	}

	e.resolvePending(ctx, pending, results, func(string) PollOptions { return e.imagePollOptions() })

	for i, req := range reqs {
		if results[i] != nil && results[i].OK() {
			tracker.TrackArtifact(req.Model, e.providerFor(CapImage, req))
		}
	}
	return results, e.logBatch("image batch finished", results, tracker)
}

// GenerateVideoBatch is the video counterpart of GenerateImageBatch. The
// poll budget per provider group scales with the longest requested
// duration in that group.
func (e *Engine) GenerateVideoBatch(ctx context.Context, reqs []*VideoRequest) ([]*Result, CostSummary) {
	results := make([]*Result, len(reqs))
	tracker := NewCostTracker(e.pricing)
	pending := make(map[string][]pendingJob)
	groupBudget := make(map[string]PollOptions)

	for i, req := range reqs {
		if err := e.limiter.Wait(ctx); err != nil {
			results[i] = Failure("", err)
			continue
		}
		adapter, name, err := e.registry.Resolve(CapVideo, req.Model, req.Provider)
		if err != nil {
			results[i] = Failure("", err)
			continue
		}
		tracker.TrackRequest(req.Model, name)
		e.normalizeVideoInput(req)

		sub, err := adapter.SubmitVideo(ctx, req)
		e.recordSubmission(name, CapVideo, err)
		if err == nil {
			err = validSubmission(sub, name)
		}
		switch {
		case err != nil:
			results[i] = Failure("", err)
		case sub.Result != nil:
			results[i] = sub.Result
		default:
			pending[name] = append(pending[name], pendingJob{idx: i, handle: *sub.Handle})
			if opts := e.videoPollOptions(req.Model, req.Duration); opts.MaxWait > groupBudget[name].MaxWait {
				groupBudget[name] = opts
			}
		}
	}

	e.resolvePending(ctx, pending, results, func(provider string) PollOptions {
		if opts, ok := groupBudget[provider]; ok {
			return opts
		}
		return e.videoPollOptions("", 0)
	})

	for i, req := range reqs {
		if results[i] != nil && results[i].OK() {
			tracker.TrackArtifact(req.Model, e.providerForVideo(req))
		}
	}
	return results, e.logBatch("video batch finished", results, tracker)
}

// resolvePending runs each provider's batch poller over its pending jobs
// and writes the outcomes back into the result slots.
func (e *Engine) resolvePending(ctx context.Context, pending map[string][]pendingJob, results []*Result, budget func(provider string) PollOptions) {
	for name, jobs := range pending {
		adapter, ok := e.registry.Adapter(name)
		if !ok {
			for _, job := range jobs {
				results[job.idx] = Failure(job.handle.ID, Errorf(ErrConfiguration, "no adapter registered for provider %q", name))
			}
			continue
		}
		handles := make([]Handle, len(jobs))
		for i, job := range jobs {
			handles[i] = job.handle
		}
		polled := adapter.PollBatch(ctx, handles, budget(name))
		for _, job := range jobs {
			if res, ok := polled[job.handle.ID]; ok {
				results[job.idx] = res
			} else {
				results[job.idx] = Failure(job.handle.ID, Errorf(ErrPollTransport, "batch poll returned no entry"))
			}
		}
	}
}

func (e *Engine) providerFor(cap Capability, req *ImageRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	return e.registry.DefaultProvider(cap, req.Model)
}

func (e *Engine) providerForVideo(req *VideoRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	return e.registry.DefaultProvider(CapVideo, req.Model)
}

func (e *Engine) logBatch(msg string, results []*Result, tracker *CostTracker) CostSummary {
	succeeded := 0
	for _, r := range results {
		if r != nil && r.OK() {
			succeeded++
		}
	}
	summary := tracker.Summary()
	e.logger.Info(msg,
		zap.Int("total", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Float64("retail_cost", summary.RetailCost),
		zap.Float64("actual_cost", summary.ActualCost))
	return summary
}
