// Package gather runs the concurrent fetch phase: all source fetchers are
// launched at once under a single aggregate deadline, and every requested
// source gets a terminal outcome no matter how its fetch ended.
package gather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/source"
)

// Scheduler fans out fetches across the configured source fetchers.
type Scheduler struct {
	fetchers map[model.SourceKind]source.Fetcher
	deadline time.Duration
}

// NewScheduler builds a scheduler over the given fetchers with an aggregate
// deadline covering all concurrent fetches of one request.
func NewScheduler(fetchers []source.Fetcher, deadline time.Duration) *Scheduler {
	if deadline <= 0 {
		deadline = 300 * time.Second
	}
	byKind := make(map[model.SourceKind]source.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byKind[f.Kind()] = f
	}
	return &Scheduler{fetchers: byKind, deadline: deadline}
}

// Gather launches one fetch per requested kind and collects outcomes until
// the full set completes or the aggregate deadline elapses, whichever comes
// first. The returned map always contains exactly one entry per requested
// kind: a fetcher that is still in flight at the deadline is cancelled and
// recorded as timed out, and one source's failure never aborts or affects its
// siblings. The deadline is a hard ceiling — even a fetcher that ignores
// cancellation cannot delay the return past it.
func (s *Scheduler) Gather(ctx context.Context, companyName string, kinds []model.SourceKind) map[model.SourceKind]model.FetchOutcome {
	log := zap.L().With(zap.String("company", companyName))
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	results := make(chan model.FetchOutcome, len(kinds))

	g, gCtx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			results <- s.fetchOne(gCtx, kind, companyName)
			// Errors are carried in the outcome; returning nil keeps one
			// source's failure from cancelling the group.
			return nil
		})
	}

	outcomes := make(map[model.SourceKind]model.FetchOutcome, len(kinds))

collect:
	for range kinds {
		select {
		case out := <-results:
			outcomes[out.Kind] = out
		case <-ctx.Done():
			break collect
		}
	}

	// Whatever did not report by the deadline is terminal now.
	for _, kind := range kinds {
		if _, ok := outcomes[kind]; ok {
			continue
		}
		outcomes[kind] = model.FetchOutcome{
			Kind:    kind,
			Status:  statusForCtxErr(ctx.Err()),
			Reason:  fmt.Sprintf("fetch did not complete within %s", s.deadline),
			Elapsed: time.Since(start),
		}
	}

	// Release fetcher goroutines in the background; they were cancelled via
	// gCtx and their late sends land in the buffered channel.
	go func() {
		_ = g.Wait()
		close(results)
	}()

	succeeded := 0
	for _, out := range outcomes {
		if out.Status == model.FetchSucceeded {
			succeeded++
		}
	}
	log.Info("gather: fetch phase complete",
		zap.Int("requested", len(kinds)),
		zap.Int("succeeded", succeeded),
		zap.Duration("elapsed", time.Since(start)),
	)

	return outcomes
}

// fetchOne runs a single fetch, converting errors, timeouts, and panics into
// a terminal outcome for that source only.
func (s *Scheduler) fetchOne(ctx context.Context, kind model.SourceKind, companyName string) (out model.FetchOutcome) {
	start := time.Now()
	out = model.FetchOutcome{Kind: kind}

	defer func() {
		out.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			out = model.FetchOutcome{
				Kind:    kind,
				Status:  model.FetchFailed,
				Reason:  fmt.Sprintf("panic: %v", r),
				Elapsed: time.Since(start),
			}
			zap.L().Error("gather: fetcher panicked",
				zap.String("source", string(kind)),
				zap.String("company", companyName),
				zap.Any("panic", r),
			)
		}
	}()

	fetcher, ok := s.fetchers[kind]
	if !ok {
		out.Status = model.FetchFailed
		out.Reason = "no fetcher configured"
		return out
	}

	record, err := fetcher.Fetch(ctx, companyName)
	if err != nil {
		out.Status = classifyFetchErr(ctx, err)
		out.Reason = err.Error()
		zap.L().Warn("gather: fetch did not succeed",
			zap.String("source", string(kind)),
			zap.String("company", companyName),
			zap.String("status", string(out.Status)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return out
	}

	out.Status = model.FetchSucceeded
	out.Record = record
	return out
}

// classifyFetchErr separates deadline expiry from cancellation and plain
// failure. The distinction is diagnostic only; downstream treats all three
// as absent.
func classifyFetchErr(ctx context.Context, err error) model.FetchStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.FetchTimedOut
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return model.FetchCancelled
	}
	return model.FetchFailed
}

func statusForCtxErr(err error) model.FetchStatus {
	if errors.Is(err, context.Canceled) {
		return model.FetchCancelled
	}
	return model.FetchTimedOut
}
