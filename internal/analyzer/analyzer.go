// Package analyzer runs the full analysis pipeline for one company: verdict
// cache lookup, concurrent source gathering, reduction, and synthesis, with
// the run persisted through its phase transitions.
package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/gather"
	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/store"
	"github.com/sells-group/reputato/internal/synthesis"
)

// ErrEmptyCompanyName rejects requests with a blank company name.
var ErrEmptyCompanyName = eris.New("company name is required")

// Analyzer orchestrates one analysis request end to end.
type Analyzer struct {
	store     store.Store
	scheduler *gather.Scheduler
	invoker   *synthesis.Invoker
	cacheTTL  time.Duration
}

// New builds an Analyzer. A non-positive cacheTTL disables the verdict cache.
func New(st store.Store, scheduler *gather.Scheduler, invoker *synthesis.Invoker, cacheTTL time.Duration) *Analyzer {
	return &Analyzer{
		store:     st,
		scheduler: scheduler,
		invoker:   invoker,
		cacheTTL:  cacheTTL,
	}
}

// Analyze produces a verdict for the named company. Partial source failures
// degrade the verdict's inputs without failing the request; only a
// whole-request cancellation or a synthesis failure is fatal. Timeout errors
// wrap context.DeadlineExceeded so transport layers can answer 504.
func (a *Analyzer) Analyze(ctx context.Context, companyName string) (*model.CompanyVerdict, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return nil, ErrEmptyCompanyName
	}

	log := zap.L().With(zap.String("company", companyName))

	if a.cacheTTL > 0 {
		cached, err := a.store.GetCachedVerdict(ctx, companyName)
		if err != nil {
			log.Warn("analyzer: verdict cache lookup failed", zap.Error(err))
		} else if cached != nil {
			log.Info("analyzer: verdict cache hit")
			return cached, nil
		}
	}

	start := time.Now()
	runID := a.createRun(ctx, companyName, log)

	a.setStatus(ctx, runID, model.RunStatusFetching, log)
	outcomes := a.scheduler.Gather(ctx, companyName, model.AllSourceKinds())

	// The scheduler absorbs its own deadline; a context error here means the
	// whole request was cancelled or timed out above us.
	if err := ctx.Err(); err != nil {
		wrapped := eris.Wrap(err, "analyzer: request aborted during fetch")
		a.failRun(runID, wrapped, log)
		return nil, wrapped
	}

	agg := gather.Reduce(companyName, outcomes)

	a.setStatus(ctx, runID, model.RunStatusSynthesizing, log)
	verdict, err := a.invoker.Synthesize(ctx, companyName, agg)
	if err != nil {
		a.failRun(runID, err, log)
		return nil, err
	}

	sources := orderedOutcomes(outcomes)
	if runID != "" {
		if err := a.store.CompleteRun(ctx, runID, verdict, sources); err != nil {
			log.Warn("analyzer: persisting run result failed", zap.Error(err))
		}
	}
	if a.cacheTTL > 0 {
		if err := a.store.SetCachedVerdict(ctx, companyName, verdict, a.cacheTTL); err != nil {
			log.Warn("analyzer: caching verdict failed", zap.Error(err))
		}
	}

	log.Info("analyzer: analysis complete",
		zap.Int("rating", verdict.Rating),
		zap.Int("sources_present", agg.PresentCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return verdict, nil
}

// IsTimeout reports whether err represents a phase deadline expiry.
func IsTimeout(err error) bool {
	return eris.Is(err, context.DeadlineExceeded)
}

// createRun starts run persistence. Store trouble degrades to an untracked
// run rather than failing the analysis.
func (a *Analyzer) createRun(ctx context.Context, companyName string, log *zap.Logger) string {
	run, err := a.store.CreateRun(ctx, companyName)
	if err != nil {
		log.Warn("analyzer: creating run record failed, continuing untracked", zap.Error(err))
		return ""
	}
	return run.ID
}

func (a *Analyzer) setStatus(ctx context.Context, runID string, status model.RunStatus, log *zap.Logger) {
	if runID == "" {
		return
	}
	if err := a.store.UpdateRunStatus(ctx, runID, status); err != nil {
		log.Warn("analyzer: updating run status failed",
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

// failRun records a failed run. It uses a fresh context so the failure is
// persisted even when the request context is already dead.
func (a *Analyzer) failRun(runID string, cause error, log *zap.Logger) {
	if runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.FailRun(ctx, runID, cause.Error()); err != nil {
		log.Warn("analyzer: recording run failure failed", zap.Error(err))
	}
}

// orderedOutcomes flattens the outcome map in stable source order.
func orderedOutcomes(outcomes map[model.SourceKind]model.FetchOutcome) []model.FetchOutcome {
	out := make([]model.FetchOutcome, 0, len(outcomes))
	for _, kind := range model.AllSourceKinds() {
		if o, ok := outcomes[kind]; ok {
			out = append(out, o)
		}
	}
	return out
}
