package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/analyzer"
	"github.com/sells-group/reputato/internal/gather"
	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/source"
	"github.com/sells-group/reputato/internal/store"
	"github.com/sells-group/reputato/internal/synthesis"
	anthropicpkg "github.com/sells-group/reputato/pkg/anthropic"
	"github.com/sells-group/reputato/pkg/brightdata"
)

// appEnv holds the initialized store and analyzer shared by the serve and
// analyze commands.
type appEnv struct {
	Store    store.Store
	Analyzer *analyzer.Analyzer
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates credentials, opens the store, builds the per-source
// fetchers, and wires the full analysis pipeline. Callers should defer
// env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	unlocker := brightdata.NewClient(cfg.BrightData.Token,
		brightdata.WithBaseURL(cfg.BrightData.BaseURL),
		brightdata.WithRateLimit(cfg.BrightData.RequestsPerSec),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	fetcherCfg := source.Config{
		ExtractModel: cfg.Anthropic.ExtractModel,
		FetchTimeout: time.Duration(cfg.BrightData.FetchTimeoutSecs) * time.Second,
		MaxAttempts:  cfg.BrightData.FetchRetries + 1,
	}
	zones := map[model.SourceKind]string{
		model.SourceProfile: cfg.BrightData.ProfileZone,
		model.SourceReviews: cfg.BrightData.ReviewsZone,
		model.SourceFunding: cfg.BrightData.FundingZone,
		model.SourceNews:    cfg.BrightData.NewsZone,
	}
	fetchers := make([]source.Fetcher, 0, len(zones))
	for _, kind := range model.AllSourceKinds() {
		fetchers = append(fetchers, source.New(kind, zones[kind], unlocker, anthropicClient, fetcherCfg))
	}

	scheduler := gather.NewScheduler(fetchers, time.Duration(cfg.Gather.DeadlineSecs)*time.Second)
	invoker := synthesis.NewInvoker(anthropicClient, synthesis.Config{
		Model:           cfg.Anthropic.SynthesisModel,
		Deadline:        time.Duration(cfg.Synthesis.DeadlineSecs) * time.Second,
		MaxSentences:    cfg.Synthesis.MaxSentences,
		MaxOutputTokens: int64(cfg.Synthesis.MaxOutputTokens),
	})

	cacheTTL := time.Duration(cfg.Synthesis.CacheTTLHours) * time.Hour
	a := analyzer.New(st, scheduler, invoker, cacheTTL)

	zap.L().Info("analyzer initialized",
		zap.String("store_driver", cfg.Store.Driver),
		zap.Int("gather_deadline_secs", cfg.Gather.DeadlineSecs),
		zap.Int("synthesis_deadline_secs", cfg.Synthesis.DeadlineSecs),
		zap.Duration("verdict_cache_ttl", cacheTTL),
	)

	return &appEnv{Store: st, Analyzer: a}, nil
}
