package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/resilience"
	"github.com/sells-group/reputato/pkg/anthropic"
	"github.com/sells-group/reputato/pkg/brightdata"
)

// Fetcher retrieves a structured record for one source kind. A confirmed
// no-match is not an error: it comes back as a record with NotFound set, so
// callers can never conflate "the company does not exist there" with a
// retryable failure.
type Fetcher interface {
	Kind() model.SourceKind
	Fetch(ctx context.Context, companyName string) (*model.SourceRecord, error)
}

// Config holds the shared settings for all fetchers.
type Config struct {
	ExtractModel string
	FetchTimeout time.Duration
	MaxAttempts  int
}

// agentFetcher implements Fetcher as a two-step agent: unlock the source page
// through the kind's Bright Data zone, then extract the typed record with
// Claude. Stateless per invocation; the shared clients tolerate concurrent use.
type agentFetcher struct {
	kind      model.SourceKind
	zone      string
	unlocker  brightdata.Client
	extractor anthropic.Client
	cfg       Config
}

// New creates a fetcher for the given source kind bound to its unlocker zone.
func New(kind model.SourceKind, zone string, unlocker brightdata.Client, extractor anthropic.Client, cfg Config) Fetcher {
	if cfg.ExtractModel == "" {
		cfg.ExtractModel = "claude-haiku-4-5-20251001"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 120 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	return &agentFetcher{
		kind:      kind,
		zone:      zone,
		unlocker:  unlocker,
		extractor: extractor,
		cfg:       cfg,
	}
}

func (f *agentFetcher) Kind() model.SourceKind {
	return f.kind
}

func (f *agentFetcher) Fetch(ctx context.Context, companyName string) (*model.SourceRecord, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, eris.New("source: company name is empty")
	}

	// Per-fetch timeout, nested inside the caller's aggregate deadline.
	ctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	retryCfg := resilience.FetchRetryConfig(f.cfg.MaxAttempts)
	retryCfg.OnRetry = resilience.RetryLogger(string(f.kind), companyName)

	return resilience.Do(ctx, retryCfg, func(ctx context.Context) (*model.SourceRecord, error) {
		return f.fetchOnce(ctx, companyName)
	})
}

func (f *agentFetcher) fetchOnce(ctx context.Context, companyName string) (*model.SourceRecord, error) {
	log := zap.L().With(
		zap.String("source", string(f.kind)),
		zap.String("company", companyName),
	)
	start := time.Now()

	raw, err := f.collect(ctx, companyName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, eris.Errorf("source: %s returned empty page", f.kind)
	}

	resp, err := f.extractor.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     f.cfg.ExtractModel,
		MaxTokens: 1024,
		System: []anthropic.SystemBlock{
			{Text: investigatorSystemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: extractionPrompt(f.kind, companyName, raw)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s extraction", f.kind)
	}
	resp.Usage.LogCost(f.cfg.ExtractModel, "fetch_"+string(f.kind))

	record, err := parseRecord(f.kind, extractText(resp))
	if err != nil {
		// Malformed payloads never escape the fetcher as data.
		return nil, eris.Wrapf(err, "source: %s parse", f.kind)
	}

	log.Info("source: fetch complete",
		zap.Bool("not_found", record.NotFound),
		zap.Duration("elapsed", time.Since(start)),
	)
	return record, nil
}

// collect retrieves the raw page text for the source, marking retryable
// unlocker statuses as transient.
func (f *agentFetcher) collect(ctx context.Context, companyName string) (string, error) {
	var resp *brightdata.UnlockResponse
	var err error

	if query, ok := searchQuery(f.kind, companyName); ok {
		resp, err = f.unlocker.Search(ctx, f.zone, query)
	} else {
		resp, err = f.unlocker.Unlock(ctx, brightdata.UnlockRequest{
			Zone: f.zone,
			URL:  targetURL(f.kind, companyName),
		})
	}
	if err != nil {
		var se *brightdata.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			return "", resilience.NewTransientError(err, se.StatusCode)
		}
		return "", eris.Wrapf(err, "source: %s unlock", f.kind)
	}
	return resp.Body, nil
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
