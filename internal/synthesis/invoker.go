// Package synthesis turns an aggregate of source records into the final
// verdict: a short plain-text summary and a 1-5 reputation rating.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/pkg/anthropic"
)

const summarizerSystemPrompt = `You are an OSINT analyst who writes honest and useful summaries of companies for job seekers. Imagine a friend asked you: "Should I even consider applying here?" You write in natural, informal language: short, direct, and with a dry sense of humor. Your job is to quickly describe what the company does, how big it is, how stable it seems, and what kind of experience to expect. You are allowed to be skeptical if something feels off, and you say so. Avoid corporate jargon, fake positivity, or vague statements. Never invent facts that are not in the provided data; when a source is missing, acknowledge the gap instead of papering over it. Be critical when needed. This is for people who value honest, no-nonsense career advice.`

// Config bounds one synthesis invocation.
type Config struct {
	Model           string
	Deadline        time.Duration
	MaxSentences    int
	MaxOutputTokens int64
}

// Invoker drives the summarization model over an aggregate result.
type Invoker struct {
	llm anthropic.Client
	cfg Config
}

// NewInvoker builds an invoker. Zero config fields fall back to defaults.
func NewInvoker(llm anthropic.Client, cfg Config) *Invoker {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 180 * time.Second
	}
	if cfg.MaxSentences <= 0 {
		cfg.MaxSentences = 5
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	return &Invoker{llm: llm, cfg: cfg}
}

// Synthesize produces the verdict for one company. When no source yielded
// usable data it returns the deterministic fallback verdict without calling
// the model. A deadline expiry surfaces as an error wrapping
// context.DeadlineExceeded so callers can map it to a timeout response.
func (i *Invoker) Synthesize(ctx context.Context, companyName string, agg model.AggregateResult) (*model.CompanyVerdict, error) {
	present := agg.PresentCount()
	total := len(model.AllSourceKinds())

	if present == 0 {
		zap.L().Info("synthesis: no sources present, returning fallback verdict",
			zap.String("company", companyName),
		)
		return fallbackVerdict(companyName), nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Deadline)
	defer cancel()

	start := time.Now()
	resp, err := i.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     i.cfg.Model,
		MaxTokens: i.cfg.MaxOutputTokens,
		System:    []anthropic.SystemBlock{{Text: summarizerSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: i.buildPrompt(companyName, agg, present, total)},
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, eris.Wrap(context.DeadlineExceeded, "synthesis: deadline exceeded")
		}
		return nil, eris.Wrap(err, "synthesis: create message")
	}

	resp.Usage.LogCost(i.cfg.Model, "synthesis")

	verdict, err := parseVerdict(extractText(resp))
	if err != nil {
		return nil, eris.Wrapf(err, "synthesis: parse verdict for %q", companyName)
	}

	verdict.Summary = Sanitize(verdict.Summary)
	if verdict.Summary == "" {
		return nil, eris.New("synthesis: model returned empty summary")
	}

	zap.L().Info("synthesis: verdict produced",
		zap.String("company", companyName),
		zap.Int("rating", verdict.Rating),
		zap.Int("sources_present", present),
		zap.Duration("elapsed", time.Since(start)),
	)
	return verdict, nil
}

// fallbackVerdict is the zero-data response. Rating pins to the floor because
// a company with no public footprint across all four sources is not a
// recommendation anyone should act on.
func fallbackVerdict(companyName string) *model.CompanyVerdict {
	return &model.CompanyVerdict{
		Summary: fmt.Sprintf(
			"Couldn't find any reliable public data on %q: no company profile, no employee reviews, no funding records, and no news coverage. Either this is a very small or very new outfit, or the name doesn't match any real company. Not enough here to vouch for anything.",
			companyName,
		),
		Rating: 1,
	}
}

func (i *Invoker) buildPrompt(companyName string, agg model.AggregateResult, present, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You're evaluating a company called %q for a curious job seeker.\n\n", companyName)
	fmt.Fprintf(&b, "Data availability: %d of %d sources returned usable data. Weigh your confidence accordingly.\n\n", present, total)

	for _, kind := range model.AllSourceKinds() {
		fmt.Fprintf(&b, "## %s\n", kind.Label())
		rec := agg.Record(kind)
		if rec == nil {
			b.WriteString("no data available\n\n")
			continue
		}
		b.WriteString(recordJSON(kind, rec))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Write a short, honest summary based only on these sources.\n")
	b.WriteString("- Mention what the company does, size, location, and whether it's stable or risky.\n")
	b.WriteString("- Use casual, clear language like you're chatting with a friend.\n")
	b.WriteString("- If something seems vague, weird, or bad, say so (politely).\n")
	b.WriteString("- If a source has no data, acknowledge the gap rather than guessing.\n")
	b.WriteString("- Avoid fluff, intros, or conclusions.\n")
	fmt.Fprintf(&b, "- Write %d short sentences max.\n", i.cfg.MaxSentences)
	b.WriteString("- End with a casual verdict like 'seems solid' or 'eh, maybe skip it'.\n\n")
	b.WriteString(`Respond with ONLY a JSON object, no markdown fences, in this exact shape: {"summary": string, "rating": int} where rating is an integer from 1 (avoid) to 5 (solid).`)
	return b.String()
}

// recordJSON serializes the kind-specific payload of a record.
func recordJSON(kind model.SourceKind, rec *model.SourceRecord) string {
	var payload any
	switch kind {
	case model.SourceProfile:
		payload = rec.Profile
	case model.SourceReviews:
		payload = rec.Reviews
	case model.SourceFunding:
		payload = rec.Funding
	case model.SourceNews:
		payload = rec.News
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "no data available"
	}
	return string(data)
}

// parseVerdict decodes and validates the model's {"summary", "rating"} reply.
// A missing, fractional, or out-of-range rating fails the whole synthesis:
// a verdict with a made-up rating is worse than no verdict.
func parseVerdict(text string) (*model.CompanyVerdict, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.New("no JSON object in model output")
	}

	var payload struct {
		Summary string      `json:"summary"`
		Rating  json.Number `json:"rating"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, eris.Wrap(err, "unmarshal verdict")
	}

	rating, err := payload.Rating.Int64()
	if err != nil {
		return nil, eris.Errorf("rating %q is not an integer", payload.Rating.String())
	}

	verdict := &model.CompanyVerdict{Summary: payload.Summary, Rating: int(rating)}
	if !verdict.ValidRating() {
		return nil, eris.Errorf("rating %d outside valid range [1,5]", verdict.Rating)
	}
	return verdict, nil
}

func extractText(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// cleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object. Returns "" when no object is found.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
