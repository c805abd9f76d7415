package source

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/model"
)

// parseRecord validates and coerces the extraction model's response into a
// typed record. A malformed payload is an error; an unparseable or
// out-of-range individual field is nulled, not fatal.
func parseRecord(kind model.SourceKind, text string) (*model.SourceRecord, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return nil, eris.Errorf("parse: %s response has no JSON object", kind)
	}

	switch kind {
	case model.SourceProfile:
		return parseProfile(cleaned)
	case model.SourceReviews:
		return parseReviews(cleaned)
	case model.SourceFunding:
		return parseFunding(cleaned)
	case model.SourceNews:
		return parseNews(cleaned)
	default:
		return nil, eris.Errorf("parse: unknown source kind %q", kind)
	}
}

type profilePayload struct {
	Found *bool `json:"found"`
	model.ProfileRecord
}

func parseProfile(cleaned string) (*model.SourceRecord, error) {
	var p profilePayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, eris.Wrap(err, "parse: profile json")
	}
	if notFound(p.Found) {
		return &model.SourceRecord{Kind: model.SourceProfile, NotFound: true}, nil
	}
	rec := p.ProfileRecord
	return &model.SourceRecord{Kind: model.SourceProfile, Profile: &rec}, nil
}

type reviewsPayload struct {
	Found *bool `json:"found"`
	model.ReviewsRecord
}

func parseReviews(cleaned string) (*model.SourceRecord, error) {
	var p reviewsPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, eris.Wrap(err, "parse: reviews json")
	}
	if notFound(p.Found) {
		return &model.SourceRecord{Kind: model.SourceReviews, NotFound: true}, nil
	}
	rec := p.ReviewsRecord
	// Bounds validation: review ratings are 0–5. An out-of-range value is a
	// nulled field, not a fetch failure.
	if rec.Rating != nil && (*rec.Rating < 0 || *rec.Rating > 5) {
		zap.L().Warn("parse: dropping out-of-range review rating",
			zap.Float64("rating", *rec.Rating),
		)
		rec.Rating = nil
	}
	if rec.ReviewCount != nil && *rec.ReviewCount < 0 {
		rec.ReviewCount = nil
	}
	return &model.SourceRecord{Kind: model.SourceReviews, Reviews: &rec}, nil
}

type fundingPayload struct {
	Found *bool `json:"found"`
	model.FundingRecord
}

func parseFunding(cleaned string) (*model.SourceRecord, error) {
	var p fundingPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, eris.Wrap(err, "parse: funding json")
	}
	if notFound(p.Found) {
		return &model.SourceRecord{Kind: model.SourceFunding, NotFound: true}, nil
	}
	rec := p.FundingRecord
	return &model.SourceRecord{Kind: model.SourceFunding, Funding: &rec}, nil
}

type newsPayload struct {
	Found *bool `json:"found"`
	model.NewsRecord
}

func parseNews(cleaned string) (*model.SourceRecord, error) {
	var p newsPayload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, eris.Wrap(err, "parse: news json")
	}
	if notFound(p.Found) {
		return &model.SourceRecord{Kind: model.SourceNews, NotFound: true}, nil
	}
	rec := p.NewsRecord
	// Categories are lists, never null.
	if rec.Layoffs == nil {
		rec.Layoffs = []string{}
	}
	if rec.Scandals == nil {
		rec.Scandals = []string{}
	}
	if rec.Achievements == nil {
		rec.Achievements = []string{}
	}
	return &model.SourceRecord{Kind: model.SourceNews, News: &rec}, nil
}

// notFound treats an explicit "found": false, and only that, as a confirmed
// no-match. A missing "found" key means the model skipped the flag but
// extracted data.
func notFound(found *bool) bool {
	return found != nil && !*found
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
