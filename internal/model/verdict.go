package model

import "time"

// CompanyVerdict is the final output for one analysis: a sanitized plain-text
// summary and an integer reputation rating from 1 (avoid) to 5 (solid).
type CompanyVerdict struct {
	Summary string `json:"summary"`
	Rating  int    `json:"rating"`
}

// ValidRating reports whether the rating is an integer in [1,5].
func (v CompanyVerdict) ValidRating() bool {
	return v.Rating >= 1 && v.Rating <= 5
}

// RunStatus tracks an analysis request through its phases.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusFetching     RunStatus = "fetching"
	RunStatusSynthesizing RunStatus = "synthesizing"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// Run is the persisted record of one analysis request.
type Run struct {
	ID        string          `json:"id"`
	Company   string          `json:"company"`
	Status    RunStatus       `json:"status"`
	Verdict   *CompanyVerdict `json:"verdict,omitempty"`
	Sources   []FetchOutcome  `json:"sources,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
