package model

import "time"

// FetchStatus classifies how a single source fetch ended.
type FetchStatus string

const (
	FetchSucceeded FetchStatus = "succeeded"
	FetchFailed    FetchStatus = "failed"
	FetchTimedOut  FetchStatus = "timed_out"
	FetchCancelled FetchStatus = "cancelled"
)

// FetchOutcome is the terminal result of one fetch attempt. Immutable once
// recorded by the scheduler.
type FetchOutcome struct {
	Kind    SourceKind    `json:"kind"`
	Status  FetchStatus   `json:"status"`
	Record  *SourceRecord `json:"record,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Elapsed time.Duration `json:"elapsed_ms"`
}

// AggregateResult is the reduced per-source view for one request. It always
// carries one entry per known source kind; an absent source is an entry whose
// record is nil, never a missing key.
type AggregateResult struct {
	Company string
	Sources map[SourceKind]*SourceRecord
}

// NewAggregateResult returns an AggregateResult with every known kind keyed
// and absent.
func NewAggregateResult(company string) AggregateResult {
	sources := make(map[SourceKind]*SourceRecord, len(AllSourceKinds()))
	for _, k := range AllSourceKinds() {
		sources[k] = nil
	}
	return AggregateResult{Company: company, Sources: sources}
}

// Present reports whether the given source yielded a usable record.
func (a AggregateResult) Present(kind SourceKind) bool {
	rec, ok := a.Sources[kind]
	return ok && rec != nil && !rec.NotFound
}

// Record returns the record for a kind, or nil when absent.
func (a AggregateResult) Record(kind SourceKind) *SourceRecord {
	if !a.Present(kind) {
		return nil
	}
	return a.Sources[kind]
}

// PresentCount counts sources that yielded usable records.
func (a AggregateResult) PresentCount() int {
	n := 0
	for _, k := range AllSourceKinds() {
		if a.Present(k) {
			n++
		}
	}
	return n
}
