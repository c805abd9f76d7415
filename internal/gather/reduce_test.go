package gather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reputato/internal/model"
)

func TestReduce_MixedOutcomes(t *testing.T) {
	outcomes := map[model.SourceKind]model.FetchOutcome{
		model.SourceProfile: {
			Kind:   model.SourceProfile,
			Status: model.FetchSucceeded,
			Record: &model.SourceRecord{
				Kind:    model.SourceProfile,
				Profile: &model.ProfileRecord{CompanyName: "Acme Ltd"},
			},
		},
		model.SourceReviews: {
			Kind:   model.SourceReviews,
			Status: model.FetchSucceeded,
			Record: &model.SourceRecord{Kind: model.SourceReviews, NotFound: true},
		},
		model.SourceFunding: {
			Kind:   model.SourceFunding,
			Status: model.FetchFailed,
			Reason: "boom",
		},
		model.SourceNews: {
			Kind:   model.SourceNews,
			Status: model.FetchTimedOut,
		},
	}

	agg := Reduce("Acme Ltd", outcomes)

	assert.Equal(t, "Acme Ltd", agg.Company)
	assert.True(t, agg.Present(model.SourceProfile))
	assert.False(t, agg.Present(model.SourceReviews), "confirmed no-match reduces to absent")
	assert.False(t, agg.Present(model.SourceFunding))
	assert.False(t, agg.Present(model.SourceNews))
	assert.Equal(t, 1, agg.PresentCount())

	// Every known kind is keyed even when absent.
	require.Len(t, agg.Sources, len(model.AllSourceKinds()))
	for _, k := range model.AllSourceKinds() {
		_, ok := agg.Sources[k]
		assert.True(t, ok, "missing key for %s", k)
	}
}

func TestReduce_EmptyOutcomes(t *testing.T) {
	agg := Reduce("Ghost Corp", nil)
	assert.Equal(t, 0, agg.PresentCount())
	assert.Len(t, agg.Sources, len(model.AllSourceKinds()))
}

func TestReduce_SucceededWithoutRecordIsAbsent(t *testing.T) {
	outcomes := map[model.SourceKind]model.FetchOutcome{
		model.SourceProfile: {Kind: model.SourceProfile, Status: model.FetchSucceeded},
	}
	agg := Reduce("Acme Ltd", outcomes)
	assert.False(t, agg.Present(model.SourceProfile))
}
