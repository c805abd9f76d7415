package gather

import (
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/model"
)

// Reduce converts heterogeneous fetch outcomes into the uniform per-source
// present/absent view. Failures, timeouts, cancellations, and confirmed
// no-matches all reduce to absent; only a succeeded fetch with a usable
// record is present.
func Reduce(companyName string, outcomes map[model.SourceKind]model.FetchOutcome) model.AggregateResult {
	agg := model.NewAggregateResult(companyName)

	for _, kind := range model.AllSourceKinds() {
		out, ok := outcomes[kind]
		if !ok {
			continue
		}
		if out.Status != model.FetchSucceeded || out.Record == nil {
			continue
		}
		if out.Record.NotFound {
			zap.L().Info("reduce: source confirmed no match",
				zap.String("source", string(kind)),
				zap.String("company", companyName),
			)
			continue
		}
		agg.Sources[kind] = out.Record
	}

	zap.L().Info("reduce: aggregate built",
		zap.String("company", companyName),
		zap.Int("present", agg.PresentCount()),
		zap.Int("total", len(model.AllSourceKinds())),
	)

	return agg
}
