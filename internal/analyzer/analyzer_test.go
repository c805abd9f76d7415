package analyzer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reputato/internal/gather"
	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/source"
	"github.com/sells-group/reputato/internal/synthesis"
	"github.com/sells-group/reputato/pkg/anthropic"
	anthropicmocks "github.com/sells-group/reputato/pkg/anthropic/mocks"
)

type stubFetcher struct {
	kind model.SourceKind
	fn   func(ctx context.Context, companyName string) (*model.SourceRecord, error)
}

func (s *stubFetcher) Kind() model.SourceKind { return s.kind }

func (s *stubFetcher) Fetch(ctx context.Context, companyName string) (*model.SourceRecord, error) {
	return s.fn(ctx, companyName)
}

func okFetchers() []source.Fetcher {
	var fetchers []source.Fetcher
	for _, k := range model.AllSourceKinds() {
		fetchers = append(fetchers, &stubFetcher{kind: k, fn: func(_ context.Context, _ string) (*model.SourceRecord, error) {
			return &model.SourceRecord{
				Kind:    model.SourceProfile,
				Profile: &model.ProfileRecord{CompanyName: "Acme Ltd"},
			}, nil
		}})
	}
	// Only one usable payload kind is needed to keep synthesis off the
	// fallback path.
	return fetchers
}

func failingFetchers() []source.Fetcher {
	var fetchers []source.Fetcher
	for _, k := range model.AllSourceKinds() {
		fetchers = append(fetchers, &stubFetcher{kind: k, fn: func(_ context.Context, _ string) (*model.SourceRecord, error) {
			return nil, errors.New("source unavailable")
		}})
	}
	return fetchers
}

func verdictResponse(summary string, rating int) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{
			Type: "text",
			Text: fmt.Sprintf(`{"summary": %q, "rating": %d}`, summary, rating),
		}},
	}
}

func newTestAnalyzer(st *MockStore, fetchers []source.Fetcher, llm anthropic.Client, cacheTTL time.Duration) *Analyzer {
	sched := gather.NewScheduler(fetchers, 5*time.Second)
	inv := synthesis.NewInvoker(llm, synthesis.Config{Model: "m", Deadline: 5 * time.Second})
	return New(st, sched, inv, cacheTTL)
}

func permissiveStore(run *model.Run) *MockStore {
	st := &MockStore{}
	st.On("GetCachedVerdict", mock.Anything, mock.Anything).Return(nil, nil)
	st.On("CreateRun", mock.Anything, mock.Anything).Return(run, nil)
	st.On("UpdateRunStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("CompleteRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("FailRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	st.On("SetCachedVerdict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return st
}

func TestAnalyze_Success(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1", Company: "Acme Ltd"})
	llm := &anthropicmocks.MockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(verdictResponse("Seems solid.", 4), nil)

	a := newTestAnalyzer(st, okFetchers(), llm, time.Hour)
	verdict, err := a.Analyze(context.Background(), "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, 4, verdict.Rating)

	st.AssertCalled(t, "UpdateRunStatus", mock.Anything, "run-1", model.RunStatusFetching)
	st.AssertCalled(t, "UpdateRunStatus", mock.Anything, "run-1", model.RunStatusSynthesizing)
	st.AssertCalled(t, "CompleteRun", mock.Anything, "run-1", verdict, mock.Anything)
	st.AssertCalled(t, "SetCachedVerdict", mock.Anything, "Acme Ltd", verdict, time.Hour)
	st.AssertNotCalled(t, "FailRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_EmptyName(t *testing.T) {
	st := &MockStore{}
	llm := &anthropicmocks.MockClient{}

	a := newTestAnalyzer(st, okFetchers(), llm, time.Hour)
	_, err := a.Analyze(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyCompanyName)
	st.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything)
}

func TestAnalyze_CacheHit(t *testing.T) {
	cached := &model.CompanyVerdict{Summary: "Cached take.", Rating: 3}
	st := &MockStore{}
	st.On("GetCachedVerdict", mock.Anything, "Acme Ltd").Return(cached, nil)

	llm := &anthropicmocks.MockClient{}
	exploding := []source.Fetcher{&stubFetcher{kind: model.SourceProfile, fn: func(_ context.Context, _ string) (*model.SourceRecord, error) {
		panic("must not fetch on cache hit")
	}}}

	a := newTestAnalyzer(st, exploding, llm, time.Hour)
	verdict, err := a.Analyze(context.Background(), "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, cached, verdict)
	st.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything)
	llm.AssertNumberOfCalls(t, "CreateMessage", 0)
}

func TestAnalyze_CacheDisabled(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1"})
	llm := &anthropicmocks.MockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(verdictResponse("ok", 3), nil)

	a := newTestAnalyzer(st, okFetchers(), llm, 0)
	_, err := a.Analyze(context.Background(), "Acme Ltd")
	require.NoError(t, err)
	st.AssertNotCalled(t, "GetCachedVerdict", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "SetCachedVerdict", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_AllSourcesFail_FallbackVerdict(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1"})
	llm := &anthropicmocks.MockClient{}

	a := newTestAnalyzer(st, failingFetchers(), llm, time.Hour)
	verdict, err := a.Analyze(context.Background(), "Ghost Corp")
	require.NoError(t, err)
	assert.Equal(t, 1, verdict.Rating)
	llm.AssertNumberOfCalls(t, "CreateMessage", 0)
	st.AssertCalled(t, "CompleteRun", mock.Anything, "run-1", verdict, mock.Anything)
}

func TestAnalyze_SynthesisTimeout(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1"})
	llm := &anthropicmocks.MockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(nil, context.DeadlineExceeded)

	sched := gather.NewScheduler(okFetchers(), 5*time.Second)
	inv := synthesis.NewInvoker(llm, synthesis.Config{Model: "m", Deadline: 20 * time.Millisecond})
	a := New(st, sched, inv, time.Hour)

	_, err := a.Analyze(context.Background(), "Acme Ltd")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	st.AssertCalled(t, "FailRun", mock.Anything, "run-1", mock.Anything)
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_SynthesisFailure(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1"})
	llm := &anthropicmocks.MockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("api down"))

	a := newTestAnalyzer(st, okFetchers(), llm, time.Hour)
	_, err := a.Analyze(context.Background(), "Acme Ltd")
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	st.AssertCalled(t, "FailRun", mock.Anything, "run-1", mock.Anything)
}

func TestAnalyze_StoreFailuresAreNotFatal(t *testing.T) {
	st := &MockStore{}
	st.On("GetCachedVerdict", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	st.On("CreateRun", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	st.On("SetCachedVerdict", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	llm := &anthropicmocks.MockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(verdictResponse("ok", 3), nil)

	a := newTestAnalyzer(st, okFetchers(), llm, time.Hour)
	verdict, err := a.Analyze(context.Background(), "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, 3, verdict.Rating)
	// With no run ID there is nothing to transition or complete.
	st.AssertNotCalled(t, "UpdateRunStatus", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_RequestCancelled(t *testing.T) {
	st := permissiveStore(&model.Run{ID: "run-1"})
	llm := &anthropicmocks.MockClient{}

	hanging := []source.Fetcher{&stubFetcher{kind: model.SourceProfile, fn: func(ctx context.Context, _ string) (*model.SourceRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	a := newTestAnalyzer(st, hanging, llm, time.Hour)
	_, err := a.Analyze(ctx, "Acme Ltd")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	llm.AssertNumberOfCalls(t, "CreateMessage", 0)
}
