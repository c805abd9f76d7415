package analyzer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/store"
)

// MockStore implements store.Store for pipeline tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, company string) (*model.Run, error) {
	args := m.Called(ctx, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *MockStore) CompleteRun(ctx context.Context, runID string, verdict *model.CompanyVerdict, sources []model.FetchOutcome) error {
	return m.Called(ctx, runID, verdict, sources).Error(0)
}

func (m *MockStore) FailRun(ctx context.Context, runID string, reason string) error {
	return m.Called(ctx, runID, reason).Error(0)
}

func (m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *MockStore) GetCachedVerdict(ctx context.Context, company string) (*model.CompanyVerdict, error) {
	args := m.Called(ctx, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompanyVerdict), args.Error(1)
}

func (m *MockStore) SetCachedVerdict(ctx context.Context, company string, verdict *model.CompanyVerdict, ttl time.Duration) error {
	return m.Called(ctx, company, verdict, ttl).Error(0)
}

func (m *MockStore) DeleteExpiredVerdicts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}
