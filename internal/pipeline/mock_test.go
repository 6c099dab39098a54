package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/digiaccounts/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertIfAbsent(ctx context.Context, doc *store.Document) (bool, error) {
	args := m.Called(ctx, doc)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) InsertManyIfAbsent(ctx context.Context, docs []*store.Document) (int64, error) {
	args := m.Called(ctx, docs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*store.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Document), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Document), args.Error(1)
}

func (m *mockStore) StartRun(ctx context.Context, source string) (int64, error) {
	args := m.Called(ctx, source)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID int64, result store.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	return m.Called(ctx, runID, errMsg).Error(0)
}

func (m *mockStore) LastSuccess(ctx context.Context, source string) (*time.Time, error) {
	args := m.Called(ctx, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

var _ store.Store = (*mockStore)(nil)
