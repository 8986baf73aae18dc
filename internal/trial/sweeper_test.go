package trial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/neurosales/neuroseller-bot/internal/domain/users"
)

type MockSweepStore struct {
	mock.Mock
}

func (m *MockSweepStore) ListEndingInDays(ctx context.Context, days int) ([]*users.User, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *MockSweepStore) ListExpiredActive(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *MockSweepStore) SetActive(ctx context.Context, userID int64, active bool) error {
	args := m.Called(ctx, userID, active)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TrialEnding(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *MockNotifier) TrialEnded(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func newTestSweeper(store SweepStore, notify Notifier) *Sweeper {
	return NewSweeper(store, notify, newNoopLogger(), 1)
}

func TestSweeper_EndingSoonPass(t *testing.T) {
	ending := []*users.User{
		{UserID: 1, ChatID: 11, IsActive: true},
		{UserID: 2, ChatID: 22, IsActive: true},
		{UserID: 3, ChatID: 33, IsActive: true},
	}

	store := new(MockSweepStore)
	notify := new(MockNotifier)
	store.On("ListEndingInDays", mock.Anything, 1).Return(ending, nil).Once()
	store.On("ListExpiredActive", mock.Anything).Return([]*users.User{}, nil).Once()
	// сбой у второго пользователя не блокирует третьего
	notify.On("TrialEnding", mock.Anything, int64(11)).Return(nil).Once()
	notify.On("TrialEnding", mock.Anything, int64(22)).Return(errors.New("blocked by user")).Once()
	notify.On("TrialEnding", mock.Anything, int64(33)).Return(nil).Once()

	err := newTestSweeper(store, notify).runCycle(context.Background())
	assert.NoError(t, err)
	store.AssertExpectations(t)
	notify.AssertExpectations(t)
}

func TestSweeper_ExpiredPass(t *testing.T) {
	tariffID := int64(2)
	expired := []*users.User{
		{UserID: 1, ChatID: 11, IsActive: true},
		{UserID: 2, ChatID: 22, IsActive: true, TariffID: &tariffID}, // тариф выбран — не трогаем
		{UserID: 3, ChatID: 33, IsActive: true},
	}

	store := new(MockSweepStore)
	notify := new(MockNotifier)
	store.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil).Once()
	store.On("ListExpiredActive", mock.Anything).Return(expired, nil).Once()
	store.On("SetActive", mock.Anything, int64(1), false).Return(nil).Once()
	store.On("SetActive", mock.Anything, int64(3), false).Return(nil).Once()
	notify.On("TrialEnded", mock.Anything, int64(11)).Return(nil).Once()
	notify.On("TrialEnded", mock.Anything, int64(33)).Return(errors.New("bot blocked")).Once()

	err := newTestSweeper(store, notify).runCycle(context.Background())
	assert.NoError(t, err)

	// пользователь с тарифом ни разу не деактивирован
	store.AssertNotCalled(t, "SetActive", mock.Anything, int64(2), mock.Anything)
	store.AssertExpectations(t)
	notify.AssertExpectations(t)
}

func TestSweeper_DeactivateBeforeNotify(t *testing.T) {
	store := new(MockSweepStore)
	notify := new(MockNotifier)
	store.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil).Once()
	store.On("ListExpiredActive", mock.Anything).Return([]*users.User{
		{UserID: 1, ChatID: 11, IsActive: true},
	}, nil).Once()

	deactivated := false
	store.On("SetActive", mock.Anything, int64(1), false).Run(func(mock.Arguments) {
		deactivated = true
	}).Return(nil).Once()
	notify.On("TrialEnded", mock.Anything, int64(11)).Run(func(mock.Arguments) {
		// сбой уведомления не должен оставить пользователя активным
		assert.True(t, deactivated, "notification sent before deactivation")
	}).Return(errors.New("send failed")).Once()

	err := newTestSweeper(store, notify).runCycle(context.Background())
	assert.NoError(t, err)
	store.AssertExpectations(t)
	notify.AssertExpectations(t)
}

func TestSweeper_StoreFailureAbortsCycle(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockSweepStore, *MockNotifier)
	}{
		{
			name: "ending list failure",
			setupMocks: func(s *MockSweepStore, _ *MockNotifier) {
				s.On("ListEndingInDays", mock.Anything, 1).Return(nil, errors.New("db down")).Once()
			},
		},
		{
			name: "expired list failure",
			setupMocks: func(s *MockSweepStore, _ *MockNotifier) {
				s.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil).Once()
				s.On("ListExpiredActive", mock.Anything).Return(nil, errors.New("db down")).Once()
			},
		},
		{
			name: "deactivation write failure",
			setupMocks: func(s *MockSweepStore, _ *MockNotifier) {
				s.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil).Once()
				s.On("ListExpiredActive", mock.Anything).Return([]*users.User{
					{UserID: 1, ChatID: 11, IsActive: true},
				}, nil).Once()
				s.On("SetActive", mock.Anything, int64(1), false).Return(errors.New("db down")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockSweepStore)
			notify := new(MockNotifier)
			tt.setupMocks(store, notify)

			err := newTestSweeper(store, notify).runCycle(context.Background())
			assert.Error(t, err)
			store.AssertExpectations(t)
		})
	}
}

func TestSweeper_RunStopsOnContextCancel(t *testing.T) {
	store := new(MockSweepStore)
	notify := new(MockNotifier)
	store.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil)
	store.On("ListExpiredActive", mock.Anything).Return([]*users.User{}, nil)

	s := newTestSweeper(store, notify)
	s.period = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

// Сценарий из жизни: регистрация в t0, триал 14 дней, напоминание за 1 день.
func TestSweeper_FourteenDayScenario(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	u := &users.User{UserID: 7, ChatID: 77, IsActive: true, RegisteredAt: t0, TrialEndAt: t0.AddDate(0, 0, 14)}

	// t0+13d: пользователь попадает в ending-soon ровно один раз
	store := new(MockSweepStore)
	notify := new(MockNotifier)
	store.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{u}, nil).Once()
	store.On("ListExpiredActive", mock.Anything).Return([]*users.User{}, nil).Once()
	notify.On("TrialEnding", mock.Anything, int64(77)).Return(nil).Once()

	assert.NoError(t, newTestSweeper(store, notify).runCycle(context.Background()))
	notify.AssertNumberOfCalls(t, "TrialEnding", 1)

	// t0+15d: тариф не выбран — деактивация и уведомление о завершении
	store2 := new(MockSweepStore)
	notify2 := new(MockNotifier)
	store2.On("ListEndingInDays", mock.Anything, 1).Return([]*users.User{}, nil).Once()
	store2.On("ListExpiredActive", mock.Anything).Return([]*users.User{u}, nil).Once()
	store2.On("SetActive", mock.Anything, int64(7), false).Return(nil).Once()
	notify2.On("TrialEnded", mock.Anything, int64(77)).Return(nil).Once()

	assert.NoError(t, newTestSweeper(store2, notify2).runCycle(context.Background()))
	store2.AssertExpectations(t)
	notify2.AssertExpectations(t)
}
