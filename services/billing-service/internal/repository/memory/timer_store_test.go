package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LegalPracticePlatform/pkg/errors"
	"LegalPracticePlatform/services/billing-service/internal/domain"
)

func newTimer(id, tenant, user, caseID string) *domain.ActiveTimer {
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	return &domain.ActiveTimer{
		ID:        id,
		TenantID:  tenant,
		UserID:    user,
		CaseID:    caseID,
		StartedAt: now,
		Running:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTimerRepository_CreateConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewTimerStore().Timers()

	require.NoError(t, repo.Create(ctx, newTimer("t1", "tenant-1", "user-1", "case-1")))

	err := repo.Create(ctx, newTimer("t2", "tenant-1", "user-1", "case-1"))
	assert.True(t, errors.IsCode(err, errors.ErrConflict))

	// другой арендатор или другое дело не конфликтуют
	require.NoError(t, repo.Create(ctx, newTimer("t3", "tenant-2", "user-1", "case-1")))
	require.NoError(t, repo.Create(ctx, newTimer("t4", "tenant-1", "user-1", "case-2")))
}

func TestTimerRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewTimerStore().Timers()

	var wg sync.WaitGroup
	var created, conflicts int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, newTimer(fmt.Sprintf("t%d", i), "tenant-1", "user-1", "case-1"))
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case errors.IsCode(err, errors.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(19), conflicts)
}

func TestTimerRepository_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewTimerStore().Timers()
	require.NoError(t, repo.Create(ctx, newTimer("t1", "tenant-1", "user-1", "case-1")))

	_, err := repo.GetByID(ctx, "tenant-2", "t1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	_, err = repo.Modify(ctx, "tenant-2", "t1", func(*domain.ActiveTimer) (bool, error) { return true, nil })
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	timers, err := repo.ListByTenant(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Empty(t, timers)
}

func TestTimerRepository_Modify(t *testing.T) {
	ctx := context.Background()
	repo := NewTimerStore().Timers()
	require.NoError(t, repo.Create(ctx, newTimer("t1", "tenant-1", "user-1", "case-1")))

	t.Run("no change keeps version", func(t *testing.T) {
		got, err := repo.Modify(ctx, "tenant-1", "t1", func(*domain.ActiveTimer) (bool, error) { return false, nil })
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Version)
	})

	t.Run("error leaves state unchanged", func(t *testing.T) {
		_, err := repo.Modify(ctx, "tenant-1", "t1", func(timer *domain.ActiveTimer) (bool, error) {
			timer.AccumulatedSeconds = 999
			return true, errors.New(errors.ErrForbidden, "nope")
		})
		require.Error(t, err)

		got, err := repo.GetByID(ctx, "tenant-1", "t1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.AccumulatedSeconds)
	})

	t.Run("change bumps version", func(t *testing.T) {
		got, err := repo.Modify(ctx, "tenant-1", "t1", func(timer *domain.ActiveTimer) (bool, error) {
			return timer.Pause(timer.StartedAt.Add(time.Minute)), nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, int64(60), got.AccumulatedSeconds)
	})
}

func TestTimerRepository_Finish(t *testing.T) {
	ctx := context.Background()
	store := NewTimerStore()
	timers, sessions := store.Timers(), store.Sessions()
	require.NoError(t, timers.Create(ctx, newTimer("t1", "tenant-1", "user-1", "case-1")))

	end := time.Date(2024, 3, 5, 9, 10, 0, 0, time.UTC)
	timer, session, err := timers.Finish(ctx, "tenant-1", "t1", func(timer *domain.ActiveTimer) (*domain.TimerSession, error) {
		return timer.NewSession("s1", end), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", timer.ID)
	assert.Equal(t, int64(600), session.TotalDurationSeconds)

	exists, err := timers.ExistsForCase(ctx, "tenant-1", "user-1", "case-1")
	require.NoError(t, err)
	assert.False(t, exists)

	stored, err := sessions.GetByID(ctx, "tenant-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), stored.TotalDurationSeconds)

	require.NoError(t, sessions.MarkConverted(ctx, "tenant-1", "s1"))
	stored, err = sessions.GetByID(ctx, "tenant-1", "s1")
	require.NoError(t, err)
	assert.True(t, stored.ConvertedToTimeEntry)

	_, err = sessions.GetByID(ctx, "tenant-2", "s1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	_, _, err = timers.Finish(ctx, "tenant-1", "t1", func(timer *domain.ActiveTimer) (*domain.TimerSession, error) {
		return timer.NewSession("s2", end), nil
	})
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	list, err := sessions.ListByUser(ctx, "tenant-1", "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
