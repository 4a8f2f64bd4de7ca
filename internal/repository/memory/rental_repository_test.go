package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

func newRental(t *testing.T, carID uuid.UUID, from, to int) *rental.Rental {
	t.Helper()
	p, err := rental.NewPeriod(
		time.Date(2025, 1, from, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, to, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	rt, err := rental.NewRental(uuid.New(), carID, p, 100, "A", "B")
	require.NoError(t, err)
	return rt
}

func TestRentalRepository_SaveRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewRentalRepository()
	carID := uuid.New()

	first := newRental(t, carID, 15, 20)
	require.NoError(t, repo.Save(ctx, first))

	err := repo.Save(ctx, newRental(t, carID, 18, 22))
	assert.ErrorIs(t, err, domain.ErrBookingConflict)
	assert.Equal(t, []uuid.UUID{first.ID()}, rental.ConflictingIDs(err))

	assert.NoError(t, repo.Save(ctx, newRental(t, carID, 20, 25)))
	assert.NoError(t, repo.Save(ctx, newRental(t, uuid.New(), 15, 20)))
}

func TestRentalRepository_UpdateOptimisticLock(t *testing.T) {
	ctx := context.Background()
	repo := NewRentalRepository()
	rt := newRental(t, uuid.New(), 1, 3)
	require.NoError(t, repo.Save(ctx, rt))

	a, err := repo.FindByID(ctx, rt.ID())
	require.NoError(t, err)
	b, err := repo.FindByID(ctx, rt.ID())
	require.NoError(t, err)

	require.NoError(t, a.TransitionTo(rental.StatusConfirmed, ""))
	a.IncrementVersion()
	require.NoError(t, repo.Update(ctx, a))

	require.NoError(t, b.Cancel("stale"))
	b.IncrementVersion()
	assert.ErrorIs(t, repo.Update(ctx, b), domain.ErrConflict)

	stored, err := repo.FindByID(ctx, rt.ID())
	require.NoError(t, err)
	assert.Equal(t, rental.StatusConfirmed, stored.Status())
}

func TestRentalRepository_FindDue(t *testing.T) {
	ctx := context.Background()
	repo := NewRentalRepository()

	due := newRental(t, uuid.New(), 1, 2)
	require.NoError(t, due.TransitionTo(rental.StatusConfirmed, ""))
	notYet := newRental(t, uuid.New(), 20, 21)
	require.NoError(t, notYet.TransitionTo(rental.StatusConfirmed, ""))
	pending := newRental(t, uuid.New(), 1, 2)
	for _, rt := range []*rental.Rental{due, notYet, pending} {
		require.NoError(t, repo.Save(ctx, rt))
	}

	cutoff := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	got, err := repo.FindDue(ctx, rental.DueFilter{Status: rental.StatusConfirmed, StartsBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID(), got[0].ID())
}

func TestRentalRepository_FindByUserIDPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewRentalRepository()
	userID := uuid.New()
	carID := uuid.New()

	for i := 0; i < 5; i++ {
		p, err := rental.NewPeriod(
			time.Date(2025, 2, 1+2*i, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 2, 2+2*i, 0, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)
		rt, err := rental.NewRental(userID, carID, p, 10, "A", "B")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, rt))
	}

	page, total, err := repo.FindByUserID(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	last, _, err := repo.FindByUserID(ctx, userID, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

func TestRentalRepository_PageBeyondRange(t *testing.T) {
	ctx := context.Background()
	repo := NewRentalRepository()
	rt := newRental(t, uuid.New(), 1, 3)
	require.NoError(t, repo.Save(ctx, rt))

	var (
		page  []*rental.Rental
		total int64
		err   error
	)
	require.NotPanics(t, func() {
		page, total, err = repo.FindByUserID(ctx, rt.UserID(), 92233720368547760, 100)
	})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, int64(1), total)

	require.NotPanics(t, func() {
		page, _, err = repo.ListAll(ctx, 92233720368547760, 100)
	})
	require.NoError(t, err)
	assert.Empty(t, page)
}
