package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DueFilter selects rentals whose lifecycle is due to advance.
// Exactly one of StartsBefore or EndsBefore is normally set.
type DueFilter struct {
	Status       RentalStatus
	StartsBefore *time.Time
	EndsBefore   *time.Time
	Limit        int
}

// RentalRepository defines the persistence contract for rental aggregates.
type RentalRepository interface {
	// Save persists a new rental. A store-level overlap violation is
	// reported as a booking conflict.
	Save(ctx context.Context, r *Rental) error

	// FindByID retrieves a rental by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Rental, error)

	// FindByCarAndRange returns rentals of carID overlapping p.
	// When statuses is non-empty only rentals in those statuses are returned.
	FindByCarAndRange(ctx context.Context, carID uuid.UUID, p Period, statuses ...RentalStatus) ([]*Rental, error)

	// FindByUserID retrieves rentals belonging to a user with pagination, newest first.
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*Rental, int64, error)

	// FindDue returns rentals matching f, oldest period first.
	FindDue(ctx context.Context, f DueFilter) ([]*Rental, error)

	// ListAll retrieves all rentals with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Rental, int64, error)

	// CountByStatus returns rental counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Update persists changes to an existing rental with optimistic locking.
	// The rental must have had IncrementVersion called once since it was read.
	Update(ctx context.Context, r *Rental) error
}
