// Package memory holds map-backed repositories with the same semantics as
// the database-backed ones, including the overlap backstop on writes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// RentalRepository is an in-memory rental.RentalRepository.
type RentalRepository struct {
	mu      sync.RWMutex
	rentals map[uuid.UUID]*rental.Rental
}

// NewRentalRepository creates an empty repository.
func NewRentalRepository() *RentalRepository {
	return &RentalRepository{rentals: make(map[uuid.UUID]*rental.Rental)}
}

func (r *RentalRepository) Save(_ context.Context, rt *rental.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rentals[rt.ID()]; exists {
		return domain.NewConflictError("rental already exists: " + rt.ID().String())
	}
	if err := r.checkOverlap(rt); err != nil {
		return err
	}
	r.rentals[rt.ID()] = clone(rt)
	return nil
}

func (r *RentalRepository) FindByID(_ context.Context, id uuid.UUID) (*rental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.rentals[id]
	if !ok {
		return nil, domain.NewNotFoundError("Rental", id.String())
	}
	return clone(rt), nil
}

func (r *RentalRepository) FindByCarAndRange(_ context.Context, carID uuid.UUID, p rental.Period, statuses ...rental.RentalStatus) ([]*rental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*rental.Rental
	for _, rt := range r.rentals {
		if rt.CarID() != carID || !rt.Period().Overlaps(p) || !statusIn(rt.Status(), statuses) {
			continue
		}
		out = append(out, clone(rt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate().Before(out[j].StartDate()) })
	return out, nil
}

func (r *RentalRepository) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]*rental.Rental, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*rental.Rental
	for _, rt := range r.rentals {
		if rt.UserID() == userID {
			all = append(all, rt)
		}
	}
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *RentalRepository) FindDue(_ context.Context, f rental.DueFilter) ([]*rental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*rental.Rental
	for _, rt := range r.rentals {
		if rt.Status() != f.Status {
			continue
		}
		if f.StartsBefore != nil && !rt.StartDate().Before(*f.StartsBefore) {
			continue
		}
		if f.EndsBefore != nil && !rt.EndDate().Before(*f.EndsBefore) {
			continue
		}
		out = append(out, clone(rt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate().Before(out[j].StartDate()) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *RentalRepository) ListAll(_ context.Context, page, limit int) ([]*rental.Rental, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*rental.Rental, 0, len(r.rentals))
	for _, rt := range r.rentals {
		all = append(all, rt)
	}
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *RentalRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, rt := range r.rentals {
		counts[string(rt.Status())]++
	}
	return counts, nil
}

func (r *RentalRepository) Update(_ context.Context, rt *rental.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rentals[rt.ID()]
	if !ok {
		return domain.NewNotFoundError("Rental", rt.ID().String())
	}
	if current.Version() != rt.Version()-1 {
		return domain.NewConflictError("rental was modified by another transaction")
	}
	if err := r.checkOverlap(rt); err != nil {
		return err
	}
	r.rentals[rt.ID()] = clone(rt)
	return nil
}

// checkOverlap rejects rt if it is active and overlaps another active
// rental of the same car. Callers hold r.mu.
func (r *RentalRepository) checkOverlap(rt *rental.Rental) error {
	if !rt.IsActive() {
		return nil
	}
	var existing []*rental.Rental
	for _, other := range r.rentals {
		if other.CarID() == rt.CarID() {
			existing = append(existing, other)
		}
	}
	if ids := rental.Conflicts(rt.Period(), existing, rt.ID()); len(ids) > 0 {
		return rental.NewBookingConflictError(rt.CarID(), ids)
	}
	return nil
}

func statusIn(s rental.RentalStatus, statuses []rental.RentalStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

// paginate sorts newest first and returns clones of the requested page.
func paginate(all []*rental.Rental, page, limit int) []*rental.Rental {
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	start := domain.Offset(page, limit)
	if limit <= 0 || start >= len(all) {
		return []*rental.Rental{}
	}
	end := len(all)
	if limit < end-start {
		end = start + limit
	}
	out := make([]*rental.Rental, 0, end-start)
	for _, rt := range all[start:end] {
		out = append(out, clone(rt))
	}
	return out
}

func clone(rt *rental.Rental) *rental.Rental {
	var cancelledAt *time.Time
	if rt.CancelledAt() != nil {
		t := *rt.CancelledAt()
		cancelledAt = &t
	}
	return rental.ReconstructRental(
		rt.ID(),
		rt.UserID(),
		rt.CarID(),
		rt.Period(),
		rt.TotalCost(),
		rt.PickupLocation(),
		rt.DropOffLocation(),
		rt.Status(),
		rt.PaymentStatus(),
		cancelledAt,
		rt.CancelReason(),
		rt.Version(),
		rt.CreatedAt(),
		rt.UpdatedAt(),
	)
}
