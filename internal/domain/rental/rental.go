package rental

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// Rental is the aggregate root for a car reservation.
type Rental struct {
	id              uuid.UUID
	userID          uuid.UUID
	carID           uuid.UUID
	period          Period
	totalCost       float64
	pickupLocation  string
	dropOffLocation string

	status        RentalStatus
	paymentStatus PaymentStatus
	cancelledAt   *time.Time
	cancelReason  string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewRental creates a Pending, Unpaid rental.
func NewRental(
	userID uuid.UUID,
	carID uuid.UUID,
	period Period,
	totalCost float64,
	pickupLocation string,
	dropOffLocation string,
) (*Rental, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if carID == uuid.Nil {
		return nil, domain.NewValidationError("car ID is required")
	}
	if !period.Start.Before(period.End) {
		return nil, ErrInvalidRange
	}
	if math.IsNaN(totalCost) || math.IsInf(totalCost, 0) || totalCost < 0 {
		return nil, domain.NewValidationError("total cost must be a non-negative number")
	}
	if strings.TrimSpace(pickupLocation) == "" {
		return nil, domain.NewValidationError("pickup location is required")
	}
	if strings.TrimSpace(dropOffLocation) == "" {
		return nil, domain.NewValidationError("drop-off location is required")
	}

	now := timestamp()
	return &Rental{
		id:              uuid.New(),
		userID:          userID,
		carID:           carID,
		period:          period,
		totalCost:       totalCost,
		pickupLocation:  strings.TrimSpace(pickupLocation),
		dropOffLocation: strings.TrimSpace(dropOffLocation),
		status:          StatusPending,
		paymentStatus:   PaymentUnpaid,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructRental rebuilds a Rental from persistence data (no validation).
func ReconstructRental(
	id uuid.UUID,
	userID uuid.UUID,
	carID uuid.UUID,
	period Period,
	totalCost float64,
	pickupLocation string,
	dropOffLocation string,
	status RentalStatus,
	paymentStatus PaymentStatus,
	cancelledAt *time.Time,
	cancelReason string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Rental {
	return &Rental{
		id:              id,
		userID:          userID,
		carID:           carID,
		period:          period,
		totalCost:       totalCost,
		pickupLocation:  pickupLocation,
		dropOffLocation: dropOffLocation,
		status:          status,
		paymentStatus:   paymentStatus,
		cancelledAt:     cancelledAt,
		cancelReason:    cancelReason,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

// ID returns the rental's unique identifier.
func (r *Rental) ID() uuid.UUID { return r.id }

// UserID returns the renting user's ID.
func (r *Rental) UserID() uuid.UUID { return r.userID }

// CarID returns the rented car's ID.
func (r *Rental) CarID() uuid.UUID { return r.carID }

// Period returns the reserved [start, end) range.
func (r *Rental) Period() Period { return r.period }

func (r *Rental) StartDate() time.Time { return r.period.Start }

func (r *Rental) EndDate() time.Time { return r.period.End }

// TotalCost returns the cost agreed at booking time.
func (r *Rental) TotalCost() float64 { return r.totalCost }

func (r *Rental) PickupLocation() string { return r.pickupLocation }

func (r *Rental) DropOffLocation() string { return r.dropOffLocation }

// Status returns the current lifecycle status.
func (r *Rental) Status() RentalStatus { return r.status }

// PaymentStatus returns the current payment sub-state.
func (r *Rental) PaymentStatus() PaymentStatus { return r.paymentStatus }

// CancelledAt returns the time the rental was cancelled.
func (r *Rental) CancelledAt() *time.Time { return r.cancelledAt }

// CancelReason returns the cancellation reason.
func (r *Rental) CancelReason() string { return r.cancelReason }

// Version returns the entity version for optimistic locking.
func (r *Rental) Version() int64 { return r.version }

// CreatedAt returns the creation timestamp.
func (r *Rental) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (r *Rental) UpdatedAt() time.Time { return r.updatedAt }

// IsActive reports whether the rental currently holds its car.
func (r *Rental) IsActive() bool { return r.status.IsActive() }

// --- Behavior ---

// TransitionTo moves the rental to target if the lifecycle allows it.
// reason is recorded only when target is Cancelled.
func (r *Rental) TransitionTo(target RentalStatus, reason string) error {
	if !target.IsValid() {
		return domain.NewValidationError("unknown rental status: " + string(target))
	}
	if !r.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(r.status), string(target))
	}
	now := timestamp()
	if target == StatusCancelled {
		r.cancelledAt = &now
		r.cancelReason = reason
	}
	r.status = target
	r.updatedAt = now
	return nil
}

// Cancel releases the rental's period for other bookings.
func (r *Rental) Cancel(reason string) error {
	return r.TransitionTo(StatusCancelled, reason)
}

// TransitionPayment moves the payment sub-state if allowed.
func (r *Rental) TransitionPayment(target PaymentStatus) error {
	if !target.IsValid() {
		return domain.NewValidationError("unknown payment status: " + string(target))
	}
	if !r.paymentStatus.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(r.paymentStatus), string(target))
	}
	r.paymentStatus = target
	r.updatedAt = timestamp()
	return nil
}

// Reschedule moves the rental to a new period. Availability of the new
// period is checked by the caller.
func (r *Rental) Reschedule(p Period) error {
	if !r.status.CanBeRescheduled() {
		return domain.NewInvalidStateError(string(r.status), "Rescheduled")
	}
	if !p.Start.Before(p.End) {
		return ErrInvalidRange
	}
	r.period = p
	r.updatedAt = timestamp()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Rental) IncrementVersion() {
	r.version++
	r.updatedAt = timestamp()
}

// timestamp matches the millisecond precision of Period so values survive
// every store unchanged.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
