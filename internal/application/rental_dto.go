package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/internal/domain/rental"
)

// DateTime accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (taken as
// midnight UTC) and always encodes as RFC 3339.
type DateTime struct {
	time.Time
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(time.RFC3339Nano))
}

// ParseDateTime parses RFC 3339 or YYYY-MM-DD.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// CreateRentalRequest holds the data needed to book a car.
type CreateRentalRequest struct {
	UserID          string   `json:"userId" validate:"required,uuid"`
	CarID           string   `json:"carId" validate:"required,uuid"`
	RentalStartDate DateTime `json:"rentalStartDate"`
	RentalEndDate   DateTime `json:"rentalEndDate"`
	TotalCost       *float64 `json:"totalCost" validate:"required,gte=0"`
	PickupLocation  string   `json:"pickupLocation" validate:"required,max=255"`
	DropOffLocation string   `json:"dropOffLocation" validate:"required,max=255"`
}

// TransitionStatusRequest asks for a lifecycle transition.
type TransitionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Confirmed Ongoing Completed Cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

// UpdatePaymentRequest asks for a payment sub-state transition.
type UpdatePaymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=Unpaid Paid Refunded"`
}

// RescheduleRequest moves a rental to a new period.
type RescheduleRequest struct {
	RentalStartDate DateTime `json:"rentalStartDate"`
	RentalEndDate   DateTime `json:"rentalEndDate"`
}

// RentalDTO is the response representation of a rental.
type RentalDTO struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"userId"`
	CarID           uuid.UUID  `json:"carId"`
	RentalStartDate time.Time  `json:"rentalStartDate"`
	RentalEndDate   time.Time  `json:"rentalEndDate"`
	TotalCost       float64    `json:"totalCost"`
	PickupLocation  string     `json:"pickupLocation"`
	DropOffLocation string     `json:"dropOffLocation"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	CancelReason    string     `json:"cancelReason,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// LinkWarning reports a rental that was created but could not be added to
// its user's rental list. The rental stands; linking can be retried.
type LinkWarning struct {
	RentalID uuid.UUID `json:"rentalId"`
	UserID   uuid.UUID `json:"userId"`
	Reason   string    `json:"reason"`
}

func (w *LinkWarning) Error() string {
	return fmt.Sprintf("rental %s not linked to user %s: %s", w.RentalID, w.UserID, w.Reason)
}

// CreateRentalResult is a created rental plus an optional link warning.
type CreateRentalResult struct {
	Rental  RentalDTO
	Warning *LinkWarning
}

// AvailabilityDTO answers whether a car is free for a period.
type AvailabilityDTO struct {
	CarID          uuid.UUID   `json:"carId"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	Available      bool        `json:"available"`
	ConflictingIDs []uuid.UUID `json:"conflictingIds"`
}

// RentalStatsDTO holds rental statistics for the admin dashboard.
type RentalStatsDTO struct {
	TotalRentals int64            `json:"totalRentals"`
	ByStatus     map[string]int64 `json:"byStatus"`
}

// SweepResult counts rentals advanced by one lifecycle sweep.
type SweepResult struct {
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func toRentalDTO(r *rental.Rental) RentalDTO {
	return RentalDTO{
		ID:              r.ID(),
		UserID:          r.UserID(),
		CarID:           r.CarID(),
		RentalStartDate: r.StartDate(),
		RentalEndDate:   r.EndDate(),
		TotalCost:       r.TotalCost(),
		PickupLocation:  r.PickupLocation(),
		DropOffLocation: r.DropOffLocation(),
		Status:          string(r.Status()),
		PaymentStatus:   string(r.PaymentStatus()),
		CancelledAt:     r.CancelledAt(),
		CancelReason:    r.CancelReason(),
		Version:         r.Version(),
		CreatedAt:       r.CreatedAt(),
		UpdatedAt:       r.UpdatedAt(),
	}
}

func toRentalDTOs(rentals []*rental.Rental) []RentalDTO {
	dtos := make([]RentalDTO, len(rentals))
	for i, r := range rentals {
		dtos[i] = toRentalDTO(r)
	}
	return dtos
}
