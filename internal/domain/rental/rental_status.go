package rental

import "fmt"

// RentalStatus is the lifecycle state of a rental.
type RentalStatus string

const (
	StatusPending   RentalStatus = "Pending"
	StatusConfirmed RentalStatus = "Confirmed"
	StatusOngoing   RentalStatus = "Ongoing"
	StatusCompleted RentalStatus = "Completed"
	StatusCancelled RentalStatus = "Cancelled"
)

// validTransitions defines the rental lifecycle state machine.
var validTransitions = map[RentalStatus][]RentalStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusOngoing, StatusCancelled},
	StatusOngoing:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ActiveStatuses are the statuses that hold a car for their period.
var ActiveStatuses = []RentalStatus{StatusPending, StatusConfirmed, StatusOngoing}

// IsValid returns true if the status is a recognized rental status.
func (s RentalStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s RentalStatus) CanTransitionTo(target RentalStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s RentalStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// IsActive reports whether a rental in this status blocks its car's period.
func (s RentalStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// CanBeRescheduled reports whether the period may still be moved.
func (s RentalStatus) CanBeRescheduled() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s RentalStatus) String() string {
	return string(s)
}

// ParseRentalStatus converts a string to a RentalStatus, returning an error if invalid.
func ParseRentalStatus(s string) (RentalStatus, error) {
	status := RentalStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid rental status: %s", s)
	}
	return status, nil
}
