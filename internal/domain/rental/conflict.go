package rental

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// Conflicts returns the ids of active rentals in existing that overlap p.
// A rental whose id equals exclude is ignored, so a rental can be checked
// against everything except itself.
func Conflicts(p Period, existing []*Rental, exclude uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, r := range existing {
		if r.ID() == exclude || !r.IsActive() {
			continue
		}
		if r.Period().Overlaps(p) {
			ids = append(ids, r.ID())
		}
	}
	return ids
}

// NewBookingConflictError builds the error returned when p is taken on carID.
func NewBookingConflictError(carID uuid.UUID, conflicting []uuid.UUID) *domain.Error {
	ids := make([]string, len(conflicting))
	for i, id := range conflicting {
		ids[i] = id.String()
	}
	return &domain.Error{
		Code:    domain.CodeBookingConflict,
		Message: fmt.Sprintf("car %s is not available for the selected dates", carID),
		Details: map[string]any{
			"carId":          carID.String(),
			"conflictingIds": ids,
		},
	}
}

// ConflictingIDs extracts the conflicting rental ids from a booking conflict.
func ConflictingIDs(err error) []uuid.UUID {
	var de *domain.Error
	if !errors.As(err, &de) || de.Code != domain.CodeBookingConflict {
		return nil
	}
	raw, _ := de.Details["conflictingIds"].([]string)
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
