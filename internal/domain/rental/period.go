package rental

import (
	"time"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// ErrInvalidRange is returned when a period does not start strictly before it ends.
var ErrInvalidRange = domain.NewValidationError("rental start date must be before rental end date")

// Period is a half-open time range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates and normalises a range to UTC millisecond precision,
// the finest precision every backing store keeps.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, domain.NewValidationError("rental start and end dates are required")
	}
	p := Period{
		Start: start.UTC().Truncate(time.Millisecond),
		End:   end.UTC().Truncate(time.Millisecond),
	}
	if !p.Start.Before(p.End) {
		return Period{}, ErrInvalidRange
	}
	return p, nil
}

// Overlaps reports whether the two half-open ranges share any instant.
// Ranges that only touch (p.End == o.Start) do not overlap.
func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && o.Start.Before(p.End)
}

// Duration returns End - Start.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}
