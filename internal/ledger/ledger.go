// Package ledger is the authoritative record of rentals per car. All writes
// that can grow a car's occupied time (inserts and reschedules) run under
// that car's lock, so the overlap check and the write are one atomic step.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/carlock"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/internal/metrics"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// Options tune lock and retry behaviour.
type Options struct {
	// LockWait bounds how long a writer waits for a busy car.
	LockWait time.Duration
	// WriteTimeout bounds the locked section once the lock is held.
	WriteTimeout time.Duration
	// MaxRetries is how often a mutation is retried after losing an
	// optimistic version race.
	MaxRetries int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	LockWait:     5 * time.Second,
	WriteTimeout: 10 * time.Second,
	MaxRetries:   3,
}

// Ledger serialises per-car booking writes over a RentalRepository.
type Ledger struct {
	repo    rental.RentalRepository
	locker  carlock.Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    Options
}

// New creates a Ledger.
func New(
	repo rental.RentalRepository,
	locker carlock.Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) *Ledger {
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultOptions.LockWait
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions.WriteTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Ledger{repo: repo, locker: locker, metrics: m, logger: logger, opts: opts}
}

// HasConflict returns the ids of active rentals of carID overlapping p,
// ignoring exclude. It reads only and takes no lock.
func (l *Ledger) HasConflict(ctx context.Context, carID uuid.UUID, p rental.Period, exclude uuid.UUID) ([]uuid.UUID, error) {
	if !p.Start.Before(p.End) {
		return nil, rental.ErrInvalidRange
	}
	existing, err := l.repo.FindByCarAndRange(ctx, carID, p, rental.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rentals for car %s: %w", carID, err)
	}
	return rental.Conflicts(p, existing, exclude), nil
}

// InsertIfAvailable stores r if its period is free on its car. Nothing is
// written when the period is taken.
func (l *Ledger) InsertIfAvailable(ctx context.Context, r *rental.Rental) (*rental.Rental, error) {
	release, err := l.lockCar(ctx, r.CarID())
	if err != nil {
		return nil, err
	}
	defer release()

	// The lock is held: finish the write even if the caller goes away.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.WriteTimeout)
	defer cancel()

	ids, err := l.HasConflict(wctx, r.CarID(), r.Period(), uuid.Nil)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return nil, rental.NewBookingConflictError(r.CarID(), ids)
	}

	if err := l.repo.Save(wctx, r); err != nil {
		return nil, err
	}

	l.logger.Debug("rental inserted",
		zap.String("rental_id", r.ID().String()),
		zap.String("car_id", r.CarID().String()),
	)
	return r, nil
}

// FindByID returns one rental.
func (l *Ledger) FindByID(ctx context.Context, id uuid.UUID) (*rental.Rental, error) {
	return l.repo.FindByID(ctx, id)
}

// FindByCarAndRange returns every rental of carID overlapping p, any status.
func (l *Ledger) FindByCarAndRange(ctx context.Context, carID uuid.UUID, p rental.Period) ([]*rental.Rental, error) {
	return l.repo.FindByCarAndRange(ctx, carID, p)
}

// FindByUser returns a page of a user's rentals, newest first.
func (l *Ledger) FindByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]*rental.Rental, int64, error) {
	return l.repo.FindByUserID(ctx, userID, page, limit)
}

// FindDue returns rentals ready for an automatic lifecycle step.
func (l *Ledger) FindDue(ctx context.Context, f rental.DueFilter) ([]*rental.Rental, error) {
	return l.repo.FindDue(ctx, f)
}

// ListAll returns a page of all rentals.
func (l *Ledger) ListAll(ctx context.Context, page, limit int) ([]*rental.Rental, int64, error) {
	return l.repo.ListAll(ctx, page, limit)
}

// CountByStatus returns rental counts per status.
func (l *Ledger) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return l.repo.CountByStatus(ctx)
}

// TransitionStatus applies a lifecycle transition. No transition can make
// an inactive rental active again, so this needs no car lock.
func (l *Ledger) TransitionStatus(ctx context.Context, id uuid.UUID, target rental.RentalStatus, reason string) (*rental.Rental, error) {
	r, err := l.mutate(ctx, id, func(r *rental.Rental) error {
		return r.TransitionTo(target, reason)
	})
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveTransition("status", string(target))
	return r, nil
}

// TransitionPayment applies a payment sub-state transition.
func (l *Ledger) TransitionPayment(ctx context.Context, id uuid.UUID, target rental.PaymentStatus) (*rental.Rental, error) {
	r, err := l.mutate(ctx, id, func(r *rental.Rental) error {
		return r.TransitionPayment(target)
	})
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveTransition("payment", string(target))
	return r, nil
}

// Reschedule moves rental id to p if p is free on its car, ignoring the
// rental's own current period.
func (l *Ledger) Reschedule(ctx context.Context, id uuid.UUID, p rental.Period) (*rental.Rental, error) {
	current, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := l.lockCar(ctx, current.CarID())
	if err != nil {
		return nil, err
	}
	defer release()

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.WriteTimeout)
	defer cancel()

	return l.mutate(wctx, id, func(r *rental.Rental) error {
		if !r.Status().CanBeRescheduled() {
			return domain.NewInvalidStateError(string(r.Status()), "Rescheduled")
		}
		ids, err := l.HasConflict(wctx, r.CarID(), p, r.ID())
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return rental.NewBookingConflictError(r.CarID(), ids)
		}
		return r.Reschedule(p)
	})
}

// mutate reloads, applies fn and saves with optimistic locking, retrying
// version races up to MaxRetries times.
func (l *Ledger) mutate(ctx context.Context, id uuid.UUID, fn func(*rental.Rental) error) (*rental.Rental, error) {
	for attempt := 0; ; attempt++ {
		r, err := l.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			return nil, err
		}
		r.IncrementVersion()

		err = l.repo.Update(ctx, r)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= l.opts.MaxRetries {
			return nil, err
		}
		l.logger.Debug("retrying rental update after version conflict",
			zap.String("rental_id", id.String()),
			zap.Int("attempt", attempt+1),
		)
	}
}

func (l *Ledger) lockCar(ctx context.Context, carID uuid.UUID) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, l.opts.LockWait)
	defer cancel()

	start := time.Now()
	release, err := l.locker.Acquire(lctx, carID.String())
	l.metrics.ObserveLockWait(time.Since(start))
	if err == nil {
		return release, nil
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("booking aborted while waiting for car %s: %w", carID, ctx.Err())
	}
	if errors.Is(err, carlock.ErrTimeout) {
		l.logger.Warn("car lock wait timed out",
			zap.String("car_id", carID.String()),
			zap.Duration("waited", time.Since(start)),
		)
		return nil, domain.NewServiceBusyError(fmt.Sprintf("car %s is busy, retry shortly", carID))
	}
	return nil, fmt.Errorf("failed to lock car %s: %w", carID, err)
}
