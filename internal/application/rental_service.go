package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/domain/car"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/internal/domain/user"
	"github.com/AzizTN01/autorent-back/internal/ledger"
	"github.com/AzizTN01/autorent-back/internal/metrics"
	"github.com/AzizTN01/autorent-back/pkg/domain"
	"github.com/AzizTN01/autorent-back/pkg/kafka"
)

const (
	linkTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// RentalService is the application service orchestrating rental use cases.
type RentalService struct {
	ledger    *ledger.Ledger
	users     user.UserRepository
	cars      car.CarRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewRentalService creates a new RentalService.
func NewRentalService(
	l *ledger.Ledger,
	users user.UserRepository,
	cars car.CarRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RentalService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &RentalService{
		ledger:    l,
		users:     users,
		cars:      cars,
		publisher: publisher,
		metrics:   m,
		validate:  newValidator(),
		logger:    logger,
	}
}

// CreateRental books a car for a user. Validation and existence checks
// fail before anything is written. If the rental is stored but cannot be
// linked to the user, the rental is still returned with a warning.
func (s *RentalService) CreateRental(ctx context.Context, req CreateRentalRequest) (*CreateRentalResult, error) {
	rt, err := s.buildRental(req)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeInvalid)
		return nil, err
	}

	if _, err := s.cars.FindByID(ctx, rt.CarID()); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, rt.UserID()); err != nil {
		return nil, err
	}

	saved, err := s.ledger.InsertIfAvailable(ctx, rt)
	if err != nil {
		s.observeInsertFailure(err)
		return nil, err
	}
	s.metrics.ObserveBooking(metrics.OutcomeCreated)

	result := &CreateRentalResult{Rental: toRentalDTO(saved)}
	if err := s.linkToUser(ctx, saved); err != nil {
		result.Warning = &LinkWarning{RentalID: saved.ID(), UserID: saved.UserID(), Reason: err.Error()}
		s.metrics.ObserveLinkFailure()
		s.logger.Warn("rental created but not linked to user",
			zap.String("rental_id", saved.ID().String()),
			zap.String("user_id", saved.UserID().String()),
			zap.Error(err),
		)
	}

	s.publishEvent(ctx, RentalCreated, saved.CarID().String(), RentalCreatedEvent{
		RentalID:   saved.ID(),
		UserID:     saved.UserID(),
		CarID:      saved.CarID(),
		StartDate:  saved.StartDate(),
		EndDate:    saved.EndDate(),
		TotalCost:  saved.TotalCost(),
		Linked:     result.Warning == nil,
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("rental created",
		zap.String("rental_id", saved.ID().String()),
		zap.String("car_id", saved.CarID().String()),
		zap.Time("start", saved.StartDate()),
		zap.Time("end", saved.EndDate()),
	)
	return result, nil
}

// GetRental retrieves a single rental by ID.
func (s *RentalService) GetRental(ctx context.Context, id uuid.UUID) (*RentalDTO, error) {
	r, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toRentalDTO(r)
	return &result, nil
}

// ListUserRentals retrieves paginated rentals for a user.
func (s *RentalService) ListUserRentals(ctx context.Context, userID uuid.UUID, page, limit int) (*domain.PaginatedResult[RentalDTO], error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	rentals, total, err := s.ledger.FindByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user rentals: %w", err)
	}
	result := domain.NewPaginatedResult(toRentalDTOs(rentals), total, page, limit)
	return &result, nil
}

// CheckAvailability reports whether carID is free for [start, end).
func (s *RentalService) CheckAvailability(ctx context.Context, carID uuid.UUID, start, end time.Time) (*AvailabilityDTO, error) {
	p, err := rental.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	if _, err := s.cars.FindByID(ctx, carID); err != nil {
		return nil, err
	}
	ids, err := s.ledger.HasConflict(ctx, carID, p, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &AvailabilityDTO{
		CarID:          carID,
		Start:          p.Start,
		End:            p.End,
		Available:      len(ids) == 0,
		ConflictingIDs: ids,
	}, nil
}

// ListCarRentals returns every rental of carID overlapping [start, end).
func (s *RentalService) ListCarRentals(ctx context.Context, carID uuid.UUID, start, end time.Time) ([]RentalDTO, error) {
	p, err := rental.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	if _, err := s.cars.FindByID(ctx, carID); err != nil {
		return nil, err
	}
	rentals, err := s.ledger.FindByCarAndRange(ctx, carID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list car rentals: %w", err)
	}
	return toRentalDTOs(rentals), nil
}

// TransitionStatus applies a lifecycle transition requested by a client.
func (s *RentalService) TransitionStatus(ctx context.Context, id uuid.UUID, req TransitionStatusRequest) (*RentalDTO, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	status, err := rental.ParseRentalStatus(req.Status)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return s.transition(ctx, id, status, req.Reason)
}

// CancelRental cancels a rental, releasing its period.
func (s *RentalService) CancelRental(ctx context.Context, id uuid.UUID, reason string) (*RentalDTO, error) {
	return s.transition(ctx, id, rental.StatusCancelled, reason)
}

// UpdatePaymentStatus applies a payment transition requested by a client.
func (s *RentalService) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, req UpdatePaymentRequest) (*RentalDTO, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	status, err := rental.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	return s.SetPaymentStatus(ctx, id, status)
}

// SetPaymentStatus applies a payment transition.
func (s *RentalService) SetPaymentStatus(ctx context.Context, id uuid.UUID, status rental.PaymentStatus) (*RentalDTO, error) {
	r, err := s.ledger.TransitionPayment(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, RentalPaymentChanged, r.CarID().String(), RentalPaymentChangedEvent{
		RentalID:      r.ID(),
		UserID:        r.UserID(),
		PaymentStatus: string(r.PaymentStatus()),
		OccurredAt:    time.Now().UTC(),
	})

	result := toRentalDTO(r)
	return &result, nil
}

// RescheduleRental moves a Pending or Confirmed rental to a new period.
func (s *RentalService) RescheduleRental(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*RentalDTO, error) {
	p, err := rental.NewPeriod(req.RentalStartDate.Time, req.RentalEndDate.Time)
	if err != nil {
		return nil, err
	}

	r, err := s.ledger.Reschedule(ctx, id, p)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, RentalRescheduled, r.CarID().String(), RentalRescheduledEvent{
		RentalID:   r.ID(),
		CarID:      r.CarID(),
		StartDate:  r.StartDate(),
		EndDate:    r.EndDate(),
		OccurredAt: time.Now().UTC(),
	})

	result := toRentalDTO(r)
	return &result, nil
}

// LinkRental adds an existing rental to its user's list. Safe to repeat.
func (s *RentalService) LinkRental(ctx context.Context, id uuid.UUID) (*RentalDTO, error) {
	r, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.users.AppendRental(ctx, r.UserID(), r.ID()); err != nil {
		return nil, fmt.Errorf("failed to link rental to user: %w", err)
	}
	result := toRentalDTO(r)
	return &result, nil
}

// AdvanceLifecycle starts Confirmed rentals whose period has begun and
// completes Ongoing rentals whose period has ended. Each rental is moved
// one step per sweep.
func (s *RentalService) AdvanceLifecycle(ctx context.Context, now time.Time, batch int) (SweepResult, error) {
	var res SweepResult

	toEnd, err := s.ledger.FindDue(ctx, rental.DueFilter{Status: rental.StatusOngoing, EndsBefore: &now, Limit: batch})
	if err != nil {
		return res, fmt.Errorf("failed to find rentals to complete: %w", err)
	}
	toStart, err := s.ledger.FindDue(ctx, rental.DueFilter{Status: rental.StatusConfirmed, StartsBefore: &now, Limit: batch})
	if err != nil {
		return res, fmt.Errorf("failed to find rentals to start: %w", err)
	}

	for _, r := range toEnd {
		if _, err := s.transition(ctx, r.ID(), rental.StatusCompleted, ""); err != nil {
			res.Failed++
			s.logger.Warn("failed to complete rental", zap.String("rental_id", r.ID().String()), zap.Error(err))
			continue
		}
		res.Completed++
	}
	for _, r := range toStart {
		if _, err := s.transition(ctx, r.ID(), rental.StatusOngoing, ""); err != nil {
			res.Failed++
			s.logger.Warn("failed to start rental", zap.String("rental_id", r.ID().String()), zap.Error(err))
			continue
		}
		res.Started++
	}

	s.metrics.ObserveSweep(string(rental.StatusCompleted), res.Completed)
	s.metrics.ObserveSweep(string(rental.StatusOngoing), res.Started)
	return res, nil
}

// --- Admin methods ---

// ListAllRentals returns a paginated list of all rentals (admin).
func (s *RentalService) ListAllRentals(ctx context.Context, page, limit int) ([]RentalDTO, int64, error) {
	rentals, total, err := s.ledger.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rentals: %w", err)
	}
	return toRentalDTOs(rentals), total, nil
}

// GetRentalStats returns aggregate rental statistics (admin).
func (s *RentalService) GetRentalStats(ctx context.Context) (*RentalStatsDTO, error) {
	counts, err := s.ledger.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rental stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &RentalStatsDTO{TotalRentals: total, ByStatus: counts}, nil
}

// --- Helpers ---

func (s *RentalService) buildRental(req CreateRentalRequest) (*rental.Rental, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, domain.NewValidationError("userId must be a UUID")
	}
	carID, err := uuid.Parse(req.CarID)
	if err != nil {
		return nil, domain.NewValidationError("carId must be a UUID")
	}
	p, err := rental.NewPeriod(req.RentalStartDate.Time, req.RentalEndDate.Time)
	if err != nil {
		return nil, err
	}
	return rental.NewRental(userID, carID, p, *req.TotalCost, req.PickupLocation, req.DropOffLocation)
}

func (s *RentalService) transition(ctx context.Context, id uuid.UUID, status rental.RentalStatus, reason string) (*RentalDTO, error) {
	r, err := s.ledger.TransitionStatus(ctx, id, status, reason)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, RentalStatusChanged, r.CarID().String(), RentalStatusChangedEvent{
		RentalID:   r.ID(),
		UserID:     r.UserID(),
		CarID:      r.CarID(),
		Status:     string(r.Status()),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})

	result := toRentalDTO(r)
	return &result, nil
}

// linkToUser runs detached from the request so a client disconnect after
// the insert does not leave the rental unlinked.
func (s *RentalService) linkToUser(ctx context.Context, r *rental.Rental) error {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), linkTimeout)
	defer cancel()
	return s.users.AppendRental(lctx, r.UserID(), r.ID())
}

func (s *RentalService) observeInsertFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrBookingConflict):
		s.metrics.ObserveBooking(metrics.OutcomeConflict)
	case errors.Is(err, domain.ErrBusy):
		s.metrics.ObserveBooking(metrics.OutcomeBusy)
	default:
		s.metrics.ObserveBooking(metrics.OutcomeError)
	}
}

func (s *RentalService) publishEvent(ctx context.Context, eventType, key string, data any) {
	cloudEvent, err := kafka.NewCloudEvent(EventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishEvent(pctx, TopicRentalEvents, key, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", TopicRentalEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

func (s *RentalService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return domain.NewValidationError(strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "uuid":
		return fe.Field() + " must be a UUID"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}
