package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

const (
	pgExclusionViolation = "23P01"
	noOverlapConstraint  = "rentals_no_overlap"
)

// RentalModel is the GORM model for the rentals table.
type RentalModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserRef         uuid.UUID  `gorm:"type:uuid;index;not null"`
	CarRef          uuid.UUID  `gorm:"type:uuid;not null"`
	StartDate       time.Time  `gorm:"not null"`
	EndDate         time.Time  `gorm:"not null"`
	TotalCost       float64    `gorm:"type:numeric;not null"`
	PickupLocation  string     `gorm:"size:255;not null"`
	DropOffLocation string     `gorm:"size:255;not null"`
	Status          string     `gorm:"size:20;not null;index"`
	PaymentStatus   string     `gorm:"size:20;not null"`
	CancelledAt     *time.Time `gorm:""`
	CancelReason    string     `gorm:"size:500"`
	Version         int64      `gorm:"not null;default:1"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RentalModel) TableName() string {
	return "rentals"
}

// GormRentalRepository is the PostgreSQL implementation of RentalRepository.
// The rentals_no_overlap exclusion constraint rejects overlapping active
// rentals of one car even if two writers get past the application check.
type GormRentalRepository struct {
	db *gorm.DB
}

// NewGormRentalRepository creates a new GormRentalRepository.
func NewGormRentalRepository(db *gorm.DB) *GormRentalRepository {
	return &GormRentalRepository{db: db}
}

// Save persists a new rental.
func (r *GormRentalRepository) Save(ctx context.Context, rt *rental.Rental) error {
	if err := r.db.WithContext(ctx).Create(toRentalModel(rt)).Error; err != nil {
		if isOverlapViolation(err) {
			return r.overlapError(ctx, rt)
		}
		return fmt.Errorf("failed to save rental: %w", err)
	}
	return nil
}

// FindByID retrieves a rental by its unique identifier.
func (r *GormRentalRepository) FindByID(ctx context.Context, id uuid.UUID) (*rental.Rental, error) {
	var model RentalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Rental", id.String())
		}
		return nil, fmt.Errorf("failed to find rental by ID: %w", err)
	}
	return toDomainRental(&model)
}

// FindByCarAndRange returns rentals of carID overlapping p.
func (r *GormRentalRepository) FindByCarAndRange(ctx context.Context, carID uuid.UUID, p rental.Period, statuses ...rental.RentalStatus) ([]*rental.Rental, error) {
	q := r.db.WithContext(ctx).
		Where("car_ref = ? AND start_date < ? AND end_date > ?", carID, p.End, p.Start)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}

	var models []RentalModel
	if err := q.Order("start_date ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find car rentals: %w", err)
	}
	return toDomainRentals(models)
}

// FindByUserID retrieves rentals for a specific user with pagination.
func (r *GormRentalRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*rental.Rental, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RentalModel{}).Where("user_ref = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count user rentals: %w", err)
	}

	var models []RentalModel
	offset := domain.Offset(page, limit)
	if err := r.db.WithContext(ctx).
		Where("user_ref = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find user rentals: %w", err)
	}

	rentals, err := toDomainRentals(models)
	return rentals, total, err
}

// FindDue returns rentals in f.Status whose period started or ended before the cutoff.
func (r *GormRentalRepository) FindDue(ctx context.Context, f rental.DueFilter) ([]*rental.Rental, error) {
	q := r.db.WithContext(ctx).Where("status = ?", string(f.Status))
	if f.StartsBefore != nil {
		q = q.Where("start_date < ?", *f.StartsBefore)
	}
	if f.EndsBefore != nil {
		q = q.Where("end_date < ?", *f.EndsBefore)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var models []RentalModel
	if err := q.Order("start_date ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find due rentals: %w", err)
	}
	return toDomainRentals(models)
}

// ListAll retrieves all rentals with pagination (admin).
func (r *GormRentalRepository) ListAll(ctx context.Context, page, limit int) ([]*rental.Rental, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RentalModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count rentals: %w", err)
	}

	var models []RentalModel
	offset := domain.Offset(page, limit)
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list rentals: %w", err)
	}

	rentals, err := toDomainRentals(models)
	return rentals, total, err
}

// CountByStatus returns rental counts grouped by status (admin).
func (r *GormRentalRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&RentalModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Update persists changes to an existing rental with optimistic locking.
func (r *GormRentalRepository) Update(ctx context.Context, rt *rental.Rental) error {
	model := toRentalModel(rt)

	// Only update if the stored version is the one we read (IncrementVersion was called once).
	expectedVersion := rt.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&RentalModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"start_date":     model.StartDate,
			"end_date":       model.EndDate,
			"status":         model.Status,
			"payment_status": model.PaymentStatus,
			"cancelled_at":   model.CancelledAt,
			"cancel_reason":  model.CancelReason,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		if isOverlapViolation(result.Error) {
			return r.overlapError(ctx, rt)
		}
		return fmt.Errorf("failed to update rental: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, rt.ID()); err != nil {
			return err
		}
		return domain.NewConflictError("rental was modified by another transaction")
	}

	return nil
}

// overlapError reports a constraint violation as a booking conflict,
// naming the rentals that hold the period when they can be loaded.
func (r *GormRentalRepository) overlapError(ctx context.Context, rt *rental.Rental) error {
	existing, err := r.FindByCarAndRange(ctx, rt.CarID(), rt.Period(), rental.ActiveStatuses...)
	if err != nil {
		return rental.NewBookingConflictError(rt.CarID(), nil)
	}
	return rental.NewBookingConflictError(rt.CarID(), rental.Conflicts(rt.Period(), existing, rt.ID()))
}

func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgExclusionViolation &&
		pgErr.ConstraintName == noOverlapConstraint
}

// --- Conversion Helpers ---

func statusStrings(statuses []rental.RentalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toRentalModel(rt *rental.Rental) *RentalModel {
	return &RentalModel{
		ID:              rt.ID(),
		UserRef:         rt.UserID(),
		CarRef:          rt.CarID(),
		StartDate:       rt.StartDate(),
		EndDate:         rt.EndDate(),
		TotalCost:       rt.TotalCost(),
		PickupLocation:  rt.PickupLocation(),
		DropOffLocation: rt.DropOffLocation(),
		Status:          string(rt.Status()),
		PaymentStatus:   string(rt.PaymentStatus()),
		CancelledAt:     rt.CancelledAt(),
		CancelReason:    rt.CancelReason(),
		Version:         rt.Version(),
		CreatedAt:       rt.CreatedAt(),
		UpdatedAt:       rt.UpdatedAt(),
	}
}

func toDomainRental(m *RentalModel) (*rental.Rental, error) {
	status, err := rental.ParseRentalStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := rental.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}

	var cancelledAt *time.Time
	if m.CancelledAt != nil {
		t := m.CancelledAt.UTC()
		cancelledAt = &t
	}

	return rental.ReconstructRental(
		m.ID,
		m.UserRef,
		m.CarRef,
		rental.Period{Start: m.StartDate.UTC(), End: m.EndDate.UTC()},
		m.TotalCost,
		m.PickupLocation,
		m.DropOffLocation,
		status,
		paymentStatus,
		cancelledAt,
		m.CancelReason,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	), nil
}

func toDomainRentals(models []RentalModel) ([]*rental.Rental, error) {
	rentals := make([]*rental.Rental, len(models))
	for i := range models {
		rt, err := toDomainRental(&models[i])
		if err != nil {
			return nil, err
		}
		rentals[i] = rt
	}
	return rentals, nil
}
