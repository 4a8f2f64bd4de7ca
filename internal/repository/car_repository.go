package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzizTN01/autorent-back/internal/domain/car"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// CarModel is the GORM model for the cars table.
type CarModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Brand        string    `gorm:"size:30;not null"`
	Model        string    `gorm:"size:100;not null"`
	Year         int       `gorm:"not null"`
	Price        float64   `gorm:"type:numeric;not null"`
	Color        string    `gorm:"size:20;not null"`
	FuelType     string    `gorm:"size:20;not null"`
	Transmission string    `gorm:"size:20;not null"`
	Mileage      int       `gorm:"not null;default:0"`
	Seats        int       `gorm:"not null;default:0"`
	Description  string    `gorm:"size:500"`
	Image        string    `gorm:"size:500"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (CarModel) TableName() string {
	return "cars"
}

// GormCarRepository is the PostgreSQL implementation of CarRepository.
type GormCarRepository struct {
	db *gorm.DB
}

// NewGormCarRepository creates a new GormCarRepository.
func NewGormCarRepository(db *gorm.DB) *GormCarRepository {
	return &GormCarRepository{db: db}
}

// FindByID retrieves a car by its unique identifier.
func (r *GormCarRepository) FindByID(ctx context.Context, id uuid.UUID) (*car.Car, error) {
	var m CarModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Car", id.String())
		}
		return nil, fmt.Errorf("failed to find car by ID: %w", err)
	}
	return car.ReconstructCar(m.ID, m.CompanyID, car.Spec{
		Brand:        m.Brand,
		Model:        m.Model,
		Year:         m.Year,
		Price:        m.Price,
		Color:        m.Color,
		FuelType:     m.FuelType,
		Transmission: m.Transmission,
		Mileage:      m.Mileage,
		Seats:        m.Seats,
		Description:  m.Description,
		Image:        m.Image,
	}, m.CreatedAt.UTC()), nil
}

// Save inserts or replaces a car.
func (r *GormCarRepository) Save(ctx context.Context, c *car.Car) error {
	s := c.Spec()
	m := CarModel{
		ID:           c.ID(),
		CompanyID:    c.CompanyID(),
		Brand:        s.Brand,
		Model:        s.Model,
		Year:         s.Year,
		Price:        s.Price,
		Color:        s.Color,
		FuelType:     s.FuelType,
		Transmission: s.Transmission,
		Mileage:      s.Mileage,
		Seats:        s.Seats,
		Description:  s.Description,
		Image:        s.Image,
		CreatedAt:    c.CreatedAt(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error; err != nil {
		return fmt.Errorf("failed to save car: %w", err)
	}
	return nil
}
