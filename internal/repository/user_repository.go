package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzizTN01/autorent-back/internal/domain/user"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	MobileNumber string    `gorm:"size:20"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserModel) TableName() string {
	return "users"
}

// UserRentalModel links a rental to its user. The composite primary key
// makes linking idempotent.
type UserRentalModel struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	RentalID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LinkedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserRentalModel) TableName() string {
	return "user_rentals"
}

// GormUserRepository is the PostgreSQL implementation of UserRepository.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user and their linked rental ids.
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	var links []UserRentalModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		Order("linked_at ASC, rental_id ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to load user rentals: %w", err)
	}

	rentals := make([]uuid.UUID, len(links))
	for i, l := range links {
		rentals[i] = l.RentalID
	}
	return user.ReconstructUser(model.ID, model.Name, model.Email, model.MobileNumber, rentals, model.CreatedAt.UTC()), nil
}

// Save inserts or replaces a user. Linked rentals are kept.
func (r *GormUserRepository) Save(ctx context.Context, u *user.User) error {
	model := UserModel{
		ID:           u.ID(),
		Name:         u.Name(),
		Email:        u.Email(),
		MobileNumber: u.MobileNumber(),
		CreatedAt:    u.CreatedAt(),
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "mobile_number"}),
		}).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
		for _, id := range u.Rentals() {
			if err := appendRental(tx, u.ID(), id); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRental links rentalID to userID. Repeating it is a no-op.
func (r *GormUserRepository) AppendRental(ctx context.Context, userID, rentalID uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		return domain.NewNotFoundError("User", userID.String())
	}
	return appendRental(r.db.WithContext(ctx), userID, rentalID)
}

func appendRental(db *gorm.DB, userID, rentalID uuid.UUID) error {
	link := UserRentalModel{UserID: userID, RentalID: rentalID, LinkedAt: time.Now().UTC()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return fmt.Errorf("failed to link rental to user: %w", err)
	}
	return nil
}
