package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the renting customer. Only the fields the booking core needs are modelled.
type User struct {
	id           uuid.UUID
	name         string
	email        string
	mobileNumber string
	rentals      []uuid.UUID
	createdAt    time.Time
}

// ReconstructUser rebuilds a User from persistence data.
func ReconstructUser(id uuid.UUID, name, email, mobileNumber string, rentals []uuid.UUID, createdAt time.Time) *User {
	return &User{
		id:           id,
		name:         name,
		email:        email,
		mobileNumber: mobileNumber,
		rentals:      append([]uuid.UUID(nil), rentals...),
		createdAt:    createdAt,
	}
}

// ID returns the user's unique identifier.
func (u *User) ID() uuid.UUID { return u.id }

func (u *User) Name() string { return u.name }

func (u *User) Email() string { return u.email }

func (u *User) MobileNumber() string { return u.mobileNumber }

func (u *User) CreatedAt() time.Time { return u.createdAt }

// Rentals returns the user's rental ids in booking order.
func (u *User) Rentals() []uuid.UUID {
	return append([]uuid.UUID(nil), u.rentals...)
}

// LinkRental appends rentalID unless it is already linked. It reports
// whether the list changed.
func (u *User) LinkRental(rentalID uuid.UUID) bool {
	for _, id := range u.rentals {
		if id == rentalID {
			return false
		}
	}
	u.rentals = append(u.rentals, rentalID)
	return true
}

// UserRepository defines the persistence contract for users.
type UserRepository interface {
	// FindByID retrieves a user by id.
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Save inserts or replaces a user.
	Save(ctx context.Context, u *User) error

	// AppendRental links rentalID to the user. Linking an already linked
	// rental is a no-op.
	AppendRental(ctx context.Context, userID, rentalID uuid.UUID) error
}
