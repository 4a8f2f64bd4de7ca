package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/internal/domain/car"
	"github.com/AzizTN01/autorent-back/internal/domain/user"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// UserRepository is an in-memory user.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*user.User)}
}

func (r *UserRepository) FindByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("User", id.String())
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Save(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID()] = cloneUser(u)
	return nil
}

func (r *UserRepository) AppendRental(_ context.Context, userID, rentalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return domain.NewNotFoundError("User", userID.String())
	}
	u.LinkRental(rentalID)
	return nil
}

func cloneUser(u *user.User) *user.User {
	return user.ReconstructUser(u.ID(), u.Name(), u.Email(), u.MobileNumber(), u.Rentals(), u.CreatedAt())
}

// CarRepository is an in-memory car.CarRepository.
type CarRepository struct {
	mu   sync.RWMutex
	cars map[uuid.UUID]*car.Car
}

func NewCarRepository() *CarRepository {
	return &CarRepository{cars: make(map[uuid.UUID]*car.Car)}
}

func (r *CarRepository) FindByID(_ context.Context, id uuid.UUID) (*car.Car, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cars[id]
	if !ok {
		return nil, domain.NewNotFoundError("Car", id.String())
	}
	return c, nil
}

func (r *CarRepository) Save(_ context.Context, c *car.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cars[c.ID()] = c
	return nil
}
