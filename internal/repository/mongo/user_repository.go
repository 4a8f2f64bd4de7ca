package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AzizTN01/autorent-back/internal/domain/car"
	"github.com/AzizTN01/autorent-back/internal/domain/user"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

type userDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	MobileNumber string    `bson:"mobileNumber,omitempty"`
	Rentals      []string  `bson:"rentals"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// UserRepository is the MongoDB implementation of user.UserRepository.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(UsersCollection)}
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	rentals := make([]uuid.UUID, 0, len(doc.Rentals))
	for _, s := range doc.Rentals {
		rid, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt rental ref on user %s: %w", doc.ID, err)
		}
		rentals = append(rentals, rid)
	}
	return user.ReconstructUser(id, doc.Name, doc.Email, doc.MobileNumber, rentals, doc.CreatedAt.UTC()), nil
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	rentals := make([]string, 0, len(u.Rentals()))
	for _, id := range u.Rentals() {
		rentals = append(rentals, id.String())
	}
	doc := userDocument{
		ID:           u.ID().String(),
		Name:         u.Name(),
		Email:        u.Email(),
		MobileNumber: u.MobileNumber(),
		Rentals:      rentals,
		CreatedAt:    u.CreatedAt(),
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// AppendRental adds rentalID to the user's rentals with $addToSet, so
// repeating it leaves a single entry.
func (r *UserRepository) AppendRental(ctx context.Context, userID, rentalID uuid.UUID) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID.String()},
		bson.M{"$addToSet": bson.M{"rentals": rentalID.String()}},
	)
	if err != nil {
		return fmt.Errorf("failed to link rental to user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NewNotFoundError("User", userID.String())
	}
	return nil
}

type carDocument struct {
	ID        string    `bson:"_id"`
	CompanyID string    `bson:"company"`
	Spec      car.Spec  `bson:",inline"`
	CreatedAt time.Time `bson:"createdAt"`
}

// CarRepository is the MongoDB implementation of car.CarRepository.
type CarRepository struct {
	coll *mongo.Collection
}

func NewCarRepository(db *mongo.Database) *CarRepository {
	return &CarRepository{coll: db.Collection(CarsCollection)}
}

func (r *CarRepository) FindByID(ctx context.Context, id uuid.UUID) (*car.Car, error) {
	var doc carDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError("Car", id.String())
		}
		return nil, fmt.Errorf("failed to find car by ID: %w", err)
	}
	companyID, err := uuid.Parse(doc.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("corrupt company ref on car %s: %w", doc.ID, err)
	}
	return car.ReconstructCar(id, companyID, doc.Spec, doc.CreatedAt.UTC()), nil
}

func (r *CarRepository) Save(ctx context.Context, c *car.Car) error {
	doc := carDocument{
		ID:        c.ID().String(),
		CompanyID: c.CompanyID().String(),
		Spec:      c.Spec(),
		CreatedAt: c.CreatedAt(),
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save car: %w", err)
	}
	return nil
}
