package car

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// FirstCarYear is the earliest model year accepted.
const FirstCarYear = 1886

var (
	validBrands = map[string]bool{
		"Toyota": true, "Volkswagen": true, "Honda": true, "Ford": true, "Chevrolet": true,
		"Nissan": true, "BMW": true, "Mercedes": true, "Audi": true, "Hyundai": true, "Kia": true,
	}
	validColors = map[string]bool{
		"Black": true, "White": true, "Red": true, "Blue": true, "Green": true, "Yellow": true,
		"Silver": true, "Gray": true, "Brown": true, "Gold": true, "Orange": true, "Purple": true,
	}
	validFuelTypes     = map[string]bool{"Gasoline": true, "Diesel": true, "Electric": true, "Hybrid": true}
	validTransmissions = map[string]bool{"Automatic": true, "Manual": true}
)

// Spec holds the descriptive attributes of a car.
type Spec struct {
	Brand        string  `json:"brand" bson:"brand"`
	Model        string  `json:"model" bson:"model"`
	Year         int     `json:"year" bson:"year"`
	Price        float64 `json:"price" bson:"price"`
	Color        string  `json:"color" bson:"color"`
	FuelType     string  `json:"fuelType" bson:"fuelType"`
	Transmission string  `json:"transmission" bson:"transmission"`
	Mileage      int     `json:"mileage" bson:"mileage"`
	Seats        int     `json:"seats" bson:"seats"`
	Description  string  `json:"description,omitempty" bson:"description,omitempty"`
	Image        string  `json:"image,omitempty" bson:"image,omitempty"`
}

// Validate checks the spec against the catalogue rules.
func (s Spec) Validate(now time.Time) error {
	switch {
	case !validBrands[s.Brand]:
		return domain.NewValidationError(fmt.Sprintf("invalid brand: %s", s.Brand))
	case s.Model == "":
		return domain.NewValidationError("model is required")
	case s.Year < FirstCarYear || s.Year > now.Year():
		return domain.NewValidationError(fmt.Sprintf("year must be between %d and %d", FirstCarYear, now.Year()))
	case s.Price < 0:
		return domain.NewValidationError("price must not be negative")
	case !validColors[s.Color]:
		return domain.NewValidationError(fmt.Sprintf("invalid color: %s", s.Color))
	case !validFuelTypes[s.FuelType]:
		return domain.NewValidationError(fmt.Sprintf("invalid fuel type: %s", s.FuelType))
	case !validTransmissions[s.Transmission]:
		return domain.NewValidationError(fmt.Sprintf("invalid transmission: %s", s.Transmission))
	case s.Mileage < 0:
		return domain.NewValidationError("mileage must not be negative")
	case s.Seats < 0:
		return domain.NewValidationError("seats must not be negative")
	case len(s.Description) > 500:
		return domain.NewValidationError("description must be at most 500 characters")
	}
	return nil
}

// Car is a rentable vehicle owned by a company. Availability is never
// stored on the car; it is derived from the rental ledger.
type Car struct {
	id        uuid.UUID
	companyID uuid.UUID
	spec      Spec
	createdAt time.Time
}

// NewCar validates spec and creates a car for companyID.
func NewCar(companyID uuid.UUID, spec Spec) (*Car, error) {
	if companyID == uuid.Nil {
		return nil, domain.NewValidationError("company ID is required")
	}
	now := time.Now().UTC()
	if err := spec.Validate(now); err != nil {
		return nil, err
	}
	return &Car{id: uuid.New(), companyID: companyID, spec: spec, createdAt: now}, nil
}

// ReconstructCar rebuilds a Car from persistence data.
func ReconstructCar(id, companyID uuid.UUID, spec Spec, createdAt time.Time) *Car {
	return &Car{id: id, companyID: companyID, spec: spec, createdAt: createdAt}
}

func (c *Car) ID() uuid.UUID { return c.id }

func (c *Car) CompanyID() uuid.UUID { return c.companyID }

func (c *Car) Spec() Spec { return c.spec }

func (c *Car) CreatedAt() time.Time { return c.createdAt }

// CarRepository defines the persistence contract for cars.
type CarRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Car, error)
	Save(ctx context.Context, c *Car) error
}
