package car

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

func validSpec() Spec {
	return Spec{
		Brand:        "Toyota",
		Model:        "Corolla",
		Year:         2020,
		Price:        45,
		Color:        "White",
		FuelType:     "Hybrid",
		Transmission: "Automatic",
		Seats:        5,
	}
}

func TestNewCar(t *testing.T) {
	c, err := NewCar(uuid.New(), validSpec())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID())
	assert.Equal(t, "Corolla", c.Spec().Model)
}

func TestNewCar_Validation(t *testing.T) {
	cases := map[string]func(*Spec){
		"brand":        func(s *Spec) { s.Brand = "Lada" },
		"model":        func(s *Spec) { s.Model = "" },
		"year too old": func(s *Spec) { s.Year = 1800 },
		"future year":  func(s *Spec) { s.Year = 3000 },
		"price":        func(s *Spec) { s.Price = -1 },
		"color":        func(s *Spec) { s.Color = "Pink" },
		"fuel":         func(s *Spec) { s.FuelType = "Steam" },
		"transmission": func(s *Spec) { s.Transmission = "CVT" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSpec()
			mutate(&s)
			_, err := NewCar(uuid.New(), s)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := NewCar(uuid.Nil, validSpec())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
