package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFoundError("Car", "abc"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Car not found: abc", errors.Unwrap(err).Error())
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("x: %w", NewInvalidStateError("completed", "cancelled")))
	assert.True(t, ok)
	assert.Equal(t, CodeInvalidState, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewPaginatedResult(t *testing.T) {
	res := NewPaginatedResult[int](nil, 41, 2, 20)
	assert.Equal(t, 3, res.TotalPages)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestOffset(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        int
	}{
		{"first page", 1, 20, 0},
		{"third page", 3, 20, 40},
		{"page below one", -5, 20, 0},
		{"zero limit", 4, 0, 0},
		{"overflowing page", 92233720368547760, 100, math.MaxInt},
		{"max int page", math.MaxInt, 1, math.MaxInt - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Offset(tt.page, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}
