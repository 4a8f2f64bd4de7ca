package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestError_MapsDomainCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"booking conflict", &domain.Error{Code: domain.CodeBookingConflict, Message: "taken"}, http.StatusBadRequest, "BOOKING_CONFLICT"},
		{"not found", domain.NewNotFoundError("Car", "1"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid state", domain.NewInvalidStateError("completed", "pending"), http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
		{"busy", domain.NewServiceBusyError("later"), http.StatusServiceUnavailable, "SERVICE_BUSY"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
		})
	}
}

func TestError_BusySetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, domain.NewServiceBusyError("later"))

	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
