package response

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// ErrorBody is the JSON shape of every error reply.
type ErrorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Paginated writes 200 with a page of items and paging metadata.
func Paginated(c *gin.Context, items any, total int64, page, limit int) {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"total":       total,
			"page":        page,
			"limit":       limit,
			"total_pages": pages,
		},
	})
}

// BadRequest writes 400 with a validation code.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
		Message: message,
		Code:    string(domain.CodeValidation),
	})
}

// Error maps err onto an HTTP status and writes the error body.
// Unknown errors become 500 without leaking their text.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)

	var de *domain.Error
	if !errors.As(err, &de) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
			Message: "internal server error",
			Code:    "INTERNAL_ERROR",
		})
		return
	}

	status := StatusFor(de.Code)
	if de.Code == domain.CodeBusy {
		c.Header("Retry-After", strconv.Itoa(1))
	}
	c.AbortWithStatusJSON(status, ErrorBody{
		Message: de.Message,
		Code:    string(de.Code),
		Details: de.Details,
	})
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeBookingConflict:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case domain.CodeBusy:
		return http.StatusServiceUnavailable
	case domain.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
