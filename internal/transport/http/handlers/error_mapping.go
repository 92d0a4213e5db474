package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finledger/finledger-backend/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against the typed
// domain errors and the supplied sentinel cases, falling back to a generic
// response. Typed errors carry their own detail (validation message,
// retry-after); sentinel messages come from the case table so internal
// detail never leaks.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var validation *usecase.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
		return
	}

	var locked *usecase.AccountLockedError
	if errors.As(err, &locked) {
		setRetryAfter(c, locked.RetryAfter.Seconds())
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, locked.Error()))
		return
	}

	var limited *usecase.RateLimitedError
	if errors.As(err, &limited) {
		setRetryAfter(c, limited.RetryAfter.Seconds())
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, limited.Error()))
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func setRetryAfter(c *gin.Context, seconds float64) {
	value := int(math.Ceil(seconds))
	if value < 0 {
		value = 0
	}
	c.Writer.Header().Set("Retry-After", strconv.Itoa(value))
}
