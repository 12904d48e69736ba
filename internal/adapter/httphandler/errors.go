package httphandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/domain"
)

var errBadRequest = errors.New("bad request")

// statusOf maps domain errors to response codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInsufficientKeys),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the mapped status. Internal errors
// are logged and their text is not exposed.
func writeError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "op", op, "err", err)
		c.AbortWithStatusJSON(status, errorResponse{
			Error: http.StatusText(status),
		})
		return
	}

	slog.Debug("request rejected", "op", op, "status", status, "err", err)
	c.AbortWithStatusJSON(status, errorResponse{Error: publicMessage(err)})
}

func publicMessage(err error) string {
	var (
		validationErr *domain.ValidationError
		keysErr       *domain.InsufficientKeysError
		stockErr      *domain.InsufficientStockError
		notFoundErr   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &keysErr):
		return keysShortageMessage(err)
	case errors.As(err, &validationErr):
		return validationErr.Field + ": " + validationErr.Reason
	case errors.As(err, &stockErr):
		return stockErr.Error()
	case errors.As(err, &notFoundErr):
		return notFoundErr.Error()
	case errors.Is(err, domain.ErrEmptyCart):
		return domain.ErrEmptyCart.Error()
	case errors.Is(err, domain.ErrConflict):
		return domain.ErrConflict.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.ErrUnauthorized.Error()
	case errors.Is(err, domain.ErrForbidden):
		return domain.ErrForbidden.Error()
	default:
		return err.Error()
	}
}

// keysShortageMessage lists every short product of a rejected checkout.
func keysShortageMessage(err error) string {
	var msg string
	for _, e := range shortages(err) {
		if msg != "" {
			msg += "; "
		}
		msg += e.Error()
	}
	return msg
}

func shortages(err error) []*domain.InsufficientKeysError {
	if e, ok := err.(*domain.InsufficientKeysError); ok {
		return []*domain.InsufficientKeysError{e}
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		var out []*domain.InsufficientKeysError
		for _, e := range x.Unwrap() {
			out = append(out, shortages(e)...)
		}
		return out
	case interface{ Unwrap() error }:
		return shortages(x.Unwrap())
	}
	return nil
}
