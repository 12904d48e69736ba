package httphandler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/domain"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// bindJSON decodes the body into v, reporting malformed input as a bad
// request.
func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
