package api

import (
	"strconv"

	apperrors "realtime-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

func invalidBody(err error) *apperrors.AppError {
	return apperrors.NewBadRequestError(apperrors.CodeInvalidRequest, "Request body could not be parsed").Wrap(err)
}

// queryLimit reads ?limit=, defaulting to def and clamping to 1..maxLimit
func queryLimit(c *gin.Context, def, maxLimit int) (int, error) {
	raw, ok := c.GetQuery("limit")
	if !ok || raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError("limit", "The limit field must be an integer.").Wrap(err)
	}

	if n < 1 {
		n = 1
	}
	if maxLimit > 0 && n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
