package handlers

import (
	"errors"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/http/dto"
	"github.com/Project-DOFTA/dft/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps domain sentinels to HTTP statuses. Backend detail
// behind ErrExternal and ErrInconsistent is logged, never returned.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)

	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrAmountMismatch):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrInsufficientInventory),
		errors.Is(err, domain.ErrAlreadyExists):
		status = fiber.StatusConflict
	default:
		log.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:     "internal error",
			RequestID: reqID,
		})
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
}
