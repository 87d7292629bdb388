package middlewares

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/avelkins10/kin-hvac-tool-sub001/finance"
	"github.com/avelkins10/kin-hvac-tool-sub001/logger"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
// Finance errors surface their stable code so the frontend can switch on
// `code` instead of matching message strings.
func ErrorHandler(c *fiber.Ctx, err error) error {
	// 1) Typed finance errors ({error, code[, field]} + the taxonomy's status)
	var fe *finance.Error
	if errors.As(err, &fe) {
		body := fiber.Map{"error": fe.Message, "code": fe.Code}
		if fe.Field != "" {
			body["field"] = fe.Field
		}
		return c.Status(fe.StatusCode).JSON(body)
	}

	// 2) Fiber errors (use their status code + message)
	if fbe, ok := err.(*fiber.Error); ok {
		return c.Status(fbe.Code).JSON(fiber.Map{"message": fbe.Message})
	}

	// 3) Validation errors (422 + per-field info)
	if ve, ok := err.(validator.ValidationErrors); ok {
		out := make(map[string]string, len(ve))
		for _, f := range ve {
			out[f.Field()] = f.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 4) Unknown errors (500)
	logger.L().Error("internal error", zap.Error(err), zap.String("path", c.Path()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
