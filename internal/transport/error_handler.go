package transport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error is an HTTP error carrying a stable taxonomy code for clients.
type Error struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func NewError(status int, code string, message string, retryable bool) *Error {
	return &Error{Status: status, Code: code, Message: message, Retryable: retryable}
}

func (e *Error) Error() string {
	return e.Message
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		resp := errorResponse{
			Error: "internal server error",
			Code:  "internal",
		}
		status := fiber.StatusInternalServerError

		var httpErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &httpErr):
			status = httpErr.Status
			resp = errorResponse{Error: httpErr.Message, Code: httpErr.Code, Retryable: httpErr.Retryable}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			resp = errorResponse{Error: fiberErr.Message, Code: statusCode(fiberErr.Code)}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		}
		if requestID, ok := c.Locals("requestid").(string); ok && requestID != "" {
			fields = append(fields, zap.String("requestId", requestID))
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Info("request rejected", fields...)
		}

		return c.Status(status).JSON(resp)
	}
}

// statusCode turns an HTTP status into a snake_case code, e.g. 404 -> "not_found".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
