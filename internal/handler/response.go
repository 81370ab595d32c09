package handler

import (
	"errors"
	"strconv"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/middleware"
	"go-loyalty-store/internal/service"
	"go-loyalty-store/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ok(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: message, Data: data})
}

func okPage(c *fiber.Ctx, message string, data, meta interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Message: message, Data: data, Meta: meta})
}

// fail renders err into the error envelope. Unknown errors never leak their text.
func fail(c *fiber.Ctx, err error) error {
	appErr := apperror.From(err)
	if appErr.Kind() == apperror.KindInternal {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(appErr.Unwrap()),
		)
	}
	return c.Status(appErr.HTTPCode()).JSON(Response{
		Success: false,
		Message: appErr.Message(),
		Error:   &ErrorInfo{Code: appErr.Code(), Details: appErr.Details()},
	})
}

// ErrorHandler is installed as the fiber error handler so middleware errors
// and routing errors share the envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Response{
			Success: false,
			Message: fe.Message,
			Error:   &ErrorInfo{Code: "HTTP_" + strconv.Itoa(fe.Code)},
		})
	}
	return fail(c, err)
}

func badBody() error {
	return apperror.ErrValidation.WithDetails("invalid request body")
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.ErrValidation.WithDetails("invalid " + name)
	}
	return id, nil
}

func uuidQuery(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.ErrValidation.WithDetails("invalid " + name)
	}
	return &id, nil
}

// dateQuery accepts YYYY-MM-DD or RFC3339. A bare date used as an upper
// bound covers the whole day.
func dateQuery(c *fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperror.ErrValidation.WithDetails("invalid " + name + ", use YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// Helper functions
func getUserID(c *fiber.Ctx) uuid.UUID {
	if raw, ok := c.Locals(middleware.LocalUserID).(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func getUserName(c *fiber.Ctx) string {
	if name, ok := c.Locals(middleware.LocalUserName).(string); ok {
		return name
	}
	return "System"
}

func getUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(middleware.LocalUserEmail).(string); ok {
		return email
	}
	return ""
}

func actor(c *fiber.Ctx) service.Actor {
	return service.Actor{ID: getUserID(c).String(), Name: getUserName(c), Email: getUserEmail(c)}
}
