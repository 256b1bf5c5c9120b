package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/evc-wallet/evc_wallet/internal/apperr"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// FieldErrors is a validation error that names the offending fields.
type FieldErrors struct {
	Fields map[string]string
	err    *apperr.Error
}

func (e *FieldErrors) Error() string { return e.err.Error() }
func (e *FieldErrors) Unwrap() error { return e.err }

// Validator checks request DTOs against their validate tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a validator that reports fields by their json names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s and returns *FieldErrors when a rule fails.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("httpx.Validator.Struct", "invalid request")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &FieldErrors{Fields: fields, err: apperr.Validation("httpx.Validator.Struct", "validation failed")}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "e164":
		return "must be an E.164 phone number"
	}
	return fmt.Sprintf("failed on '%s' rule", fe.Tag())
}

// ParseBody decodes the JSON body into dst and validates it.
func ParseBody(c *fiber.Ctx, v *Validator, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("httpx.ParseBody", "invalid request body")
	}
	return v.Struct(dst)
}

// ErrorHandler renders errors as ErrorResponse. Classified errors use their
// public message; anything else is reported as an internal error and logged.
func ErrorHandler(logger *slog.Logger, requestID func(*fiber.Ctx) string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		resp := ErrorResponse{}
		if requestID != nil {
			resp.RequestID = requestID(c)
		}

		var status int
		var fe *fiber.Error
		var fields *FieldErrors
		switch {
		case errors.As(err, &fe):
			status = fe.Code
			resp.Error = fe.Message
		default:
			status = apperr.HTTPStatus(err)
			resp.Error = apperr.PublicMessage(err)
			resp.Code = string(apperr.KindOf(err))
			if errors.As(err, &fields) {
				resp.Details = fields.Fields
			}
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", resp.RequestID),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(resp)
	}
}
