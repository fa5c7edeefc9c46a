package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/simaogato/folio-backend/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator; field errors are reported under their JSON names
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// parseBodyAndValidate decodes a JSON body and checks its validate tags.
// Failures come back as *domain.ValidationError so they map to 400.
func parseBodyAndValidate(c *fiber.Ctx, payload any) error {
	ct := c.Get(fiber.HeaderContentType)
	if ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
		return domain.NewValidationError("body", "Content-Type must be application/json.")
	}

	if err := c.BodyParser(payload); err != nil {
		return domain.NewValidationError("body", "Malformed request body.")
	}

	return validateStruct(payload)
}

func validateStruct(payload any) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return formatFieldError(fieldErrs[0])
	}

	return domain.NewValidationError("body", err.Error())
}

func formatFieldError(fe validator.FieldError) error {
	field := fe.Field()
	label := cases.Title(language.Und).String(field)

	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, label+" cannot be null.")
	case "datetime":
		return domain.NewValidationError(field, fmt.Sprintf("%s must be a date formatted as %s.", label, fe.Param()))
	default:
		return domain.NewValidationError(field, fmt.Sprintf("%s failed the %s check.", label, fe.Tag()))
	}
}
