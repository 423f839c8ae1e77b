package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/voxguild/permengine/internal/permission"
)

// XValidator validates request bodies. Field names in errors follow the json tags.
type XValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator knowing the permflag tag, which accepts a flag name.
func NewValidator() *XValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	_ = v.RegisterValidation("permflag", func(fl validator.FieldLevel) bool {
		_, err := permission.Parse(fl.Field().String())

		return err == nil
	})

	return &XValidator{validator: v}
}

// Validate returns an APIError listing every failed field, or nil.
func (v *XValidator) Validate(data any) error {
	err := v.validator.Struct(data)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	}

	apiErr := NewAPIError(fiber.StatusUnprocessableEntity, ErrCodeValidation, "validation failed")
	apiErr.Fields = make(map[string]string, len(validationErrors))

	for _, fe := range validationErrors {
		apiErr.Fields[fe.Namespace()] = "failed on '" + fe.Tag() + "'"
	}

	return apiErr
}

// Bind decodes the JSON body into dst and validates it.
func (v *XValidator) Bind(c fiber.Ctx, dst any) error {
	if err := c.Bind().Body(dst); err != nil {
		return NewAPIError(fiber.StatusBadRequest, ErrCodeInvalidPayload, err.Error())
	}

	return v.Validate(dst)
}
