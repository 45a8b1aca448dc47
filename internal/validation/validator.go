// Package validation validates engine inputs and static configuration using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/logan676/booklibrio-engine/internal/domain"
	domainerrors "github.com/logan676/booklibrio-engine/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the engine's enum rules registered:
// ranking_type, period_type, item_type.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("ranking_type", func(fl validator.FieldLevel) bool {
		return domain.RankingType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("period_type", func(fl validator.FieldLevel) bool {
		return domain.PeriodType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("item_type", func(fl validator.FieldLevel) bool {
		return domain.ItemType(fl.Field().String()).Valid()
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// ValidateDefinition checks a ranking definition, including its enum fields.
func (v *Validator) ValidateDefinition(def domain.RankingDefinition) error {
	if err := v.v.Struct(def); err != nil {
		var domainErr *domainerrors.Error
		if errors.As(v.formatError(err), &domainErr) {
			return domainerrors.ValidationWithDetails(
				fmt.Sprintf("invalid ranking definition %q", def.Type), domainErr.Details)
		}
		return err
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must not exceed " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "ranking_type", "period_type", "item_type":
		return "must be a known " + strings.ReplaceAll(e.Tag(), "_", " ")
	default:
		return "is invalid"
	}
}
