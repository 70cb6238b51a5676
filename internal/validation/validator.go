// Package validation wraps go-playground/validator with the blog's custom
// rules and turns field failures into apperror validation errors.
//
// The validator is a process-wide singleton: it caches struct metadata on
// first use, so building one per request would throw that work away.
//
// Custom tags:
//
//	slug      ^[a-zA-Z0-9][a-zA-Z0-9._-]{0,35}$
//	category  one of model.Categories
//	status    active | inactive
//	sort      newest | oldest | popular | liked (empty allowed)
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/model"
)

// SlugPattern is the accepted shape of a post slug: up to 36 characters,
// starting with a letter or digit.
var SlugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,35}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator, registering custom tags on first call.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names ("featuredImage") rather than Go names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
			return SlugPattern.MatchString(fl.Field().String())
		})
		mustRegister(v, "category", func(fl validator.FieldLevel) bool {
			return model.Category(fl.Field().String()).Valid()
		})
		mustRegister(v, "status", func(fl validator.FieldLevel) bool {
			return model.Status(fl.Field().String()).Valid()
		})
		mustRegister(v, "sort", func(fl validator.FieldLevel) bool {
			return model.Sort(fl.Field().String()).Valid()
		})

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: registering %q: %v", tag, err))
	}
}

// Struct validates s and returns the first failing field as an
// apperror.ValidationFailed, or nil.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), Message(fe))
}

// Var validates a single value against tag, reporting failures under field.
func Var(field string, value any, tag string) error {
	err := Get().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperror.ValidationFailed(field, messageFor(field, fieldErrs[0]))
	}
	return apperror.ValidationFailed(field, err.Error())
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"slug":     "%s must start with a letter or digit and contain only letters, digits, '.', '_' or '-' (max 36)",
	"category": "%s must be one of: Destination, Culinary, Lifestyle, Tips & Hacks",
	"status":   "%s must be active or inactive",
	"sort":     "%s must be one of: newest, oldest, popular, liked",
}

// Message renders a human-readable message for a field error.
func Message(fe validator.FieldError) string {
	return messageFor(fe.Field(), fe)
}

func messageFor(field string, fe validator.FieldError) string {
	if field == "" {
		field = "value"
	}
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
