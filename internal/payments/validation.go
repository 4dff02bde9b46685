package payments

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	visitorNamePattern  = regexp.MustCompile(`^[A-Za-z\s.]+$`)
	indianMobilePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// newValidator builds a validator with the visitor-specific rules registered
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json field names so messages match the request body
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("visitorname", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return len(name) >= 3 && visitorNamePattern.MatchString(name)
	})
	_ = v.RegisterValidation("inmobile", func(fl validator.FieldLevel) bool {
		return indianMobilePattern.MatchString(fl.Field().String())
	})

	return v
}

var defaultValidator = newValidator()

// ValidateVisitor returns a *ValidationError for the first invalid field
func ValidateVisitor(visitor VisitorDetails) error {
	err := defaultValidator.Struct(visitor)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "visitor", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "visitorname":
		return "must be at least 3 characters of letters, spaces or dots"
	case "inmobile":
		return "must be a 10 digit mobile number starting with 6-9"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
