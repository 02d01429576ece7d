package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/jotjot/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report json names in validation errors
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("iso_date", validateISODate); err != nil {
		panic(fmt.Sprintf("failed to register iso_date validator: %v", err))
	}
}

// validateISODate accepts YYYY-MM-DD calendar dates
func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DateLayout, fl.Field().String())
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateDate validates a YYYY-MM-DD date string
func ValidateDate(value string) error {
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return fmt.Errorf("invalid date: %s (must be YYYY-MM-DD)", value)
	}
	return nil
}

// ValidatePreference checks that an enabled preference carries an email address
func ValidatePreference(p *models.UserEmailPreference) error {
	if p == nil {
		return fmt.Errorf("preference is nil")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("preference user_id is required")
	}
	if p.EmailSummaryEnabled && strings.TrimSpace(p.Email) == "" {
		return fmt.Errorf("email_summary_enabled requires a non-empty email for user")
	}
	return nil
}

// ValidateEmail performs the loose address check used before enabling reports
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is empty")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email %q has no '@'", email)
	}
	return nil
}

// DescribeErrors turns validator errors into a short message naming each failing field
func DescribeErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			parts = append(parts, fe.Field()+" is required")
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
