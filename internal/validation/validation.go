// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxPasswordLength bounds password input; bcrypt ignores bytes past 72.
const MaxPasswordLength = 72

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var strictPolicy = bluemonday.StrictPolicy()

// ValidateEmail checks basic email format and the storage limit.
func ValidateEmail(email string, maxLength int) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if utf8.RuneCountInString(email) > maxLength {
		return fmt.Errorf("email must not exceed %d characters", maxLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePassword checks length bounds. An empty password is accepted by the
// caller as "no usable password" and never reaches this check.
func ValidatePassword(password string, minLength int) error {
	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters long", minLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLength)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password must not be blank")
	}
	return nil
}

// StripHTML removes all markup from user-supplied text. The sanitizer escapes
// entities in what remains; they are decoded again since values are stored as
// plain text, not HTML.
func StripHTML(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// CleanText strips markup and surrounding whitespace, then enforces required-ness
// and a maximum length counted in characters.
func CleanText(field, value string, maxLength int) (string, error) {
	cleaned := strings.TrimSpace(StripHTML(value))
	if cleaned == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(cleaned) > maxLength {
		return "", fmt.Errorf("%s must not exceed %d characters", field, maxLength)
	}
	return cleaned, nil
}
