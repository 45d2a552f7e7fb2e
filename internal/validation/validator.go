package validation

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Violation codes. They are stable and used by clients as message keys.
const (
	CodeRequired   = "required"
	CodeMinLength  = "min_length"
	CodeMaxLength  = "max_length"
	CodeMaxBytes   = "max_bytes"
	CodeNotNumber  = "not_a_number"
	CodeNotInteger = "not_an_integer"
	CodeMinValue   = "min_value"
	CodeMaxValue   = "max_value"
	CodePattern    = "pattern"
	CodeURL        = "invalid_url"
	CodeEmail      = "invalid_email"
	CodeDate       = "invalid_date"
	CodePastDate   = "past_date"
	CodeDateOrder  = "date_order"
	CodeMismatch   = "mismatch"
	CodeNotAllowed = "not_allowed"
	CodeReserved   = "reserved"
	CodeSlug       = "invalid_slug"
	CodeSubdomain  = "invalid_subdomain"
)

var validate = validator.New()

// dateLayouts are tried in order when parsing date fields
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	time.RFC3339,
}

// Violation is the result of a failed check. A nil *Violation means valid.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v *Violation) Error() string { return v.Message }

func violation(code, format string, args ...interface{}) *Violation {
	return &Violation{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Required rejects values that are empty after trimming
func Required(label, value string) *Violation {
	if strings.TrimSpace(value) == "" {
		return violation(CodeRequired, "%s is required", label)
	}
	return nil
}

// Length checks the character count of the trimmed value. Zero bounds are ignored.
func Length(label, value string, min, max int) *Violation {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if min > 0 && n < min {
		return violation(CodeMinLength, "%s must be at least %d characters", label, min)
	}
	if max > 0 && n > max {
		return violation(CodeMaxLength, "%s must be at most %d characters", label, max)
	}
	return nil
}

// MaxBytes checks the encoded size of the raw, untrimmed value. Zero is ignored.
func MaxBytes(label, value string, max int) *Violation {
	if max > 0 && len(value) > max {
		return violation(CodeMaxBytes, "%s is too long (at most %d bytes, accented characters count double)", label, max)
	}
	return nil
}

// Number parses value as a finite number and checks optional bounds.
// Non-numeric input is rejected before any range check.
func Number(label, value string, integer bool, min, max *float64) *Violation {
	s := strings.TrimSpace(value)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return violation(CodeNotNumber, "%s must be a number", label)
	}
	if integer && n != math.Trunc(n) {
		return violation(CodeNotInteger, "%s must be a whole number", label)
	}
	if min != nil && n < *min {
		return violation(CodeMinValue, "%s must be at least %s", label, formatNumber(*min))
	}
	if max != nil && n > *max {
		return violation(CodeMaxValue, "%s must be at most %s", label, formatNumber(*max))
	}
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Pattern checks value against re. message overrides the default text.
func Pattern(label, value string, re *regexp.Regexp, message string) *Violation {
	if re.MatchString(value) {
		return nil
	}
	if message != "" {
		return &Violation{Code: CodePattern, Message: message}
	}
	return violation(CodePattern, "%s has an invalid format", label)
}

// URL accepts absolute http(s) URLs with a host
func URL(label, value string) *Violation {
	s := strings.TrimSpace(value)
	if err := validate.Var(s, "required,url"); err != nil {
		return violation(CodeURL, "%s must be a valid URL", label)
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return violation(CodeURL, "%s must be a valid URL", label)
	}
	return nil
}

// Email checks basic email address format
func Email(label, value string) *Violation {
	if err := validate.Var(strings.TrimSpace(value), "required,email"); err != nil {
		return violation(CodeEmail, "%s must be a valid email address", label)
	}
	return nil
}

// ParseDate parses a date field in any of the accepted layouts
func ParseDate(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date rejects values that are not parseable dates
func Date(label, value string) *Violation {
	if _, ok := ParseDate(value); !ok {
		return violation(CodeDate, "%s must be a valid date", label)
	}
	return nil
}

// NotPast rejects dates before the calendar day of now.
// A zero now disables the check.
func NotPast(label, value string, now time.Time) *Violation {
	t, ok := ParseDate(value)
	if !ok {
		return violation(CodeDate, "%s must be a valid date", label)
	}
	if now.IsZero() {
		return nil
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ty, tm, td := t.Date()
	if time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Before(today) {
		return violation(CodePastDate, "%s cannot be in the past", label)
	}
	return nil
}

// After requires value to be strictly later than other.
// The check is skipped when other is missing or unparseable.
func After(label, value, otherLabel, other string) *Violation {
	start, ok := ParseDate(other)
	if !ok {
		return nil
	}
	end, ok := ParseDate(value)
	if !ok {
		return violation(CodeDate, "%s must be a valid date", label)
	}
	if !end.After(start) {
		return violation(CodeDateOrder, "%s must be after %s", label, otherLabel)
	}
	return nil
}

// Equal requires value to match other exactly, e.g. password confirmation
func Equal(label, value, otherLabel, other string) *Violation {
	if value != other {
		return violation(CodeMismatch, "%s must match %s", label, otherLabel)
	}
	return nil
}

// OneOf requires value to be a member of allowed
func OneOf(label, value string, allowed []string) *Violation {
	s := strings.TrimSpace(value)
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return violation(CodeNotAllowed, "%s must be one of: %s", label, strings.Join(allowed, ", "))
}

// NotReserved rejects case-insensitive exact matches against reserved
func NotReserved(label, value string, reserved ...[]string) *Violation {
	s := strings.ToLower(strings.TrimSpace(value))
	for _, list := range reserved {
		for _, r := range list {
			if s == strings.ToLower(r) {
				return violation(CodeReserved, "%s %q is reserved", label, s)
			}
		}
	}
	return nil
}
