package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lms-discussions-api/internal/models"
)

// ErrUnknownField is returned when a caller names a field the rule set does not declare.
// It signals a programming error, not bad user input.
var ErrUnknownField = errors.New("unknown field")

// Values maps field names to raw input
type Values map[string]string

// Env carries everything a rule may depend on besides the field values.
// It is built once by the caller so rule evaluation stays pure.
type Env struct {
	// Now is the reference time for NotPast checks. Zero disables them.
	Now time.Time
	// ReservedWords are tenant specific words rejected in addition to
	// the built-in slug and subdomain lists.
	ReservedWords []string
}

// NewEnv returns an Env anchored at now
func NewEnv(now time.Time, reserved ...string) Env {
	return Env{Now: now, ReservedWords: reserved}
}

// Rule declares the constraints for one field. Zero values mean "not set".
type Rule struct {
	Required  bool
	MinLength int
	MaxLength int
	// MaxBytes bounds the raw value's UTF-8 size, for values handed to
	// byte-limited consumers such as bcrypt
	MaxBytes int

	Numeric  bool
	Integer  bool
	MinValue *float64
	MaxValue *float64

	Pattern        *regexp.Regexp
	PatternMessage string

	URL       bool
	Email     bool
	Slug      bool
	Subdomain bool

	Date    bool
	NotPast bool
	// After names a field this date must be strictly later than
	After string
	// EqualTo names a field this value must match
	EqualTo string

	OneOf    []string
	Reserved []string
}

// Bound is a helper for MinValue/MaxValue literals
func Bound(v float64) *float64 { return &v }

// FieldSpec binds a rule to a field name and a human label
type FieldSpec struct {
	Name  string
	Label string
	Rule  Rule
}

// Field declares a field; label defaults to the name
func Field(name, label string, rule Rule) FieldSpec {
	if label == "" {
		label = name
	}
	return FieldSpec{Name: name, Label: label, Rule: rule}
}

// RuleSet is an ordered, immutable collection of field rules for one form
type RuleSet struct {
	name   string
	fields []FieldSpec
	index  map[string]int
}

// MustRuleSet builds a rule set and panics on declaration mistakes:
// duplicate fields or cross-field rules naming an undeclared field.
func MustRuleSet(name string, fields ...FieldSpec) *RuleSet {
	rs := &RuleSet{name: name, index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := rs.index[f.Name]; dup {
			panic(fmt.Sprintf("validation: rule set %q declares field %q twice", name, f.Name))
		}
		rs.index[f.Name] = len(rs.fields)
		rs.fields = append(rs.fields, f)
	}
	for _, f := range rs.fields {
		for _, ref := range []string{f.Rule.After, f.Rule.EqualTo} {
			if ref == "" {
				continue
			}
			if _, ok := rs.index[ref]; !ok {
				panic(fmt.Sprintf("validation: rule set %q field %q references undeclared field %q", name, f.Name, ref))
			}
		}
	}
	return rs
}

// Extend returns a new rule set with extra fields appended
func (rs *RuleSet) Extend(name string, fields ...FieldSpec) *RuleSet {
	all := make([]FieldSpec, 0, len(rs.fields)+len(fields))
	all = append(all, rs.fields...)
	all = append(all, fields...)
	return MustRuleSet(name, all...)
}

// Name returns the rule set name
func (rs *RuleSet) Name() string { return rs.name }

// Fields returns the field specs in declaration order
func (rs *RuleSet) Fields() []FieldSpec {
	return append([]FieldSpec(nil), rs.fields...)
}

// Has reports whether the field is declared
func (rs *RuleSet) Has(name string) bool {
	_, ok := rs.index[name]
	return ok
}

// Spec returns the FieldSpec declared under name
func (rs *RuleSet) Spec(name string) (FieldSpec, bool) {
	i, ok := rs.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return rs.fields[i], true
}

// RequiredFields returns the names of required fields in declaration order
func (rs *RuleSet) RequiredFields() []string {
	var out []string
	for _, f := range rs.fields {
		if f.Rule.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// ValidateField runs the rules of a single field. It returns nil when the value is valid.
func (rs *RuleSet) ValidateField(name string, values Values, env Env) (*models.FormFieldError, error) {
	spec, ok := rs.Spec(name)
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", rs.name, name, ErrUnknownField)
	}
	if v := rs.check(spec, values, env); v != nil {
		return &models.FormFieldError{Field: name, Code: v.Code, Message: v.Message}, nil
	}
	return nil, nil
}

// Validate checks every declared field and reports at most one error per field,
// in declaration order. Values for undeclared fields are ignored.
func (rs *RuleSet) Validate(values Values, env Env) []models.FormFieldError {
	var errs []models.FormFieldError
	for _, spec := range rs.fields {
		if v := rs.check(spec, values, env); v != nil {
			errs = append(errs, models.FormFieldError{Field: spec.Name, Code: v.Code, Message: v.Message})
		}
	}
	return errs
}

// ValidateForm validates values against rs
func ValidateForm(values Values, rs *RuleSet, env Env) []models.FormFieldError {
	return rs.Validate(values, env)
}

func (rs *RuleSet) label(name string) string {
	if spec, ok := rs.Spec(name); ok {
		return spec.Label
	}
	return name
}

// check evaluates the rules of one field in a fixed order; the first failure wins
func (rs *RuleSet) check(spec FieldSpec, values Values, env Env) *Violation {
	r := spec.Rule
	label := spec.Label
	value := values[spec.Name]

	if strings.TrimSpace(value) == "" {
		if r.Required {
			return Required(label, value)
		}
		return nil
	}

	if v := Length(label, value, r.MinLength, r.MaxLength); v != nil {
		return v
	}

	if v := MaxBytes(label, value, r.MaxBytes); v != nil {
		return v
	}

	if r.Numeric || r.Integer || r.MinValue != nil || r.MaxValue != nil {
		if v := Number(label, value, r.Integer, r.MinValue, r.MaxValue); v != nil {
			return v
		}
	}

	if r.Pattern != nil {
		if v := Pattern(label, value, r.Pattern, r.PatternMessage); v != nil {
			return v
		}
	}

	if r.URL {
		if v := URL(label, value); v != nil {
			return v
		}
	}

	if r.Email {
		if v := Email(label, value); v != nil {
			return v
		}
	}

	if r.Slug {
		if v := ValidateSlug(strings.TrimSpace(value), env.ReservedWords...); v != nil {
			return v
		}
	}

	if r.Subdomain {
		if v := ValidateSubdomain(strings.TrimSpace(value), env.ReservedWords...); v != nil {
			return v
		}
	}

	if r.Date || r.NotPast || r.After != "" {
		if v := Date(label, value); v != nil {
			return v
		}
	}

	if r.NotPast {
		if v := NotPast(label, value, env.Now); v != nil {
			return v
		}
	}

	if r.After != "" {
		if v := After(label, value, rs.label(r.After), values[r.After]); v != nil {
			return v
		}
	}

	if r.EqualTo != "" {
		if v := Equal(label, value, rs.label(r.EqualTo), values[r.EqualTo]); v != nil {
			return v
		}
	}

	if len(r.OneOf) > 0 {
		if v := OneOf(label, value, r.OneOf); v != nil {
			return v
		}
	}

	if len(r.Reserved) > 0 {
		if v := NotReserved(label, value, r.Reserved); v != nil {
			return v
		}
	}

	return nil
}
