// Package form holds the state and validation lifecycle of editable forms.
package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/schema"
	"github.com/lms-discussions-api/internal/validation"
)

var (
	ErrBusy          = errors.New("form: submit already in progress")
	ErrClosed        = errors.New("form: session closed")
	ErrUnknownSchema = errors.New("form: unknown schema")
)

// Submitter sends validated field values to the content API
type Submitter interface {
	SubmitForm(ctx context.Context, schema string, fields map[string]string) (*models.Entity, error)
}

// Session is the in-memory state of one form
type Session struct {
	name string
	def  schema.Definition
	env  validation.Env
	log  zerolog.Logger

	mu     sync.Mutex
	values validation.Values
	errs   map[string]models.FormFieldError
	busy   bool
	closed bool
}

// New creates a session for a schema definition. env carries the reference
// date and tenant reserved words every validation run uses.
func New(name string, def schema.Definition, env validation.Env, log zerolog.Logger) *Session {
	return &Session{
		name:   name,
		def:    def,
		env:    env,
		log:    log.With().Str("form", name).Logger(),
		values: make(validation.Values),
		errs:   make(map[string]models.FormFieldError),
	}
}

// Open creates a session for a registered schema
func Open(name string, env validation.Env, log zerolog.Logger) (*Session, error) {
	def, ok := schema.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return New(name, def, env, log), nil
}

// Name returns the schema name
func (s *Session) Name() string { return s.name }

// SetField stores a raw value. Existing errors stay until ClearFieldError
// or the next Validate.
func (s *Session) SetField(name, value string) error {
	if !s.def.Rules.Has(name) {
		return fmt.Errorf("%w: %s.%s", validation.ErrUnknownField, s.name, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	return nil
}

// SetFields stores several values at once
func (s *Session) SetFields(values map[string]string) error {
	for k, v := range values {
		if err := s.SetField(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the raw value of a field
func (s *Session) Value(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

// Values returns the values as they would be submitted, derived fields included
func (s *Session) Values() validation.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Prepare(s.values)
}

// ClearFieldError drops the error of one field so the user can retype
func (s *Session) ClearFieldError(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, name)
}

// Validate runs the full rule set and replaces the stored errors
func (s *Session) Validate() []models.FormFieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

func (s *Session) validateLocked() []models.FormFieldError {
	errs := s.def.Rules.Validate(s.def.Prepare(s.values), s.env)
	clear(s.errs)
	for _, e := range errs {
		s.errs[e.Field] = e
	}
	return errs
}

// Errors returns the outstanding errors in field declaration order.
// Errors reported by the server for undeclared fields come last.
func (s *Session) Errors() []models.FormFieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FormFieldError, 0, len(s.errs))
	seen := make(map[string]bool, len(s.errs))
	for _, f := range s.def.Rules.Fields() {
		if e, ok := s.errs[f.Name]; ok {
			out = append(out, e)
			seen[f.Name] = true
		}
	}
	var extra []string
	for name := range s.errs {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, s.errs[name])
	}
	return out
}

// FieldError returns the outstanding error of a field, if any
func (s *Session) FieldError(name string) *models.FormFieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.errs[name]
	if !ok {
		return nil
	}
	return &e
}

// IsValid is the cheap check that enables the submit control: every required
// field has a value and no error is outstanding. It does not rerun the rules.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		return false
	}
	values := s.def.Prepare(s.values)
	for _, name := range s.def.Rules.RequiredFields() {
		if strings.TrimSpace(values[name]) == "" {
			return false
		}
	}
	return true
}

// Busy reports whether a submit is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Close discards the session; a submit finishing afterwards is ignored
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Submit validates locally and, when clean, hands the values to sub.
// Field errors returned by the server are merged into the session. The
// entered values are kept on every failure so nothing has to be retyped.
func (s *Session) Submit(ctx context.Context, sub Submitter) (*models.Entity, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if errs := s.validateLocked(); len(errs) > 0 {
		s.mu.Unlock()
		return nil, apperr.FieldErrors(errs)
	}
	values := s.def.Prepare(s.values)
	s.busy = true
	s.mu.Unlock()

	entity, err := sub.SubmitForm(ctx, s.name, values)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.closed {
		return nil, ErrClosed
	}
	if err != nil {
		if fe, ok := apperr.AsFieldErrors(err); ok {
			for _, e := range fe {
				s.errs[e.Field] = e
			}
			s.log.Debug().Int("errors", len(fe)).Msg("Server rejected form")
			return nil, err
		}
		s.log.Warn().Err(err).Msg("Form submit failed")
		return nil, err
	}
	clear(s.errs)
	return entity, nil
}
