package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/schema"
	"github.com/lms-discussions-api/internal/validation"
)

// passwordField is stored as a bcrypt hash under passwordHashField
const (
	passwordField     = "password"
	passwordHashField = "password_hash"
)

type formService struct {
	entities repository.EntityRepository
	reserved []string
	now      func() time.Time
	log      zerolog.Logger
}

func newFormService(entities repository.EntityRepository, reserved []string, now func() time.Time, log zerolog.Logger) *formService {
	return &formService{
		entities: entities,
		reserved: reserved,
		now:      now,
		log:      log.With().Str("service", "form").Logger(),
	}
}

func (s *formService) env() validation.Env {
	return validation.NewEnv(s.now(), s.reserved...)
}

func (s *formService) resolve(name string, fields map[string]string) (schema.Definition, validation.Values, error) {
	def, ok := schema.Resolve(name, validation.Values(fields))
	if !ok {
		return schema.Definition{}, nil, fmt.Errorf("schema %q: %w", name, apperr.ErrNotFound)
	}
	return def, def.Prepare(validation.Values(fields)), nil
}

// Validate runs the schema rules without storing anything. Field errors are
// data here, so the error return is reserved for unknown schemas and lookups.
func (s *formService) Validate(ctx context.Context, schemaName string, fields map[string]string) ([]models.FormFieldError, error) {
	def, values, err := s.resolve(schemaName, fields)
	if err != nil {
		return nil, err
	}

	errs := def.Rules.Validate(values, s.env())
	if len(errs) > 0 {
		return errs, nil
	}

	taken, err := s.identifierTaken(ctx, def, values)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return taken, nil
	}
	return []models.FormFieldError{}, nil
}

// Submit validates fields against the schema and stores the entity
func (s *formService) Submit(ctx context.Context, schemaName, userID string, fields map[string]string) (entity *models.Entity, err error) {
	label := "unknown"
	defer func() { metrics.FormSubmissions.WithLabelValues(label, metrics.Result(err)).Inc() }()

	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	def, values, err := s.resolve(schemaName, fields)
	if err != nil {
		return nil, err
	}
	label = def.Rules.Name()

	if errs := def.Rules.Validate(values, s.env()); len(errs) > 0 {
		return nil, apperr.FieldErrors(errs)
	}
	taken, err := s.identifierTaken(ctx, def, values)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrConflict, taken)
	}

	stored, err := storedFields(def, values)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entity = &models.Entity{
		ID:        uuid.New().String(),
		Kind:      def.Rules.Name(),
		Fields:    stored,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if field := identifierField(def); field != "" {
		entity.Slug = strings.TrimSpace(values[field])
		entity.SlugField = field
	}

	if err := s.entities.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("create %s: %w", entity.Kind, err)
	}

	s.log.Info().
		Str("entity_id", entity.ID).
		Str("kind", entity.Kind).
		Str("slug", entity.Slug).
		Msg("Entity created")

	return entity, nil
}

func (s *formService) identifierTaken(ctx context.Context, def schema.Definition, values validation.Values) (apperr.FieldErrors, error) {
	field := identifierField(def)
	if field == "" {
		return nil, nil
	}
	value := strings.TrimSpace(values[field])
	if value == "" {
		return nil, nil
	}
	exists, err := s.entities.SlugExists(ctx, def.Rules.Name(), value)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", field, err)
	}
	if exists {
		return repository.SlugTaken(def.Rules.Name(), field), nil
	}
	return nil, nil
}

// identifierField names the field that must be unique per kind
func identifierField(def schema.Definition) string {
	switch {
	case def.Rules.Has("slug"):
		return "slug"
	case def.Rules.Has("subdomain"):
		return "subdomain"
	default:
		return ""
	}
}

// storedFields keeps declared, non-empty fields. Confirmation fields are
// dropped and passwords are hashed.
func storedFields(def schema.Definition, values validation.Values) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, spec := range def.Rules.Fields() {
		value, ok := values[spec.Name]
		if !ok || strings.TrimSpace(value) == "" || spec.Rule.EqualTo != "" {
			continue
		}
		if spec.Name == passwordField {
			hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return nil, apperr.FieldErrors{{Field: spec.Name, Code: validation.CodeMaxBytes, Message: spec.Label + " is too long"}}
			}
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			out[passwordHashField] = string(hash)
			continue
		}
		out[spec.Name] = value
	}
	return out, nil
}
