package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/schema"
	"github.com/lms-discussions-api/internal/validation"
)

var testEnv = validation.NewEnv(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

type submitFunc func(ctx context.Context, schema string, fields map[string]string) (*models.Entity, error)

func (f submitFunc) SubmitForm(ctx context.Context, schema string, fields map[string]string) (*models.Entity, error) {
	return f(ctx, schema, fields)
}

func courseDraft() schema.Definition {
	return schema.Definition{Rules: validation.MustRuleSet("course",
		validation.Field("title", "title", validation.Rule{MinLength: 5}),
		validation.Field("description", "description", validation.Rule{MinLength: 20}),
	)}
}

func TestSession_ValidateOneErrorPerField(t *testing.T) {
	s := New("course", courseDraft(), testEnv, zerolog.Nop())
	require.NoError(t, s.SetField("title", "Hi"))
	require.NoError(t, s.SetField("description", "short"))

	errs := s.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "title", errs[0].Field)
	assert.Equal(t, validation.CodeMinLength, errs[0].Code)
	assert.Equal(t, "description", errs[1].Field)
	assert.Equal(t, validation.CodeMinLength, errs[1].Code)
	assert.False(t, s.IsValid())

	s.ClearFieldError("title")
	require.NotNil(t, s.FieldError("description"))
	assert.Nil(t, s.FieldError("title"))
	assert.Equal(t, "Hi", s.Value("title"), "clearing an error keeps the value")
}

func TestSession_SetFieldRejectsUndeclaredField(t *testing.T) {
	s := New("course", courseDraft(), testEnv, zerolog.Nop())
	err := s.SetField("titel", "x")
	assert.ErrorIs(t, err, validation.ErrUnknownField)
}

func TestSession_IsValidTracksRequiredPresence(t *testing.T) {
	s, err := Open(schema.Forum, testEnv, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, s.IsValid())

	require.NoError(t, s.SetField("name", "General Discussion"))
	assert.True(t, s.IsValid(), "slug is derived from the name")
	assert.Equal(t, "general-discussion", s.Values()["slug"])

	_, err = Open("nope", testEnv, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestSession_SubmitBlockedByLocalErrors(t *testing.T) {
	s := New("course", courseDraft(), testEnv, zerolog.Nop())
	require.NoError(t, s.SetField("title", "Hi"))

	called := false
	_, err := s.Submit(context.Background(), submitFunc(func(context.Context, string, map[string]string) (*models.Entity, error) {
		called = true
		return nil, nil
	}))

	fe, ok := apperr.AsFieldErrors(err)
	require.True(t, ok)
	assert.Len(t, fe, 1)
	assert.False(t, called)
}

func TestSession_SubmitMergesServerErrorsAndKeepsValues(t *testing.T) {
	s, err := Open(schema.Forum, testEnv, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.SetField("name", "General Discussion"))

	server := submitFunc(func(_ context.Context, name string, fields map[string]string) (*models.Entity, error) {
		assert.Equal(t, schema.Forum, name)
		assert.Equal(t, "general-discussion", fields["slug"])
		return nil, apperr.FieldErrors{{Field: "slug", Code: "taken", Message: "slug is already in use"}}
	})

	_, err = s.Submit(context.Background(), server)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	fe := s.FieldError("slug")
	require.NotNil(t, fe)
	assert.Equal(t, "taken", fe.Code)
	assert.Equal(t, "General Discussion", s.Value("name"))
	assert.False(t, s.IsValid())

	_, err = s.Submit(context.Background(), submitFunc(func(context.Context, string, map[string]string) (*models.Entity, error) {
		return nil, apperr.ErrServer
	}))
	assert.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, "General Discussion", s.Value("name"))

	entity, err := s.Submit(context.Background(), submitFunc(func(_ context.Context, name string, fields map[string]string) (*models.Entity, error) {
		return &models.Entity{ID: "e1", Kind: name, Slug: fields["slug"], Fields: fields}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "e1", entity.ID)
	assert.Empty(t, s.Errors())
}

func TestSession_SubmitBusyAndClosed(t *testing.T) {
	s := New("course", courseDraft(), testEnv, zerolog.Nop())
	require.NoError(t, s.SetField("title", "Hello world"))

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := submitFunc(func(context.Context, string, map[string]string) (*models.Entity, error) {
		close(entered)
		<-release
		return &models.Entity{ID: "e1"}, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), slow)
		done <- err
	}()
	<-entered

	assert.True(t, s.Busy())
	_, err := s.Submit(context.Background(), slow)
	assert.ErrorIs(t, err, ErrBusy)

	s.Close()
	close(release)
	assert.ErrorIs(t, <-done, ErrClosed)

	_, err = s.Submit(context.Background(), slow)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestWizard_StepStatus(t *testing.T) {
	w := NewWizard(testEnv, schema.CourseWizardSteps...)
	require.Equal(t, 3, w.Len())

	values := validation.Values{}
	st, err := w.StepStatus(0, values)
	require.NoError(t, err)
	assert.Equal(t, StepIncomplete, st)

	for i := 1; i < w.Len(); i++ {
		st, err := w.StepStatus(i, values)
		require.NoError(t, err)
		assert.Equal(t, StepValid, st, "step %d", i)
	}

	values["title"] = "Hi"
	st, _ = w.StepStatus(0, values)
	assert.Equal(t, StepInvalid, st)

	values["title"] = "Intro to Go"
	values["description"] = "Learn the language from first principles."
	values["level"] = "BEGINNER"
	res, err := w.ValidateStep(0, values)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	values["start_date"] = "2024-06-01"
	values["end_date"] = "2024-05-01"
	st, _ = w.StepStatus(1, values)
	assert.Equal(t, StepInvalid, st)
	assert.Equal(t, 1, w.FirstUnfinished(values))

	delete(values, "end_date")
	assert.Equal(t, w.Len(), w.FirstUnfinished(values))

	_, err = w.ValidateStep(3, values)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
}
