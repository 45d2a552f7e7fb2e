package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lms-discussions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantAPI  string
	}{
		{"field errors", FieldErrors{{Field: "title", Code: "required", Message: "title is required"}}, http.StatusBadRequest, CodeValidation},
		{"wrapped not found", fmt.Errorf("service/comments/Update: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"forbidden", ErrForbidden, http.StatusForbidden, CodeForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{"conflict", ErrConflict, http.StatusConflict, CodeConflict},
		{"max depth", ErrMaxDepth, http.StatusBadRequest, CodeMaxDepth},
		{"timeout", fmt.Errorf("list: %w", ErrTimeout), http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
		{"nil", nil, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := HTTPStatus(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantAPI, body.Error.Code)
		})
	}
}

func TestFromStatus_RoundTripsFieldErrors(t *testing.T) {
	in := FieldErrors{
		{Field: "title", Code: "min_length", Message: "title must be at least 5 characters"},
		{Field: "slug", Code: "reserved", Message: "slug is reserved"},
	}
	code, body := HTTPStatus(in)
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	got := FromStatus(code, raw)
	require.ErrorIs(t, got, ErrValidation)

	fe, ok := AsFieldErrors(got)
	require.True(t, ok)
	assert.Equal(t, []models.FormFieldError(in), []models.FormFieldError(fe))
}

func TestFromStatus_Buckets(t *testing.T) {
	maxDepth, _ := json.Marshal(response(CodeMaxDepth, "x"))

	assert.ErrorIs(t, FromStatus(http.StatusBadRequest, maxDepth), ErrMaxDepth)
	assert.ErrorIs(t, FromStatus(http.StatusBadRequest, []byte("not json")), ErrValidation)
	assert.ErrorIs(t, FromStatus(http.StatusUnauthorized, nil), ErrUnauthorized)
	assert.ErrorIs(t, FromStatus(http.StatusForbidden, nil), ErrForbidden)
	assert.ErrorIs(t, FromStatus(http.StatusNotFound, nil), ErrNotFound)
	assert.ErrorIs(t, FromStatus(http.StatusConflict, nil), ErrConflict)
	assert.ErrorIs(t, FromStatus(http.StatusGatewayTimeout, nil), ErrTimeout)
	assert.ErrorIs(t, FromStatus(http.StatusBadGateway, nil), ErrServer)
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Contains(t, Message(fmt.Errorf("x: %w", ErrServer)), "retry")
	assert.Contains(t, Message(FieldErrors{{Field: "a"}}), "highlighted")
	assert.Contains(t, Message(ErrNetwork), "Network")
}

func TestConflictWithFieldErrors(t *testing.T) {
	err := fmt.Errorf("create forum: %w: %w", ErrConflict, FieldErrors{{Field: "slug", Code: "taken", Message: "slug is already in use"}})

	code, body := HTTPStatus(err)
	assert.Equal(t, http.StatusConflict, code)
	require.Len(t, body.Errors, 1)

	raw, _ := json.Marshal(body)
	got := FromStatus(code, raw)
	assert.ErrorIs(t, got, ErrConflict)
	fe, ok := AsFieldErrors(got)
	require.True(t, ok)
	assert.Equal(t, "slug", fe[0].Field)
}
