package thread

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/validation"
)

// ErrNotEditing is returned when a draft operation targets a comment that is
// not in the Editing state.
var ErrNotEditing = errors.New("thread: comment is not being edited")

// EditState is the per-comment edit state
type EditState int

const (
	Viewing EditState = iota
	Editing
)

func (s EditState) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

type draft struct {
	original string
	content  string
}

// Editor tracks which comments are being edited and their drafts.
// With single set, beginning an edit discards any other open draft.
type Editor struct {
	mu     sync.Mutex
	single bool
	drafts map[string]*draft
}

// NewEditor creates an editor. single limits editing to one comment at a time.
func NewEditor(single bool) *Editor {
	return &Editor{single: single, drafts: make(map[string]*draft)}
}

// State returns the edit state of a comment
func (e *Editor) State(commentID string) EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.drafts[commentID]; ok {
		return Editing
	}
	return Viewing
}

// Active returns the IDs of comments currently being edited
func (e *Editor) Active() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.drafts))
	for id := range e.drafts {
		ids = append(ids, id)
	}
	return ids
}

// Begin moves a comment to Editing with its current content as the draft.
// Only the author may edit.
func (e *Editor) Begin(c *models.Comment, userID string) error {
	if userID == "" {
		return apperr.ErrUnauthorized
	}
	if !CanEdit(c, userID) {
		return apperr.ErrForbidden
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.drafts[c.ID]; ok {
		return nil
	}
	if e.single {
		clear(e.drafts)
	}
	e.drafts[c.ID] = &draft{original: c.Content, content: c.Content}
	return nil
}

// SetDraft replaces the draft text
func (e *Editor) SetDraft(commentID, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[commentID]
	if !ok {
		return ErrNotEditing
	}
	d.content = content
	return nil
}

// Draft returns the current draft text
func (e *Editor) Draft(commentID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[commentID]
	if !ok {
		return "", false
	}
	return d.content, true
}

// Dirty reports whether the draft differs from the content editing started from
func (e *Editor) Dirty(commentID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[commentID]
	return ok && strings.TrimSpace(d.content) != strings.TrimSpace(d.original)
}

// CanSave reports whether the draft passes comment validation
func (e *Editor) CanSave(commentID string) bool {
	content, ok := e.Draft(commentID)
	return ok && validation.ValidateCommentContent(content) == nil
}

// Cancel discards the draft and returns the comment to Viewing
func (e *Editor) Cancel(commentID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.drafts, commentID)
}

// SaveFunc persists an edited comment
type SaveFunc func(ctx context.Context, commentID, content string) error

// Save validates the draft and hands it to save. The comment returns to
// Viewing only when save succeeds; on any failure the draft is kept.
func (e *Editor) Save(ctx context.Context, commentID string, save SaveFunc) error {
	content, ok := e.Draft(commentID)
	if !ok {
		return ErrNotEditing
	}
	if v := validation.ValidateCommentContent(content); v != nil {
		return apperr.FieldErrors{{Field: "content", Code: v.Code, Message: v.Message}}
	}
	if err := save(ctx, commentID, content); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A newer draft typed while saving stays open.
	if d, ok := e.drafts[commentID]; ok && d.content == content {
		delete(e.drafts, commentID)
	}
	return nil
}
