package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/reaction"
	"github.com/lms-discussions-api/internal/validation"
)

var (
	// ErrBusy is returned when a mutation is requested while another is in flight.
	ErrBusy = errors.New("thread: another change is in progress")
	// ErrClosed is returned once the session has been closed; late responses are discarded.
	ErrClosed = errors.New("thread: session closed")
	// ErrInvalidConfirmation is returned for an unknown or already used delete token.
	ErrInvalidConfirmation = errors.New("thread: invalid delete confirmation")
)

// Dispatcher performs thread operations against the content API
type Dispatcher interface {
	ListComments(ctx context.Context, discussionID string) ([]models.Comment, error)
	AddComment(ctx context.Context, discussionID string, in models.NewComment) (*models.Comment, error)
	UpdateComment(ctx context.Context, commentID string, in models.CommentUpdate) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
	SetReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error)
	ClearReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error)
}

const historyLimit = 50

// Session holds one viewer's copy of a discussion thread. Changes are applied
// locally first and reconciled with the Dispatcher's answer, or rolled back
// when the call fails. Only one change may be in flight at a time.
type Session struct {
	api          Dispatcher
	discussionID string
	userID       string
	policy       Policy
	log          zerolog.Logger
	now          func() time.Time
	editor       *Editor

	mu       sync.Mutex
	comments []models.Comment
	busy     bool
	closed   bool
	history  []*Mutation
	deletes  map[string]string // confirmation token -> comment ID
}

// Option configures a Session
type Option func(*Session)

// WithPolicy overrides the default depth policy
func WithPolicy(p Policy) Option {
	return func(s *Session) { s.policy = p }
}

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithClock sets the time source used for optimistic timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session for userID on a discussion. An empty userID
// gives a read-only session.
func NewSession(api Dispatcher, discussionID, userID string, opts ...Option) *Session {
	s := &Session{
		api:          api,
		discussionID: discussionID,
		userID:       userID,
		policy:       DefaultPolicy(),
		log:          zerolog.Nop(),
		now:          time.Now,
		editor:       NewEditor(true),
		deletes:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("discussion_id", discussionID).Logger()
	return s
}

// Load fetches the thread and replaces the local copy
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	comments, err := s.api.ListComments(ctx, s.discussionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if s.closed {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}
	s.comments = cloneComments(comments)
	s.log.Debug().Int("comments", len(comments)).Msg("Thread loaded")
	return nil
}

// Comments returns a copy of the current local thread
func (s *Session) Comments() []models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneComments(s.comments)
}

// Tree builds the display tree from the current local thread
func (s *Session) Tree() []*Node {
	return BuildTree(s.Comments())
}

// Busy reports whether a change is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Actions returns what the session's user may do on a comment
func (s *Session) Actions(commentID string) (Actions, error) {
	n := Find(s.Tree(), commentID)
	if n == nil {
		return Actions{}, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}
	return s.policy.Actions(n, s.userID), nil
}

// Mutations returns the recorded changes, oldest first
func (s *Session) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mutation, len(s.history))
	for i, m := range s.history {
		out[i] = *m
		out[i].snapshot = nil
	}
	return out
}

// Close tears the session down. Responses arriving afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.deletes)
}

// AddComment posts a top-level comment, or a reply when parentID is set
func (s *Session) AddComment(ctx context.Context, content string, parentID *string) (*models.Comment, error) {
	if s.userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if v := validation.ValidateCommentContent(content); v != nil {
		return nil, contentError(v)
	}
	content = strings.TrimSpace(content)

	if parentID != nil && *parentID != "" {
		parent := Find(s.Tree(), *parentID)
		if parent == nil {
			return nil, fmt.Errorf("parent comment %s: %w", *parentID, apperr.ErrNotFound)
		}
		if !s.policy.CanReply(parent.Depth) {
			return nil, fmt.Errorf("reply to %s at depth %d: %w", *parentID, parent.Depth, apperr.ErrMaxDepth)
		}
		p := *parentID
		parentID = &p
	} else {
		parentID = nil
	}

	now := s.now()
	tempID := "pending-" + uuid.NewString()
	temp := models.Comment{
		ID:              tempID,
		DiscussionID:    s.discussionID,
		AuthorID:        s.userID,
		Content:         content,
		ParentCommentID: parentID,
		Reactions:       []models.Reaction{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var created *models.Comment
	err := s.mutate(ctx, MutationAdd, tempID,
		func(cs []models.Comment) ([]models.Comment, error) {
			return append(cs, temp), nil
		},
		func(ctx context.Context) (func([]models.Comment) []models.Comment, error) {
			c, err := s.api.AddComment(ctx, s.discussionID, models.NewComment{Content: content, ParentCommentID: parentID})
			if err != nil {
				return nil, err
			}
			created = c
			return func(cs []models.Comment) []models.Comment {
				return replaceComment(cs, tempID, *c)
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateComment edits the content of the user's own comment
func (s *Session) UpdateComment(ctx context.Context, commentID, content string) (*models.Comment, error) {
	c, err := s.ownComment(commentID)
	if err != nil {
		return nil, err
	}
	if v := validation.ValidateCommentContent(content); v != nil {
		return nil, contentError(v)
	}
	content = strings.TrimSpace(content)
	now := s.now()

	var updated *models.Comment
	err = s.mutate(ctx, MutationUpdate, c.ID,
		func(cs []models.Comment) ([]models.Comment, error) {
			i := indexOf(cs, c.ID)
			if i < 0 {
				return nil, fmt.Errorf("comment %s: %w", c.ID, apperr.ErrNotFound)
			}
			cs[i].Content = content
			cs[i].Edited = true
			cs[i].UpdatedAt = now
			return cs, nil
		},
		func(ctx context.Context) (func([]models.Comment) []models.Comment, error) {
			u, err := s.api.UpdateComment(ctx, c.ID, models.CommentUpdate{Content: content})
			if err != nil {
				return nil, err
			}
			updated = u
			return func(cs []models.Comment) []models.Comment {
				return replaceComment(cs, c.ID, *u)
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestDelete starts the two-step delete of the user's own comment and
// returns the token ConfirmDelete expects. Nothing changes until it is confirmed.
func (s *Session) RequestDelete(commentID string) (string, error) {
	c, err := s.ownComment(commentID)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.deletes[token] = c.ID
	return token, nil
}

// CancelDelete drops a pending delete confirmation
func (s *Session) CancelDelete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deletes, token)
}

// ConfirmDelete removes the comment and its replies. The token is consumed
// whether or not the call succeeds.
func (s *Session) ConfirmDelete(ctx context.Context, token string) error {
	s.mu.Lock()
	commentID, ok := s.deletes[token]
	delete(s.deletes, token)
	s.mu.Unlock()
	if !ok {
		return ErrInvalidConfirmation
	}

	return s.mutate(ctx, MutationDelete, commentID,
		func(cs []models.Comment) ([]models.Comment, error) {
			n := Find(BuildTree(cs), commentID)
			if n == nil {
				return nil, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
			}
			return removeComments(cs, Subtree(n)), nil
		},
		func(ctx context.Context) (func([]models.Comment) []models.Comment, error) {
			if err := s.api.DeleteComment(ctx, commentID); err != nil {
				return nil, err
			}
			return nil, nil
		})
}

// ToggleReaction flips the user's reaction of type t on a comment and returns
// the reaction set the server settled on.
func (s *Session) ToggleReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	if s.userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	if !models.ValidReactionTypes[t] {
		return nil, apperr.FieldErrors{{Field: "type", Code: validation.CodeNotAllowed, Message: fmt.Sprintf("unknown reaction type %q", t)}}
	}

	// had is decided under the same lock as the optimistic toggle
	var (
		had     bool
		settled []models.Reaction
	)
	err := s.mutate(ctx, MutationReact, commentID,
		func(cs []models.Comment) ([]models.Comment, error) {
			j := indexOf(cs, commentID)
			if j < 0 {
				return nil, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
			}
			had = reaction.Has(cs[j].Reactions, s.userID, t)
			cs[j].Reactions = reaction.Toggle(cs[j].Reactions, s.userID, t)
			return cs, nil
		},
		func(ctx context.Context) (func([]models.Comment) []models.Comment, error) {
			var (
				rs  []models.Reaction
				err error
			)
			if had {
				rs, err = s.api.ClearReaction(ctx, commentID, t)
			} else {
				rs, err = s.api.SetReaction(ctx, commentID, t)
			}
			if err != nil {
				return nil, err
			}
			settled = append([]models.Reaction{}, rs...)
			return func(cs []models.Comment) []models.Comment {
				if j := indexOf(cs, commentID); j >= 0 {
					cs[j].Reactions = append([]models.Reaction{}, rs...)
				}
				return cs
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

// Editor exposes the session's edit state machine
func (s *Session) Editor() *Editor { return s.editor }

// BeginEdit opens an edit draft on the user's own comment
func (s *Session) BeginEdit(commentID string) error {
	s.mu.Lock()
	i := indexOf(s.comments, commentID)
	var c models.Comment
	if i >= 0 {
		c = s.comments[i].Clone()
	}
	s.mu.Unlock()
	if i < 0 {
		return fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}
	return s.editor.Begin(&c, s.userID)
}

// SaveEdit submits the open draft through UpdateComment
func (s *Session) SaveEdit(ctx context.Context, commentID string) error {
	return s.editor.Save(ctx, commentID, func(ctx context.Context, id, content string) error {
		_, err := s.UpdateComment(ctx, id, content)
		return err
	})
}

type applyFunc func([]models.Comment) ([]models.Comment, error)

// callFunc performs the remote call and returns how to fold its answer into
// the local thread. A nil reconcile keeps the optimistic state.
type callFunc func(context.Context) (func([]models.Comment) []models.Comment, error)

func (s *Session) mutate(ctx context.Context, kind MutationKind, commentID string, apply applyFunc, call callFunc) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	snapshot := cloneComments(s.comments)
	next, err := apply(cloneComments(s.comments))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	m := &Mutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		CommentID: commentID,
		State:     Pending,
		StartedAt: s.now(),
		snapshot:  snapshot,
	}
	s.comments = next
	s.busy = true
	s.record(m)
	s.mu.Unlock()

	reconcile, err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	log := s.log.With().Str("mutation_id", m.ID).Str("kind", string(kind)).Str("comment_id", commentID).Logger()

	if s.closed {
		s.comments = m.snapshot
		m.rollback(s.now(), ErrClosed)
		log.Debug().Msg("Response discarded after close")
		return ErrClosed
	}
	if err != nil {
		s.comments = m.snapshot
		m.rollback(s.now(), err)
		log.Warn().Err(err).Msg("Change rolled back")
		return err
	}
	if reconcile != nil {
		s.comments = reconcile(s.comments)
	}
	m.commit(s.now())
	log.Debug().Msg("Change committed")
	return nil
}

func (s *Session) record(m *Mutation) {
	s.history = append(s.history, m)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

func (s *Session) ownComment(commentID string) (models.Comment, error) {
	if s.userID == "" {
		return models.Comment{}, apperr.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.comments, commentID)
	if i < 0 {
		return models.Comment{}, fmt.Errorf("comment %s: %w", commentID, apperr.ErrNotFound)
	}
	if !CanEdit(&s.comments[i], s.userID) {
		return models.Comment{}, fmt.Errorf("comment %s: %w", commentID, apperr.ErrForbidden)
	}
	return s.comments[i].Clone(), nil
}

func contentError(v *validation.Violation) error {
	return apperr.FieldErrors{{Field: "content", Code: v.Code, Message: v.Message}}
}

func cloneComments(cs []models.Comment) []models.Comment {
	out := make([]models.Comment, len(cs))
	for i := range cs {
		out[i] = cs[i].Clone()
	}
	return out
}

func indexOf(cs []models.Comment, id string) int {
	for i := range cs {
		if cs[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceComment(cs []models.Comment, id string, c models.Comment) []models.Comment {
	if i := indexOf(cs, id); i >= 0 {
		cs[i] = c.Clone()
		return cs
	}
	return append(cs, c.Clone())
}

func removeComments(cs []models.Comment, ids []string) []models.Comment {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := cs[:0]
	for _, c := range cs {
		if !drop[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
