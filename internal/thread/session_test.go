package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	comments []models.Comment
	seq      int
	failWith error
	// gate, when set, blocks every mutating call until it is closed
	gate  chan struct{}
	calls map[string]int
}

func newFakeDispatcher(comments ...models.Comment) *fakeDispatcher {
	return &fakeDispatcher{comments: comments, calls: make(map[string]int)}
}

func (f *fakeDispatcher) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate := f.gate
	err := f.failWith
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeDispatcher) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDispatcher) ListComments(ctx context.Context, discussionID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	return cloneComments(f.comments), nil
}

func (f *fakeDispatcher) AddComment(ctx context.Context, discussionID string, in models.NewComment) (*models.Comment, error) {
	if err := f.enter("add"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c := models.Comment{
		ID:              fmt.Sprintf("srv-%d", f.seq),
		DiscussionID:    discussionID,
		AuthorID:        "u1",
		Content:         in.Content,
		ParentCommentID: in.ParentCommentID,
		Reactions:       []models.Reaction{},
	}
	f.comments = append(f.comments, c)
	return &c, nil
}

func (f *fakeDispatcher) UpdateComment(ctx context.Context, commentID string, in models.CommentUpdate) (*models.Comment, error) {
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := indexOf(f.comments, commentID)
	if i < 0 {
		return nil, apperr.ErrNotFound
	}
	f.comments[i].Content = in.Content
	c := f.comments[i].Clone()
	return &c, nil
}

func (f *fakeDispatcher) DeleteComment(ctx context.Context, commentID string) error {
	return f.enter("delete")
}

func (f *fakeDispatcher) SetReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	if err := f.enter("set_reaction"); err != nil {
		return nil, err
	}
	return []models.Reaction{{UserID: "u9", Type: models.ReactionLike}, {UserID: "u1", Type: t}}, nil
}

func (f *fakeDispatcher) ClearReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	if err := f.enter("clear_reaction"); err != nil {
		return nil, err
	}
	return []models.Reaction{}, nil
}

func loadedSession(t *testing.T, api *fakeDispatcher, userID string) *Session {
	t.Helper()
	s := NewSession(api, "d1", userID, WithClock(func() time.Time {
		return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestSession_AddCommentReconcilesWithServer(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil))
	s := loadedSession(t, api, "u1")

	created, err := s.AddComment(context.Background(), "  Hello there  ", ptr("1"))
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, "Hello there", created.Content)

	cs := s.Comments()
	require.Len(t, cs, 2)
	assert.Equal(t, "srv-1", cs[1].ID)

	ms := s.Mutations()
	require.Len(t, ms, 1)
	assert.Equal(t, Committed, ms[0].State)
	assert.Equal(t, MutationAdd, ms[0].Kind)
	assert.False(t, s.Busy())
}

func TestSession_FailedMutationRestoresSnapshot(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil), comment("2", ptr("1")))
	s := loadedSession(t, api, "u1")
	before := s.Comments()

	api.failWith = fmt.Errorf("post comment: %w", apperr.ErrServer)

	_, err := s.AddComment(context.Background(), "will fail", nil)
	require.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, before, s.Comments())

	_, err = s.UpdateComment(context.Background(), "2", "edited")
	require.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, before, s.Comments())

	_, err = s.ToggleReaction(context.Background(), "1", models.ReactionHelpful)
	require.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, before, s.Comments())

	for _, m := range s.Mutations() {
		assert.Equal(t, RolledBack, m.State)
		assert.ErrorIs(t, m.Err, apperr.ErrServer)
	}
}

func TestSession_OptimisticStateVisibleWhilePending(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil))
	api.gate = make(chan struct{})
	s := loadedSession(t, api, "u1")

	done := make(chan error, 1)
	go func() {
		_, err := s.AddComment(context.Background(), "pending", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return api.count("add") == 1 }, time.Second, time.Millisecond)
	cs := s.Comments()
	require.Len(t, cs, 2)
	assert.Contains(t, cs[1].ID, "pending-")
	assert.True(t, s.Busy())

	_, err := s.AddComment(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Load(context.Background()), ErrBusy)

	close(api.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.count("add"))
}

func TestSession_ResponseAfterCloseIsDiscarded(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil))
	api.gate = make(chan struct{})
	s := loadedSession(t, api, "u1")

	done := make(chan error, 1)
	go func() {
		_, err := s.AddComment(context.Background(), "late", nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return api.count("add") == 1 }, time.Second, time.Millisecond)

	s.Close()
	close(api.gate)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Len(t, s.Comments(), 1)
	_, err := s.AddComment(context.Background(), "after close", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_ReplyDepthGuard(t *testing.T) {
	api := newFakeDispatcher(
		comment("1", nil),
		comment("2", ptr("1")),
		comment("3", ptr("2")),
		comment("4", ptr("3")),
	)
	s := loadedSession(t, api, "u1")

	_, err := s.AddComment(context.Background(), "too deep", ptr("4"))
	assert.ErrorIs(t, err, apperr.ErrMaxDepth)

	_, err = s.AddComment(context.Background(), "fine", ptr("3"))
	assert.NoError(t, err)
	assert.Equal(t, 1, api.count("add"))

	_, err = s.AddComment(context.Background(), "stale", ptr("missing"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSession_ValidationAndIdentity(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil))
	s := loadedSession(t, api, "u1")

	_, err := s.AddComment(context.Background(), "   ", nil)
	fe, ok := apperr.AsFieldErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	assert.Equal(t, "content", fe[0].Field)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	anon := loadedSession(t, api, "")
	_, err = anon.AddComment(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	other := loadedSession(t, api, "u2")
	_, err = other.UpdateComment(context.Background(), "1", "not mine")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = other.RequestDelete("1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	assert.Zero(t, api.count("add"))
	assert.Zero(t, api.count("update"))
}

func TestSession_DeleteNeedsConfirmation(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil), comment("2", ptr("1")), comment("3", nil))
	s := loadedSession(t, api, "u1")

	assert.ErrorIs(t, s.ConfirmDelete(context.Background(), "made-up"), ErrInvalidConfirmation)

	token, err := s.RequestDelete("1")
	require.NoError(t, err)
	assert.Len(t, s.Comments(), 3, "nothing changes before confirmation")
	assert.Zero(t, api.count("delete"))

	require.NoError(t, s.ConfirmDelete(context.Background(), token))
	cs := s.Comments()
	require.Len(t, cs, 1)
	assert.Equal(t, "3", cs[0].ID)

	assert.ErrorIs(t, s.ConfirmDelete(context.Background(), token), ErrInvalidConfirmation)

	token, err = s.RequestDelete("3")
	require.NoError(t, err)
	s.CancelDelete(token)
	assert.ErrorIs(t, s.ConfirmDelete(context.Background(), token), ErrInvalidConfirmation)
	assert.Equal(t, 1, api.count("delete"))
}

func TestSession_ToggleReactionUsesServerSet(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil))
	s := loadedSession(t, api, "u1")

	rs, err := s.ToggleReaction(context.Background(), "1", models.ReactionHelpful)
	require.NoError(t, err)
	assert.Len(t, rs, 2)
	assert.Equal(t, rs, s.Comments()[0].Reactions)
	assert.Equal(t, 1, api.count("set_reaction"))

	_, err = s.ToggleReaction(context.Background(), "1", models.ReactionHelpful)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("clear_reaction"))
	assert.Empty(t, s.Comments()[0].Reactions)

	_, err = s.ToggleReaction(context.Background(), "1", "LOVE")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

// reactionServer keeps one user's reaction state so a Set on an already set
// reaction, or a Clear on a cleared one, shows the client decided from stale state
type reactionServer struct {
	*fakeDispatcher
	mu    sync.Mutex
	on    bool
	stale int
}

func (r *reactionServer) SetReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.on {
		r.stale++
	}
	r.on = true
	return []models.Reaction{{UserID: "u1", Type: t}}, nil
}

func (r *reactionServer) ClearReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.on {
		r.stale++
	}
	r.on = false
	return []models.Reaction{}, nil
}

func TestSession_ToggleReactionConcurrentCallsStayConsistent(t *testing.T) {
	api := &reactionServer{fakeDispatcher: newFakeDispatcher(comment("1", nil))}
	s := NewSession(api, "d1", "u1")
	require.NoError(t, s.Load(context.Background()))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, err := s.ToggleReaction(context.Background(), "1", models.ReactionLike)
				if errors.Is(err, ErrBusy) {
					continue
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Positive(t, succeeded)
	assert.Zero(t, api.stale, "every call matched the state it toggled")
	api.mu.Lock()
	on := api.on
	api.mu.Unlock()
	assert.Equal(t, succeeded%2 == 1, on)
	assert.Equal(t, on, len(s.Comments()[0].Reactions) == 1, "local state matches the server")

	_, err := s.ToggleReaction(context.Background(), "missing", models.ReactionLike)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSession_EditLifecycle(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil), comment("2", nil))
	s := loadedSession(t, api, "u1")
	ed := s.Editor()

	require.NoError(t, s.BeginEdit("1"))
	assert.Equal(t, Editing, ed.State("1"))
	draft, _ := ed.Draft("1")
	assert.Equal(t, "comment 1", draft)

	require.NoError(t, s.BeginEdit("2"))
	assert.Equal(t, Viewing, ed.State("1"), "only one comment is edited at a time")

	require.NoError(t, ed.SetDraft("2", ""))
	assert.False(t, ed.CanSave("2"))
	err := s.SaveEdit(context.Background(), "2")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, Editing, ed.State("2"))

	require.NoError(t, ed.SetDraft("2", "better words"))
	assert.True(t, ed.Dirty("2"))
	api.failWith = errors.New("boom")
	require.Error(t, s.SaveEdit(context.Background(), "2"))
	assert.Equal(t, Editing, ed.State("2"), "failed save keeps the draft open")

	api.failWith = nil
	require.NoError(t, s.SaveEdit(context.Background(), "2"))
	assert.Equal(t, Viewing, ed.State("2"))
	assert.Equal(t, "better words", s.Comments()[1].Content)

	assert.ErrorIs(t, ed.SetDraft("2", "x"), ErrNotEditing)

	other := loadedSession(t, api, "u2")
	assert.ErrorIs(t, other.BeginEdit("1"), apperr.ErrForbidden)
}

func TestSession_Actions(t *testing.T) {
	api := newFakeDispatcher(comment("1", nil), comment("2", ptr("1")), comment("3", ptr("2")), comment("4", ptr("3")))
	s := loadedSession(t, api, "u2")

	a, err := s.Actions("4")
	require.NoError(t, err)
	assert.Equal(t, Actions{React: true}, a)

	_, err = s.Actions("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
