package contentapi_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-discussions-api/internal/api"
	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/contentapi"
	"github.com/lms-discussions-api/internal/form"
	"github.com/lms-discussions-api/internal/mocks"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/service"
	"github.com/lms-discussions-api/internal/thread"
	"github.com/lms-discussions-api/internal/validation"
)

const discussion = "d0a1b2c3-0000-4000-8000-000000000001"

// liveServer runs the real router and services over in-memory repositories
func liveServer(t *testing.T) *httptest.Server {
	t.Helper()
	repos, _, _, _, _ := mocks.NewRepositories()
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Thread: config.ThreadConfig{MaxDepth: 3},
		Upload: config.UploadConfig{
			Dir:           t.TempDir(),
			PublicBaseURL: "/files",
			MaxUploadSize: 1024 * 1024,
			ContentExts:   []string{".pdf"},
			VideoExts:     []string{".mp4"},
		},
		Import: config.ImportConfig{BatchSize: 100, MaxFileSize: 1024 * 1024, MaxLineLength: 64 * 1024},
	}
	services := service.NewServices(repos, cfg, zerolog.Nop())
	srv := httptest.NewServer(api.NewRouter(services, cfg, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL, userID string, opts ...contentapi.Option) *contentapi.Client {
	return contentapi.New(config.ClientConfig{BaseURL: baseURL, Timeout: 5 * time.Second, UserID: userID}, opts...)
}

func TestClient_ThreadSession(t *testing.T) {
	srv := liveServer(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()

	aliceSession := thread.NewSession(newClient(srv.URL, alice), discussion, alice)
	require.NoError(t, aliceSession.Load(ctx))
	assert.Empty(t, aliceSession.Comments())

	root, err := aliceSession.AddComment(ctx, "  Welcome to week one  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to week one", root.Content)

	bobClient := newClient(srv.URL, bob)
	reply, err := bobClient.AddComment(ctx, discussion, models.NewComment{Content: "Thanks!", ParentCommentID: &root.ID})
	require.NoError(t, err)

	reactions, err := bobClient.SetReaction(ctx, root.ID, models.ReactionLike)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, root.ID, reactions[0].CommentID)

	require.NoError(t, aliceSession.Load(ctx))
	tree := aliceSession.Tree()
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, reply.ID, tree[0].Replies[0].Comment.ID)
	assert.Equal(t, 1, tree[0].Replies[0].Depth)

	updated, err := aliceSession.UpdateComment(ctx, root.ID, "Welcome to week 1")
	require.NoError(t, err)
	assert.True(t, updated.Edited)

	_, err = bobClient.UpdateComment(ctx, root.ID, models.CommentUpdate{Content: "hijacked"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	token, err := aliceSession.RequestDelete(root.ID)
	require.NoError(t, err)
	require.NoError(t, aliceSession.ConfirmDelete(ctx, token))

	remaining, err := bobClient.ListComments(ctx, discussion)
	require.NoError(t, err)
	assert.Empty(t, remaining, "replies go with their parent")
}

func TestClient_MaxDepth(t *testing.T) {
	srv := liveServer(t)
	ctx := context.Background()
	c := newClient(srv.URL, uuid.NewString())

	var parent *string
	for depth := 0; depth <= 3; depth++ {
		created, err := c.AddComment(ctx, discussion, models.NewComment{Content: "level", ParentCommentID: parent})
		require.NoError(t, err, "depth %d", depth)
		parent = &created.ID
	}

	_, err := c.AddComment(ctx, discussion, models.NewComment{Content: "too deep", ParentCommentID: parent})
	assert.ErrorIs(t, err, apperr.ErrMaxDepth)
}

func TestClient_FieldErrors(t *testing.T) {
	srv := liveServer(t)
	c := newClient(srv.URL, uuid.NewString())

	_, err := c.AddComment(context.Background(), discussion, models.NewComment{Content: "   "})
	require.ErrorIs(t, err, apperr.ErrValidation)

	fe, ok := apperr.AsFieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "content", fe[0].Field)
}

func TestClient_FormSession(t *testing.T) {
	srv := liveServer(t)
	ctx := context.Background()
	c := newClient(srv.URL, uuid.NewString())
	env := validation.NewEnv(time.Now())

	fields := map[string]string{
		"title":       "Intro to Go",
		"description": "A gentle introduction to the Go language.",
		"level":       "BEGINNER",
	}

	result, err := c.ValidateForm(ctx, "course", fields)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	first, err := form.Open("course", env, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.SetFields(fields))
	entity, err := first.Submit(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "intro-to-go", entity.Slug)

	second, err := form.Open("course", env, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, second.SetFields(fields))
	_, err = second.Submit(ctx, c)
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.NotNil(t, second.FieldError("slug"))
	assert.Equal(t, "Intro to Go", second.Value("title"), "entered values are kept")
}

func TestClient_Upload(t *testing.T) {
	srv := liveServer(t)
	c := newClient(srv.URL, uuid.NewString())

	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 10000)...)
	var last int64
	result, err := c.Upload(context.Background(), contentapi.UploadFile{
		Kind:     models.UploadKindContent,
		Filename: "syllabus.pdf",
		Body:     bytes.NewReader(data),
		Size:     int64(len(data)),
	}, func(sent, total int64) {
		atomic.StoreInt64(&last, sent)
		assert.Equal(t, int64(len(data)), total)
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), result.Size)
	assert.True(t, strings.HasPrefix(result.Key, "content/"))
	assert.True(t, strings.HasPrefix(result.URL, "/files/content/"))
	assert.Equal(t, int64(len(data)), atomic.LoadInt64(&last))

	resp, err := http.Get(srv.URL + result.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	served, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, data, served, "the returned URL serves the stored file")

	_, err = c.Upload(context.Background(), contentapi.UploadFile{
		Kind:     models.UploadKindVideo,
		Filename: "lecture.pdf",
		Body:     bytes.NewReader(data),
	}, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestClient_UploadTimeoutPerKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(srv.URL, uuid.NewString(), contentapi.WithUploadTimeouts(time.Minute, 50*time.Millisecond))
	_, err := c.Upload(context.Background(), contentapi.UploadFile{
		Kind:     models.UploadKindVideo,
		Filename: "lecture.mp4",
		Body:     strings.NewReader("frames"),
	}, nil)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"unauthorized"}}`, apperr.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"error":{"code":"forbidden"}}`, apperr.ErrForbidden},
		{"gone", http.StatusNotFound, `{"error":{"code":"not_found"}}`, apperr.ErrNotFound},
		{"server", http.StatusBadGateway, `upstream down`, apperr.ErrServer},
		{"gateway timeout", http.StatusGatewayTimeout, ``, apperr.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL, uuid.NewString()).ListComments(context.Background(), discussion)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	c := contentapi.New(config.ClientConfig{BaseURL: slow.URL, Timeout: 50 * time.Millisecond})
	_, err := c.ListComments(context.Background(), discussion)
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()

	_, err = newClient(url, uuid.NewString()).ListComments(context.Background(), discussion)
	assert.ErrorIs(t, err, apperr.ErrNetwork)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newClient(slow.URL, "").ListComments(ctx, discussion)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperr.ErrNetwork)
}

func TestClient_DeleteSendsConfirmation(t *testing.T) {
	var gotConfirm, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotConfirm = r.Header.Get(models.HeaderConfirmDelete)
		gotUser = r.Header.Get(models.HeaderUserID)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	user := uuid.NewString()
	require.NoError(t, newClient(srv.URL, user).DeleteComment(context.Background(), "c1"))
	assert.Equal(t, "true", gotConfirm)
	assert.Equal(t, user, gotUser)
}
