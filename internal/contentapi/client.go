// Package contentapi is the HTTP client for the discussions content API.
//
// Client implements thread.Dispatcher and form.Submitter, so sessions can run
// against a live server. Every failure is mapped onto the apperr taxonomy.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/form"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/thread"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 * 1024

var (
	_ thread.Dispatcher = (*Client)(nil)
	_ form.Submitter    = (*Client)(nil)
)

// Client talks to a running content API as one user
type Client struct {
	baseURL string
	userID  string
	timeout time.Duration
	http    *http.Client
	log     zerolog.Logger

	contentTimeout time.Duration
	videoTimeout   time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("component", "contentapi").Logger() }
}

// WithUploadTimeouts sets the per-kind upload deadlines
func WithUploadTimeouts(content, video time.Duration) Option {
	return func(c *Client) {
		c.contentTimeout = content
		c.videoTimeout = video
	}
}

// New creates a Client. Deadlines are applied per request through the
// context, so the http.Client itself carries no timeout.
func New(cfg config.ClientConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userID:         cfg.UserID,
		timeout:        cfg.Timeout,
		http:           &http.Client{},
		log:            zerolog.Nop(),
		contentTimeout: 3 * time.Minute,
		videoTimeout:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the identity the client acts as
func (c *Client) UserID() string { return c.userID }

// ListComments fetches a discussion's comments as a flat list
func (c *Client) ListComments(ctx context.Context, discussionID string) ([]models.Comment, error) {
	var out models.CommentList
	path := "/v1/discussions/" + url.PathEscape(discussionID) + "/comments"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Comments == nil {
		out.Comments = []models.Comment{}
	}
	return out.Comments, nil
}

// AddComment posts a comment or a reply
func (c *Client) AddComment(ctx context.Context, discussionID string, in models.NewComment) (*models.Comment, error) {
	var out models.Comment
	path := "/v1/discussions/" + url.PathEscape(discussionID) + "/comments"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateComment replaces a comment's content
func (c *Client) UpdateComment(ctx context.Context, commentID string, in models.CommentUpdate) (*models.Comment, error) {
	var out models.Comment
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/comments/"+url.PathEscape(commentID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment deletes a comment and its replies. Callers confirm with the
// user first; the confirmation is forwarded in X-Confirm-Delete.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	header := http.Header{}
	header.Set(models.HeaderConfirmDelete, "true")
	return c.doJSON(ctx, http.MethodDelete, "/v1/comments/"+url.PathEscape(commentID), header, nil, nil)
}

// SetReaction adds the caller's reaction and returns the comment's reactions
func (c *Client) SetReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	var out models.ReactionSet
	path := "/v1/comments/" + url.PathEscape(commentID) + "/reactions"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, models.ReactionRequest{Type: t}, &out); err != nil {
		return nil, err
	}
	return reactionsOf(out), nil
}

// ClearReaction removes the caller's reaction and returns the comment's reactions
func (c *Client) ClearReaction(ctx context.Context, commentID string, t models.ReactionType) ([]models.Reaction, error) {
	var out models.ReactionSet
	path := "/v1/comments/" + url.PathEscape(commentID) + "/reactions/" + url.PathEscape(string(t))
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return reactionsOf(out), nil
}

func reactionsOf(set models.ReactionSet) []models.Reaction {
	if set.Reactions == nil {
		return []models.Reaction{}
	}
	for i := range set.Reactions {
		set.Reactions[i].CommentID = set.CommentID
	}
	return set.Reactions
}

// SubmitForm creates the entity described by a schema's fields
func (c *Client) SubmitForm(ctx context.Context, schema string, fields map[string]string) (*models.Entity, error) {
	var out models.Entity
	body := models.FormSubmission{Fields: fields}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/forms/"+url.PathEscape(schema), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateForm runs the server's rules without storing anything
func (c *Client) ValidateForm(ctx context.Context, schema string, fields map[string]string) (*models.ValidationResult, error) {
	var out models.ValidationResult
	body := models.FormSubmission{Fields: fields}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/forms/"+url.PathEscape(schema)+"/validate", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON sends in as the JSON body (when non-nil) and decodes a 2xx body into out
func (c *Client) doJSON(ctx context.Context, method, path string, header http.Header, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, op, out)
}

// send executes req and maps the outcome onto apperr
func (c *Client) send(req *http.Request, op string, out any) error {
	if c.userID != "" {
		req.Header.Set(models.HeaderUserID, c.userID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = classify(req.Context(), err)
		c.log.Warn().Err(err).Str("op", op).Dur("duration", time.Since(start)).Msg("Request failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: %w", op, apperr.FromStatus(resp.StatusCode, data))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, classify(req.Context(), ctxErr))
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// classify maps transport failures to ErrTimeout or ErrNetwork. A caller
// cancellation is passed through untouched.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrNetwork, err)
}
