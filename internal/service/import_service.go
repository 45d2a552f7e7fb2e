package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/metrics"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
	"github.com/lms-discussions-api/internal/thread"
	"github.com/lms-discussions-api/internal/validation"
)

// maxReportedErrors caps the line errors returned in one ImportResult.
// Failed lines past the cap are still counted.
const maxReportedErrors = 1000

// importService is the concrete implementation of ImportService
type importService struct {
	repos  *repository.Repositories
	policy thread.Policy
	cfg    config.ImportConfig
	log    zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, policy thread.Policy, cfg config.ImportConfig, log zerolog.Logger) *importService {
	return &importService{
		repos:  repos,
		policy: policy,
		cfg:    cfg,
		log:    log.With().Str("service", "import").Logger(),
	}
}

// importRun is the state of one ImportThread call
type importRun struct {
	discussionID string
	result       *models.ImportResult
	// every comment accepted so far, keyed by ID
	known     map[string]importedParent
	comments  []*models.Comment
	lines     []int
	reactions []*models.Reaction
}

// importedParent is what a later reply needs to know about its parent
type importedParent struct {
	depth     int
	createdAt time.Time
}

func (r *importRun) fail(errs ...models.ImportError) {
	r.result.FailedCount++
	r.report(errs...)
}

// report appends errors up to maxReportedErrors without touching the counts
func (r *importRun) report(errs ...models.ImportError) {
	room := maxReportedErrors - len(r.result.Errors)
	if room <= 0 {
		return
	}
	if len(errs) > room {
		errs = errs[:room]
	}
	r.result.Errors = append(r.result.Errors, errs...)
}

// ImportThread reads NDJSON comments into a discussion. Each line is
// validated on its own; a parent must appear on an earlier line or already
// be stored in the same discussion, and a reply may not predate its parent.
// Invalid lines are reported and skipped. A failed batch insert fails every
// line in the batch and is reported once with Field "batch".
func (s *importService) ImportThread(ctx context.Context, discussionID string, r io.Reader) (*models.ImportResult, error) {
	startTime := time.Now()
	run := &importRun{
		discussionID: discussionID,
		result: &models.ImportResult{
			DiscussionID: discussionID,
			Errors:       []models.ImportError{},
			StartedAt:    startTime.UTC(),
		},
		known: make(map[string]importedParent),
	}

	s.log.Info().Str("discussion_id", discussionID).Msg("Starting thread import")

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, s.cfg.MaxLineLength)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		run.result.TotalRecords++

		// Respect context cancellation for long-running imports
		if lineNum%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return run.result, err
			}
		}

		var rec models.CommentNDJSON
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			run.fail(models.ImportError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		comment, reactions, errs, err := s.validateRecord(ctx, run, &rec, lineNum)
		if err != nil {
			return run.result, err
		}
		if len(errs) > 0 {
			run.fail(errs...)
			continue
		}

		run.known[comment.ID] = importedParent{depth: comment.Depth, createdAt: comment.CreatedAt}
		run.comments = append(run.comments, comment)
		run.lines = append(run.lines, lineNum)
		run.reactions = append(run.reactions, reactions...)

		if len(run.comments) >= s.cfg.BatchSize {
			s.flush(ctx, run)
		}
	}

	// Process remaining batch
	s.flush(ctx, run)

	duration := time.Since(startTime)
	run.result.DurationMs = duration.Milliseconds()

	metrics.ImportedRows.WithLabelValues("imported").Add(float64(run.result.SuccessfulCount))
	metrics.ImportedRows.WithLabelValues("failed").Add(float64(run.result.FailedCount))

	if err := scanner.Err(); err != nil {
		s.log.Error().Err(err).Int("line", lineNum+1).Msg("Thread import aborted")
		return run.result, fmt.Errorf("read line %d: %w", lineNum+1, err)
	}

	s.log.Info().
		Str("discussion_id", discussionID).
		Int("total", run.result.TotalRecords).
		Int("successful", run.result.SuccessfulCount).
		Int("failed", run.result.FailedCount).
		Int64("duration_ms", run.result.DurationMs).
		Msg("Thread import completed")

	return run.result, nil
}

// flush inserts the buffered comments, then their reactions
func (s *importService) flush(ctx context.Context, run *importRun) {
	if len(run.comments) == 0 {
		return
	}

	inserted, err := s.repos.Comment.BatchInsert(ctx, run.comments)
	if err != nil {
		s.log.Error().Err(err).Int("batch_size", len(run.comments)).Msg("Batch insert failed")
		run.result.FailedCount += len(run.comments)
		run.report(models.ImportError{
			Line:    run.lines[0],
			Field:   "batch",
			Message: fmt.Sprintf("lines %d-%d were not stored: %v", run.lines[0], run.lines[len(run.lines)-1], err),
		})
		for _, c := range run.comments {
			delete(run.known, c.ID)
		}
	} else {
		run.result.SuccessfulCount += inserted
		if _, err := s.repos.Reaction.BatchInsert(ctx, run.reactions); err != nil {
			s.log.Error().Err(err).Int("batch_size", len(run.reactions)).Msg("Reaction batch insert failed")
		}
	}

	run.comments = run.comments[:0]
	run.lines = run.lines[:0]
	run.reactions = run.reactions[:0]
}

// validateRecord checks one line. Line problems are returned as ImportErrors;
// the error return is reserved for failed lookups.
func (s *importService) validateRecord(ctx context.Context, run *importRun, rec *models.CommentNDJSON, line int) (*models.Comment, []*models.Reaction, []models.ImportError, error) {
	var errs []models.ImportError
	add := func(field, msg, value string) {
		errs = append(errs, models.ImportError{Line: line, Field: field, Message: msg, Value: value})
	}

	if _, err := uuid.Parse(rec.ID); err != nil {
		add("id", "must be a UUID", rec.ID)
	} else if _, dup := run.known[rec.ID]; dup {
		add("id", "duplicate id in file", rec.ID)
	} else {
		exists, err := s.repos.Comment.Exists(ctx, rec.ID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("check comment id: %w", err)
		}
		if exists {
			add("id", "comment already exists", rec.ID)
		}
	}

	if rec.DiscussionID != "" && rec.DiscussionID != run.discussionID {
		add("discussion_id", "belongs to another discussion", rec.DiscussionID)
	}
	if _, err := uuid.Parse(rec.AuthorID); err != nil {
		add("author_id", "must be a UUID", rec.AuthorID)
	}
	if v := validation.ValidateCommentContent(rec.Content); v != nil {
		add("content", v.Message, "")
	}

	depth := 0
	var parentID *string
	var parent importedParent
	if rec.ParentCommentID != nil && *rec.ParentCommentID != "" {
		pid := *rec.ParentCommentID
		p, found, err := s.lookupParent(ctx, run, pid)
		if err != nil {
			return nil, nil, nil, err
		}
		switch {
		case pid == rec.ID:
			add("parent_comment_id", "comment cannot reply to itself", pid)
		case !found:
			add("parent_comment_id", "parent must appear on an earlier line or already exist", pid)
		case !s.policy.CanReply(p.depth):
			add("parent_comment_id", "reply nesting limit reached", pid)
		default:
			depth = p.depth + 1
			parentID = &pid
			parent = p
		}
	}

	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		add("created_at", "must be an RFC 3339 timestamp", rec.CreatedAt)
	} else if parentID != nil && createdAt.Before(parent.createdAt) {
		// keeps created_at exports parent-first
		add("created_at", "must not be before the parent's created_at", rec.CreatedAt)
	}
	updatedAt := createdAt
	if rec.UpdatedAt != "" {
		updatedAt, err = time.Parse(time.RFC3339, rec.UpdatedAt)
		if err != nil {
			add("updated_at", "must be an RFC 3339 timestamp", rec.UpdatedAt)
		} else if updatedAt.Before(createdAt) {
			add("updated_at", "must not be before created_at", rec.UpdatedAt)
		}
	}

	reactions := make([]*models.Reaction, 0, len(rec.Reactions))
	seen := make(map[models.Reaction]bool, len(rec.Reactions))
	for _, rr := range rec.Reactions {
		if !models.ValidReactionTypes[rr.Type] {
			add("reactions.type", "unknown reaction type", string(rr.Type))
			continue
		}
		if _, err := uuid.Parse(rr.UserID); err != nil {
			add("reactions.user_id", "must be a UUID", rr.UserID)
			continue
		}
		k := models.Reaction{UserID: rr.UserID, Type: rr.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		created := rr.CreatedAt
		if created.IsZero() {
			created = createdAt
		}
		reactions = append(reactions, &models.Reaction{CommentID: rec.ID, UserID: rr.UserID, Type: rr.Type, CreatedAt: created})
	}

	if len(errs) > 0 {
		return nil, nil, errs, nil
	}

	return &models.Comment{
		ID:              rec.ID,
		DiscussionID:    run.discussionID,
		AuthorID:        rec.AuthorID,
		Content:         strings.TrimSpace(rec.Content),
		ParentCommentID: parentID,
		Depth:           depth,
		CreatedAt:       createdAt.UTC(),
		UpdatedAt:       updatedAt.UTC(),
	}, reactions, nil, nil
}

func (s *importService) lookupParent(ctx context.Context, run *importRun, parentID string) (importedParent, bool, error) {
	if p, ok := run.known[parentID]; ok {
		return p, true, nil
	}
	if _, err := uuid.Parse(parentID); err != nil {
		return importedParent{}, false, nil
	}
	parent, err := s.repos.Comment.GetByID(ctx, parentID)
	if err != nil {
		return importedParent{}, false, fmt.Errorf("get parent comment: %w", err)
	}
	if parent == nil || parent.DiscussionID != run.discussionID {
		return importedParent{}, false, nil
	}
	return importedParent{depth: parent.Depth, createdAt: parent.CreatedAt}, true, nil
}
