package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/reaction"
	"github.com/lms-discussions-api/internal/repository"
)

// Export formats accepted by StreamDiscussion
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// exportBatchSize is how many comments are buffered per reaction lookup and flush
const exportBatchSize = 100

var csvHeader = []string{
	"id", "discussion_id", "author_id", "parent_comment_id", "depth", "content",
	"is_edited", "like_count", "helpful_count", "created_at", "updated_at",
}

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// Count returns the number of comments in a discussion
func (s *exportService) Count(ctx context.Context, discussionID string) (int, error) {
	return s.repos.Comment.Count(ctx, discussionID)
}

// StreamDiscussion streams one discussion's comments in the specified format
func (s *exportService) StreamDiscussion(ctx context.Context, w http.ResponseWriter, discussionID, format string) error {
	s.log.Info().Str("discussion_id", discussionID).Str("format", format).Msg("Starting discussion export")

	var (
		count int
		err   error
	)
	switch format {
	case FormatNDJSON:
		count, err = s.streamNDJSON(ctx, w, discussionID)
	case FormatJSON:
		count, err = s.streamJSON(ctx, w, discussionID)
	case FormatCSV:
		count, err = s.streamCSV(ctx, w, discussionID)
	default:
		return fmt.Errorf("%w: unsupported format %q", apperr.ErrValidation, format)
	}

	s.log.Info().Str("discussion_id", discussionID).Int("count", count).Msg("Discussion export completed")
	return err
}

// streamBatches hands comments to emit in batches with their reactions attached
func (s *exportService) streamBatches(ctx context.Context, discussionID string, emit func([]*models.Comment) error) error {
	batch := make([]*models.Comment, 0, exportBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
		}
		byComment, err := s.repos.Reaction.ListByComments(ctx, ids)
		if err != nil {
			return err
		}
		for _, c := range batch {
			if rs, ok := byComment[c.ID]; ok {
				c.Reactions = rs
			}
		}
		err = emit(batch)
		batch = batch[:0]
		return err
	}

	err := s.repos.Comment.StreamByDiscussion(ctx, discussionID, func(c *models.Comment) error {
		batch = append(batch, c)
		if len(batch) >= exportBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// contentType sets the media type; the handler owns Content-Disposition
func contentType(w http.ResponseWriter, mediaType string) {
	w.Header().Set("Content-Type", mediaType)
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter, discussionID string) (int, error) {
	contentType(w, "application/x-ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.streamBatches(ctx, discussionID, func(batch []*models.Comment) error {
		for _, c := range batch {
			data, err := json.Marshal(toNDJSON(c))
			if err != nil {
				return err
			}
			w.Write(data)
			w.Write([]byte("\n"))
			count++
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	return count, err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter, discussionID string) (int, error) {
	contentType(w, "application/json")

	w.Write([]byte("["))
	count := 0

	err := s.streamBatches(ctx, discussionID, func(batch []*models.Comment) error {
		for _, c := range batch {
			if count > 0 {
				w.Write([]byte(","))
			}
			data, err := json.Marshal(toNDJSON(c))
			if err != nil {
				return err
			}
			w.Write(data)
			count++
		}
		return nil
	})

	w.Write([]byte("]"))
	return count, err
}

func (s *exportService) streamCSV(ctx context.Context, w http.ResponseWriter, discussionID string) (int, error) {
	contentType(w, "text/csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return 0, err
	}

	count := 0
	err := s.streamBatches(ctx, discussionID, func(batch []*models.Comment) error {
		for _, c := range batch {
			parent := ""
			if !c.IsRoot() {
				parent = *c.ParentCommentID
			}
			err := writer.Write([]string{
				c.ID,
				c.DiscussionID,
				c.AuthorID,
				parent,
				strconv.Itoa(c.Depth),
				c.Content,
				strconv.FormatBool(c.IsEdited()),
				strconv.Itoa(reaction.CountByType(c.Reactions, models.ReactionLike)),
				strconv.Itoa(reaction.CountByType(c.Reactions, models.ReactionHelpful)),
				c.CreatedAt.UTC().Format(time.RFC3339),
				c.UpdatedAt.UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			count++
		}
		writer.Flush()
		return writer.Error()
	})
	return count, err
}

func toNDJSON(c *models.Comment) models.CommentNDJSON {
	reactions := c.Reactions
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	return models.CommentNDJSON{
		ID:              c.ID,
		DiscussionID:    c.DiscussionID,
		AuthorID:        c.AuthorID,
		Content:         c.Content,
		ParentCommentID: c.ParentCommentID,
		Reactions:       reactions,
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
