package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/reaction"
	"github.com/lms-discussions-api/internal/service"
	"github.com/lms-discussions-api/internal/thread"
)

// CommentHandler handles thread and reaction endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// treeResponse is the body of GET /v1/discussions/:id/comments?view=tree
type treeResponse struct {
	DiscussionID string         `json:"discussion_id"`
	Tree         []*thread.Node `json:"tree"`
	Count        int            `json:"count"`
}

// reactionResponse adds the viewer's summary to a reaction set
type reactionResponse struct {
	models.ReactionSet
	Summary []reaction.Summary `json:"summary"`
}

// ListComments handles GET /v1/discussions/:id/comments
// Returns the flat list by default, or the nested tree with ?view=tree
func (h *CommentHandler) ListComments(c *gin.Context) {
	discussionID := c.Param("id")

	comments, err := h.services.Comment.List(c.Request.Context(), discussionID)
	if err != nil {
		respondError(c, h.log, err, "Failed to list comments")
		return
	}

	switch c.DefaultQuery("view", "flat") {
	case "tree":
		tree := thread.BuildTree(comments)
		c.JSON(http.StatusOK, treeResponse{
			DiscussionID: discussionID,
			Tree:         tree,
			Count:        thread.Count(tree),
		})
	case "flat":
		c.JSON(http.StatusOK, models.CommentList{
			DiscussionID: discussionID,
			Comments:     comments,
			Count:        len(comments),
		})
	default:
		badRequest(c, "view must be one of: flat, tree")
	}
}

// CreateComment handles POST /v1/discussions/:id/comments
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req models.NewComment
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	comment, err := h.services.Comment.Create(c.Request.Context(), c.Param("id"), currentUser(c), req)
	if err != nil {
		respondError(c, h.log, err, "Failed to create comment")
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// UpdateComment handles PATCH /v1/comments/:id
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	var req models.CommentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	comment, err := h.services.Comment.Update(c.Request.Context(), c.Param("id"), currentUser(c), req)
	if err != nil {
		respondError(c, h.log, err, "Failed to update comment")
		return
	}

	c.JSON(http.StatusOK, comment)
}

// DeleteComment handles DELETE /v1/comments/:id
// The caller must confirm with X-Confirm-Delete: true
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	if !strings.EqualFold(c.GetHeader(models.HeaderConfirmDelete), "true") {
		badRequest(c, models.HeaderConfirmDelete+": true is required to delete a comment")
		return
	}

	commentID := c.Param("id")
	if err := h.services.Comment.Delete(c.Request.Context(), commentID, currentUser(c)); err != nil {
		respondError(c, h.log, err, "Failed to delete comment")
		return
	}

	h.log.Info().Str("comment_id", commentID).Str("user_id", currentUser(c)).Msg("Comment deleted")
	c.Status(http.StatusNoContent)
}

// AddReaction handles POST /v1/comments/:id/reactions
func (h *CommentHandler) AddReaction(c *gin.Context) {
	var req models.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "type is required")
		return
	}

	commentID := c.Param("id")
	reactions, err := h.services.Reaction.Add(c.Request.Context(), commentID, currentUser(c), req.Type)
	if err != nil {
		respondError(c, h.log, err, "Failed to add reaction")
		return
	}

	c.JSON(http.StatusOK, h.reactionBody(c, commentID, reactions))
}

// RemoveReaction handles DELETE /v1/comments/:id/reactions/:type
func (h *CommentHandler) RemoveReaction(c *gin.Context) {
	commentID := c.Param("id")
	t := models.ReactionType(strings.ToUpper(c.Param("type")))

	reactions, err := h.services.Reaction.Remove(c.Request.Context(), commentID, currentUser(c), t)
	if err != nil {
		respondError(c, h.log, err, "Failed to remove reaction")
		return
	}

	c.JSON(http.StatusOK, h.reactionBody(c, commentID, reactions))
}

func (h *CommentHandler) reactionBody(c *gin.Context, commentID string, reactions []models.Reaction) reactionResponse {
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	return reactionResponse{
		ReactionSet: models.ReactionSet{CommentID: commentID, Reactions: reactions},
		Summary:     reaction.Summarize(reactions, currentUser(c)),
	}
}
