package models

import "time"

// ReactionType identifies the kind of marker a user puts on a comment
type ReactionType string

const (
	ReactionLike    ReactionType = "LIKE"
	ReactionHelpful ReactionType = "HELPFUL"
)

// ValidReactionTypes defines the reaction types accepted by the API
var ValidReactionTypes = map[ReactionType]bool{
	ReactionLike:    true,
	ReactionHelpful: true,
}

// ExposedReactionTypes lists the types offered in the UI, in display order
var ExposedReactionTypes = []ReactionType{ReactionLike, ReactionHelpful}

// Reaction is a (user, type) marker on a single comment.
// At most one reaction exists per (comment, user, type).
type Reaction struct {
	CommentID string       `json:"-" db:"comment_id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Type      ReactionType `json:"type" db:"type"`
	CreatedAt time.Time    `json:"created_at,omitempty" db:"created_at"`
}

// ReactionRequest is the payload for adding a reaction
type ReactionRequest struct {
	Type ReactionType `json:"type" binding:"required"`
}

// ReactionSet is a comment's reactions after a change
type ReactionSet struct {
	CommentID string     `json:"comment_id"`
	Reactions []Reaction `json:"reactions"`
}
