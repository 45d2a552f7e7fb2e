package models

import (
	"time"
)

// Comment represents a comment in a discussion thread
type Comment struct {
	ID              string     `json:"id" db:"id"`
	DiscussionID    string     `json:"discussion_id" db:"discussion_id"`
	AuthorID        string     `json:"author_id" db:"author_id"`
	Content         string     `json:"content" db:"content"`
	ParentCommentID *string    `json:"parent_comment_id" db:"parent_comment_id"`
	Reactions       []Reaction `json:"reactions" db:"-"`
	Edited          bool       `json:"is_edited" db:"-"`
	Depth           int        `json:"-" db:"depth"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the comment has no parent
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil || *c.ParentCommentID == ""
}

// IsEdited reports whether the comment was modified after creation
func (c *Comment) IsEdited() bool {
	return c.Edited || (!c.UpdatedAt.IsZero() && c.UpdatedAt.After(c.CreatedAt))
}

// Clone returns a deep copy, reactions and parent pointer included
func (c Comment) Clone() Comment {
	if c.ParentCommentID != nil {
		parent := *c.ParentCommentID
		c.ParentCommentID = &parent
	}
	if c.Reactions != nil {
		c.Reactions = append([]Reaction(nil), c.Reactions...)
	}
	return c
}

// NewComment is the payload for creating a comment or a reply
type NewComment struct {
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

// CommentUpdate is the payload for editing a comment
type CommentUpdate struct {
	Content string `json:"content"`
}

// MaxCommentLength is the maximum allowed characters in a comment body
const MaxCommentLength = 1000

// CommentList is the response body of a thread listing
type CommentList struct {
	DiscussionID string    `json:"discussion_id"`
	Comments     []Comment `json:"comments"`
	Count        int       `json:"count"`
}
