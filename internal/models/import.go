package models

import "time"

// CommentNDJSON is one line of a thread export or import file
type CommentNDJSON struct {
	ID              string     `json:"id"`
	DiscussionID    string     `json:"discussion_id,omitempty"`
	AuthorID        string     `json:"author_id"`
	Content         string     `json:"content"`
	ParentCommentID *string    `json:"parent_comment_id"`
	Reactions       []Reaction `json:"reactions"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

// ImportError is a line level problem found while importing
type ImportError struct {
	Line    int    `json:"line"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportResult summarizes a thread import
type ImportResult struct {
	DiscussionID    string        `json:"discussion_id"`
	TotalRecords    int           `json:"total_records"`
	SuccessfulCount int           `json:"successful_count"`
	FailedCount     int           `json:"failed_count"`
	Errors          []ImportError `json:"errors,omitempty"`
	DurationMs      int64         `json:"duration_ms"`
	StartedAt       time.Time     `json:"started_at"`
}
