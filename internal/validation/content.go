package validation

import (
	"github.com/lms-discussions-api/internal/models"
)

// CommentRules is the single definition of comment content constraints,
// shared by the thread session and the comments API.
var CommentRules = MustRuleSet("comment",
	Field("content", "Comment", Rule{Required: true, MaxLength: models.MaxCommentLength}),
)

// ValidateCommentContent returns nil when content is non-empty after trimming
// and at most MaxCommentLength characters.
func ValidateCommentContent(content string) *Violation {
	fe, _ := CommentRules.ValidateField("content", Values{"content": content}, Env{})
	if fe == nil {
		return nil
	}
	return &Violation{Code: fe.Code, Message: fe.Message}
}
