package thread

import (
	"github.com/lms-discussions-api/internal/models"
)

// DefaultMaxDepth is the deepest level at which a reply can still be started
const DefaultMaxDepth = 3

// Policy decides which actions a viewer gets on a comment
type Policy struct {
	MaxDepth int
}

// DefaultPolicy returns the policy with DefaultMaxDepth
func DefaultPolicy() Policy {
	return Policy{MaxDepth: DefaultMaxDepth}
}

func (p Policy) maxDepth() int {
	if p.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return p.MaxDepth
}

// CanReply reports whether a comment at depth may receive replies.
// Deeper data is still rendered; only the affordance is withheld.
func (p Policy) CanReply(depth int) bool {
	return depth >= 0 && depth < p.maxDepth()
}

// CanReply applies DefaultPolicy
func CanReply(depth int) bool {
	return DefaultPolicy().CanReply(depth)
}

// CanEdit reports whether userID may edit the comment. Only the author may.
func CanEdit(c *models.Comment, userID string) bool {
	return c != nil && userID != "" && c.AuthorID == userID
}

// CanDelete reports whether userID may delete the comment
func CanDelete(c *models.Comment, userID string) bool {
	return CanEdit(c, userID)
}

// Actions lists the affordances offered on one comment
type Actions struct {
	Reply  bool `json:"reply"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	React  bool `json:"react"`
}

// Actions computes the affordances for userID on n. Anonymous viewers get none.
func (p Policy) Actions(n *Node, userID string) Actions {
	if n == nil || userID == "" {
		return Actions{}
	}
	return Actions{
		Reply:  p.CanReply(n.Depth),
		Edit:   CanEdit(&n.Comment, userID),
		Delete: CanDelete(&n.Comment, userID),
		React:  true,
	}
}
