package thread

import (
	"time"

	"github.com/lms-discussions-api/internal/models"
)

// MutationState is the lifecycle of one optimistic change.
// Pending moves to exactly one of Committed or RolledBack.
type MutationState int

const (
	Pending MutationState = iota
	Committed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "pending"
	}
}

// MutationKind names the user intent behind a mutation
type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
	MutationReact  MutationKind = "react"
)

// Mutation records one optimistic change applied to a session
type Mutation struct {
	ID        string        `json:"id"`
	Kind      MutationKind  `json:"kind"`
	CommentID string        `json:"comment_id"`
	State     MutationState `json:"state"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`

	snapshot []models.Comment
}

func (m *Mutation) commit(now time.Time) bool {
	if m.State != Pending {
		return false
	}
	m.State = Committed
	m.EndedAt = now
	m.snapshot = nil
	return true
}

func (m *Mutation) rollback(now time.Time, err error) bool {
	if m.State != Pending {
		return false
	}
	m.State = RolledBack
	m.Err = err
	m.EndedAt = now
	m.snapshot = nil
	return true
}
