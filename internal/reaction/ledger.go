// Package reaction implements per-comment reaction sets with toggle semantics.
//
// A reaction set holds at most one entry per (user, type). All functions are
// pure: they never modify the slice they are given.
package reaction

import (
	"github.com/lms-discussions-api/internal/models"
)

// Toggle removes the (userID, t) reaction if present, otherwise appends it.
// Applying Toggle twice with the same arguments yields the original set.
func Toggle(reactions []models.Reaction, userID string, t models.ReactionType) []models.Reaction {
	out := make([]models.Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.UserID == userID && r.Type == t {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if !removed {
		out = append(out, models.Reaction{UserID: userID, Type: t})
	}
	return out
}

// Has reports whether userID holds a reaction of type t
func Has(reactions []models.Reaction, userID string, t models.ReactionType) bool {
	for _, r := range reactions {
		if r.UserID == userID && r.Type == t {
			return true
		}
	}
	return false
}

// CountByType counts reactions of type t
func CountByType(reactions []models.Reaction, t models.ReactionType) int {
	n := 0
	for _, r := range reactions {
		if r.Type == t {
			n++
		}
	}
	return n
}

// FindUserReaction returns the user's active reaction among the types the UI
// exposes, in ExposedReactionTypes order, or nil.
func FindUserReaction(reactions []models.Reaction, userID string) *models.Reaction {
	for _, t := range models.ExposedReactionTypes {
		for i := range reactions {
			if reactions[i].UserID == userID && reactions[i].Type == t {
				r := reactions[i]
				return &r
			}
		}
	}
	return nil
}

// Summary is the badge view of one reaction type
type Summary struct {
	Type   models.ReactionType `json:"type"`
	Count  int                 `json:"count"`
	Active bool                `json:"active"`
}

// Summarize returns one badge per exposed type for the given viewer
func Summarize(reactions []models.Reaction, viewerID string) []Summary {
	out := make([]Summary, 0, len(models.ExposedReactionTypes))
	for _, t := range models.ExposedReactionTypes {
		out = append(out, Summary{
			Type:   t,
			Count:  CountByType(reactions, t),
			Active: viewerID != "" && Has(reactions, viewerID, t),
		})
	}
	return out
}

// Equal reports whether a and b contain the same (user, type) pairs, ignoring order
func Equal(a, b []models.Reaction) bool {
	if len(a) != len(b) {
		return false
	}
	type key struct {
		user string
		t    models.ReactionType
	}
	seen := make(map[key]int, len(a))
	for _, r := range a {
		seen[key{r.UserID, r.Type}]++
	}
	for _, r := range b {
		k := key{r.UserID, r.Type}
		if seen[k] == 0 {
			return false
		}
		seen[k]--
	}
	return true
}
