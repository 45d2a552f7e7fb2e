package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lms-discussions-api/internal/models"
)

func ptr(s string) *string { return &s }

func comment(id string, parent *string) models.Comment {
	return models.Comment{ID: id, DiscussionID: "d1", AuthorID: "u1", Content: "comment " + id, ParentCommentID: parent}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Comment.ID
	}
	return out
}

func TestBuildTree_DeepChainRendersButStopsReplies(t *testing.T) {
	flat := []models.Comment{
		comment("1", nil),
		comment("2", ptr("1")),
		comment("3", ptr("2")),
		comment("4", ptr("3")),
	}

	roots := BuildTree(flat)
	require.Len(t, roots, 1)
	assert.Equal(t, 4, Count(roots))

	n4 := Find(roots, "4")
	require.NotNil(t, n4)
	assert.Equal(t, 3, n4.Depth)
	assert.Equal(t, "3", n4.Parent().Comment.ID)

	policy := Policy{MaxDepth: 3}
	assert.False(t, policy.CanReply(n4.Depth))
	assert.True(t, policy.CanReply(Find(roots, "3").Depth))
}

func TestBuildTree_KeepsDataDeeperThanMaxDepth(t *testing.T) {
	flat := []models.Comment{comment("0", nil)}
	for i := 1; i <= 8; i++ {
		flat = append(flat, comment(string(rune('0'+i)), ptr(string(rune('0'+i-1)))))
	}

	roots := BuildTree(flat)
	assert.Equal(t, len(flat), Count(roots))
	assert.Equal(t, 8, Find(roots, "8").Depth)
}

func TestBuildTree_SiblingOrderFollowsInput(t *testing.T) {
	flat := []models.Comment{
		comment("b", nil),
		comment("b2", ptr("b")),
		comment("a", nil),
		comment("b1", ptr("b")),
		comment("a1", ptr("a")),
	}

	roots := BuildTree(flat)
	assert.Equal(t, []string{"b", "a"}, ids(roots))
	assert.Equal(t, []string{"b2", "b1"}, ids(roots[0].Replies))

	var order []string
	for _, c := range Flatten(roots) {
		order = append(order, c.ID)
	}
	assert.Equal(t, []string{"b", "b2", "b1", "a", "a1"}, order)
}

func TestBuildTree_OrphansBecomeFlaggedRoots(t *testing.T) {
	flat := []models.Comment{
		comment("1", nil),
		comment("2", ptr("gone")),
		comment("3", ptr("2")),
		comment("self", ptr("self")),
	}

	roots := BuildTree(flat)
	require.Equal(t, []string{"1", "2", "self"}, ids(roots))
	assert.False(t, roots[0].Orphaned)
	assert.True(t, roots[1].Orphaned)
	assert.True(t, roots[2].Orphaned)
	assert.Equal(t, 1, Find(roots, "3").Depth)
	assert.Equal(t, len(flat), Count(roots))
}

func TestBuildTree_BreaksParentCycles(t *testing.T) {
	flat := []models.Comment{
		comment("root", nil),
		comment("a", ptr("b")),
		comment("b", ptr("a")),
		comment("c", ptr("b")),
	}

	roots := BuildTree(flat)
	assert.Equal(t, len(flat), Count(roots))
	require.Equal(t, []string{"root", "a"}, ids(roots))
	assert.True(t, roots[1].Orphaned)
	assert.Equal(t, 1, Find(roots, "b").Depth)
	assert.Equal(t, 2, Find(roots, "c").Depth)
}

func TestBuildTree_DoesNotShareInputMemory(t *testing.T) {
	flat := []models.Comment{comment("1", nil), comment("2", ptr("1"))}
	flat[0].Reactions = []models.Reaction{{UserID: "u2", Type: models.ReactionLike}}

	roots := BuildTree(flat)
	roots[0].Comment.Reactions[0].UserID = "changed"
	*roots[0].Replies[0].Comment.ParentCommentID = "changed"

	assert.Equal(t, "u2", flat[0].Reactions[0].UserID)
	assert.Equal(t, "1", *flat[1].ParentCommentID)
}

func TestBuildTree_AllRootsGiveFlatForest(t *testing.T) {
	empty := ""
	flat := make([]models.Comment, 0, 20)
	for i := 0; i < 20; i++ {
		var parent *string
		if i%3 == 0 {
			parent = &empty
		}
		flat = append(flat, comment(string(rune('a'+i)), parent))
	}

	roots := BuildTree(flat)
	require.Len(t, roots, len(flat))
	for i, n := range roots {
		assert.Equal(t, flat[i].ID, n.Comment.ID, "input order is kept")
		assert.Zero(t, n.Depth)
		assert.Empty(t, n.Replies)
		assert.False(t, n.Orphaned, "an empty parent reference is a root, not an orphan")
		assert.Nil(t, n.Parent())
	}
}

func TestBuildTree_Empty(t *testing.T) {
	roots := BuildTree(nil)
	assert.NotNil(t, roots)
	assert.Empty(t, roots)
	assert.Nil(t, Find(roots, "x"))
}

func TestPolicy(t *testing.T) {
	p := Policy{MaxDepth: 3}
	for depth := 0; depth < 3; depth++ {
		assert.True(t, p.CanReply(depth), "depth %d", depth)
	}
	for depth := 3; depth < 6; depth++ {
		assert.False(t, p.CanReply(depth), "depth %d", depth)
	}
	assert.True(t, Policy{}.CanReply(DefaultMaxDepth-1))
	assert.False(t, CanReply(DefaultMaxDepth))

	c := comment("1", nil)
	assert.True(t, CanEdit(&c, "u1"))
	assert.False(t, CanEdit(&c, "u2"))
	assert.False(t, CanDelete(&c, ""))
	assert.False(t, CanEdit(nil, "u1"))
}

func TestPolicy_Actions(t *testing.T) {
	roots := BuildTree([]models.Comment{comment("1", nil)})
	n := roots[0]
	p := DefaultPolicy()

	assert.Equal(t, Actions{Reply: true, Edit: true, Delete: true, React: true}, p.Actions(n, "u1"))
	assert.Equal(t, Actions{Reply: true, React: true}, p.Actions(n, "u2"))
	assert.Equal(t, Actions{}, p.Actions(n, ""))

	n.Depth = DefaultMaxDepth
	assert.False(t, p.Actions(n, "u1").Reply)
}
