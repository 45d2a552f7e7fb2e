// Package thread turns flat comment lists into depth-bounded trees and
// mediates mutations of a discussion thread.
package thread

import (
	"sort"

	"github.com/lms-discussions-api/internal/models"
)

// Node is one comment placed in its thread
type Node struct {
	Comment models.Comment `json:"comment"`
	// Depth is the number of ancestors above the comment; roots have depth 0.
	Depth int `json:"depth"`
	// Orphaned marks a comment whose parent is missing from the list
	// (or that sits on a parent cycle) and was therefore promoted to a root.
	Orphaned bool    `json:"orphaned,omitempty"`
	Replies  []*Node `json:"replies"`

	parent *Node
	index  int
}

// Parent returns the node's parent, nil for roots
func (n *Node) Parent() *Node { return n.parent }

// BuildTree arranges a flat comment list into a forest.
//
// Comments without a parent are roots. Every other comment is attached under
// its parent; siblings keep their relative input order. Comments whose parent
// is not in the list, or that point at themselves or into a parent cycle, are
// kept as roots flagged Orphaned. No comment is dropped, whatever its depth.
// When IDs repeat, replies attach to the first occurrence.
func BuildTree(flat []models.Comment) []*Node {
	nodes := make([]*Node, len(flat))
	byID := make(map[string]*Node, len(flat))
	for i := range flat {
		n := &Node{Comment: flat[i].Clone(), Replies: []*Node{}, index: i}
		nodes[i] = n
		if _, dup := byID[n.Comment.ID]; !dup {
			byID[n.Comment.ID] = n
		}
	}

	roots := make([]*Node, 0)
	for _, n := range nodes {
		if n.Comment.IsRoot() {
			roots = append(roots, n)
			continue
		}
		p, ok := byID[*n.Comment.ParentCommentID]
		if !ok || p == n {
			n.Orphaned = true
			roots = append(roots, n)
			continue
		}
		n.parent = p
		p.Replies = append(p.Replies, n)
	}

	visited := make(map[*Node]bool, len(nodes))
	assignDepths(roots, visited)

	// Anything not reached from a root is on a cycle: break it at the
	// earliest member in input order.
	for _, n := range nodes {
		if visited[n] {
			continue
		}
		detach(n)
		n.Orphaned = true
		roots = append(roots, n)
		assignDepths([]*Node{n}, visited)
	}

	sort.SliceStable(roots, func(i, j int) bool { return roots[i].index < roots[j].index })
	return roots
}

func detach(n *Node) {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.Replies {
		if c == n {
			p.Replies = append(p.Replies[:i:i], p.Replies[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func assignDepths(roots []*Node, visited map[*Node]bool) {
	type item struct {
		n     *Node
		depth int
	}
	stack := make([]item, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, item{roots[i], 0})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[it.n] {
			continue
		}
		visited[it.n] = true
		it.n.Depth = it.depth
		for i := len(it.n.Replies) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Replies[i], it.depth + 1})
		}
	}
}

// Walk visits nodes depth-first in display order. Returning false from fn
// stops the walk.
func Walk(roots []*Node, fn func(*Node) bool) {
	stack := make([]*Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		for i := len(n.Replies) - 1; i >= 0; i-- {
			stack = append(stack, n.Replies[i])
		}
	}
}

// Find returns the node for a comment ID, or nil
func Find(roots []*Node, id string) *Node {
	var found *Node
	Walk(roots, func(n *Node) bool {
		if n.Comment.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the forest
func Count(roots []*Node) int {
	total := 0
	Walk(roots, func(*Node) bool {
		total++
		return true
	})
	return total
}

// Flatten returns the comments in display order
func Flatten(roots []*Node) []models.Comment {
	out := make([]models.Comment, 0, len(roots))
	Walk(roots, func(n *Node) bool {
		out = append(out, n.Comment)
		return true
	})
	return out
}

// Subtree returns the IDs of a comment and all of its descendants
func Subtree(n *Node) []string {
	var ids []string
	Walk([]*Node{n}, func(c *Node) bool {
		ids = append(ids, c.Comment.ID)
		return true
	})
	return ids
}
