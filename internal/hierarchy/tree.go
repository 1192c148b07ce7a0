// Package hierarchy maintains the page tree invariants on top of the
// storage adapter: acyclic parent links, cascade and orphaning deletes,
// and deterministic tree construction.
package hierarchy

import (
	"slices"
	"strings"

	"github.com/maruel/ksid"
	"github.com/potionhq/potion/internal/entity"
)

// TreeNode is one page of the rendered tree with its sorted children.
type TreeNode struct {
	Page     *entity.PageSummary `json:"page"`
	Children []*TreeNode         `json:"children,omitempty"`
}

// BuildTree arranges a flat page list into a forest. Pages whose declared
// parent is absent from the list become roots, so dangling references heal
// instead of disappearing. Siblings at every level are ordered by
// case-sensitive title comparison. Pure, no I/O.
func BuildTree(pages []*entity.PageSummary) []*TreeNode {
	present := make(map[ksid.ID]bool, len(pages))
	for _, p := range pages {
		present[p.ID] = true
	}
	byParent := map[ksid.ID][]*entity.PageSummary{}
	for _, p := range pages {
		parent := p.ParentID
		if !present[parent] {
			parent = 0
		}
		byParent[parent] = append(byParent[parent], p)
	}
	return buildLevel(byParent, 0)
}

func buildLevel(byParent map[ksid.ID][]*entity.PageSummary, parent ksid.ID) []*TreeNode {
	children := byParent[parent]
	if len(children) == 0 {
		return nil
	}
	slices.SortStableFunc(children, func(a, b *entity.PageSummary) int {
		return strings.Compare(a.Title, b.Title)
	})
	nodes := make([]*TreeNode, len(children))
	for i, p := range children {
		nodes[i] = &TreeNode{Page: p, Children: buildLevel(byParent, p.ID)}
	}
	return nodes
}
