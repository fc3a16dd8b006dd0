package neuron

import (
	"fmt"
	"sort"

	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// Graph is the tree view of a skeleton's node table: parent and child links
// keyed by treenode ID. It is derived data; rebuild it after the node table
// changes.
type Graph struct {
	Root     int64
	Parent   map[int64]int64 // absent for the root
	Children map[int64][]int64
}

// BuildGraph derives the tree from a node table. The table must contain
// exactly one root row.
func BuildGraph(nodes models.TreenodeTable) (*Graph, error) {
	g := &Graph{
		Parent:   make(map[int64]int64, len(nodes)),
		Children: make(map[int64][]int64, len(nodes)),
	}

	roots := 0
	for i := range nodes {
		node := nodes[i]
		if node.IsRoot() {
			roots++
			g.Root = node.ID
			continue
		}
		g.Parent[node.ID] = node.ParentID
		g.Children[node.ParentID] = append(g.Children[node.ParentID], node.ID)
	}

	if roots == 0 {
		return nil, fmt.Errorf("node table has no root")
	}
	if roots > 1 {
		return nil, fmt.Errorf("node table has %d roots, want 1", roots)
	}
	return g, nil
}

// BranchPoints returns the treenodes with more than one child, in ascending
// ID order.
func (g *Graph) BranchPoints() []int64 {
	var out []int64
	for id, children := range g.Children {
		if len(children) > 1 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EndPoints returns the leaf treenodes, in ascending ID order. The root
// counts as a leaf only when it has no children.
func (g *Graph) EndPoints() []int64 {
	var out []int64
	for id := range g.Parent {
		if len(g.Children[id]) == 0 {
			out = append(out, id)
		}
	}
	if len(g.Children[g.Root]) == 0 {
		out = append(out, g.Root)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Segments decomposes the tree into linear stretches. Each segment starts at
// a leaf or branch point and runs proximally to the next branch point or the
// root, inclusive. Segments are ordered longest first; equal lengths fall
// back to the ID of the distal node so the order is deterministic.
func (g *Graph) Segments() [][]int64 {
	isBreak := make(map[int64]bool)
	for _, id := range g.BranchPoints() {
		isBreak[id] = true
	}
	isBreak[g.Root] = true

	starts := g.EndPoints()
	starts = append(starts, g.BranchPoints()...)

	var segments [][]int64
	for _, start := range starts {
		if start == g.Root && len(g.Children[g.Root]) > 0 {
			continue
		}
		seg := []int64{start}
		cur := start
		for {
			parent, ok := g.Parent[cur]
			if !ok {
				break // reached the root
			}
			seg = append(seg, parent)
			if isBreak[parent] {
				break
			}
			cur = parent
		}
		if len(seg) > 1 {
			segments = append(segments, seg)
		}
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if len(segments[i]) != len(segments[j]) {
			return len(segments[i]) > len(segments[j])
		}
		return segments[i][0] < segments[j][0]
	})
	return segments
}
