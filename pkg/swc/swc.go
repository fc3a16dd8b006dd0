// Package swc reads and writes skeletons in SWC format, the interchange
// format of most morphology tools. Export remaps treenode IDs to a
// contiguous 1..N range with every parent written before its children, as
// downstream tools expect.
package swc

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// SWC structure labels.
const (
	LabelUndefined = 0
	LabelSoma      = 1
	LabelBranch    = 5
	LabelEnd       = 6
	LabelPre       = 7
	LabelPost      = 8
)

// Options controls export behavior.
type Options struct {
	// ExportSynapses labels treenodes carrying pre-/postsynaptic links with
	// 7/8. A treenode with both kinds keeps the presynaptic label.
	ExportSynapses bool
	// Connectors supplies the synapse table when ExportSynapses is set.
	Connectors models.ConnectorTable
	// MinRadius replaces smaller radii on export. CATMAID uses -1 for
	// unmeasured radii, which trips up some consumers.
	MinRadius float64
	// Header lines are written as comments before the data rows.
	Header []string
}

// Encode writes the node table as SWC and returns the old-to-new treenode ID
// mapping.
func Encode(w io.Writer, nodes models.TreenodeTable, tags models.Tags, opts Options) (map[int64]int64, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("swc: node table is empty")
	}

	root, ok := nodes.Root()
	if !ok {
		return nil, fmt.Errorf("swc: node table has no root")
	}

	children := make(map[int64][]int64, len(nodes))
	byID := make(map[int64]models.Treenode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = nodes[i]
		if !nodes[i].IsRoot() {
			children[nodes[i].ParentID] = append(children[nodes[i].ParentID], nodes[i].ID)
		}
	}
	for id := range children {
		sort.Slice(children[id], func(i, j int) bool { return children[id][i] < children[id][j] })
	}

	// Parent-before-child order with IDs remapped to 1..N.
	mapping := make(map[int64]int64, len(nodes))
	order := make([]int64, 0, len(nodes))
	queue := []int64{root.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := mapping[id]; dup {
			continue
		}
		mapping[id] = int64(len(order) + 1)
		order = append(order, id)
		queue = append(queue, children[id]...)
	}
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("swc: %d of %d treenodes unreachable from root %d",
			len(nodes)-len(order), len(nodes), root.ID)
	}

	labels := buildLabels(children, tags, opts)

	bw := bufio.NewWriter(w)
	for _, line := range opts.Header {
		if _, err := fmt.Fprintf(bw, "# %s\n", line); err != nil {
			return nil, err
		}
	}
	for _, id := range order {
		node := byID[id]
		parent := int64(-1)
		if !node.IsRoot() {
			parent = mapping[node.ParentID]
		}
		radius := node.Radius
		if radius < opts.MinRadius {
			radius = opts.MinRadius
		}
		_, err := fmt.Fprintf(bw, "%d %d %g %g %g %g %d\n",
			mapping[id], labels[id], node.X, node.Y, node.Z, radius, parent)
		if err != nil {
			return nil, err
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return mapping, nil
}

func buildLabels(children map[int64][]int64, tags models.Tags, opts Options) map[int64]int {
	labels := make(map[int64]int)
	for id, kids := range children {
		if len(kids) > 1 {
			labels[id] = LabelBranch
		}
	}
	for id := range children {
		for _, kid := range children[id] {
			if len(children[kid]) == 0 {
				labels[kid] = LabelEnd
			}
		}
	}
	if opts.ExportSynapses {
		for i := range opts.Connectors {
			conn := opts.Connectors[i]
			switch conn.Relation {
			case models.Presynaptic:
				labels[conn.TreenodeID] = LabelPre
			case models.Postsynaptic:
				if labels[conn.TreenodeID] != LabelPre {
					labels[conn.TreenodeID] = LabelPost
				}
			}
		}
	}
	// Soma wins over any structural label.
	for _, id := range tags[models.SomaTag] {
		labels[id] = LabelSoma
	}
	return labels
}

// Result is a decoded SWC file.
type Result struct {
	Nodes  models.TreenodeTable
	Tags   models.Tags
	Header []string
}

// Decode parses SWC input. Comment lines are preserved as header text,
// negative parents become the root sentinel, and nodes are tagged from the
// label column; a node with label 1 or a positive radius is taken as soma,
// following the convention that soma is inferred from radius when unlabeled.
func Decode(r io.Reader) (*Result, error) {
	res := &Result{Tags: models.Tags{}}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			res.Header = append(res.Header, strings.TrimSpace(strings.TrimPrefix(text, "#")))
			continue
		}

		cols := strings.Fields(text)
		if len(cols) != 7 {
			return nil, fmt.Errorf("swc: line %d has %d columns, want 7", line, len(cols))
		}

		id, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("swc: line %d: bad id: %w", line, err)
		}
		label, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, fmt.Errorf("swc: line %d: bad label: %w", line, err)
		}
		coords := make([]float64, 4) // x, y, z, radius
		for i := 0; i < 4; i++ {
			coords[i], err = strconv.ParseFloat(cols[2+i], 64)
			if err != nil {
				return nil, fmt.Errorf("swc: line %d: bad column %d: %w", line, 3+i, err)
			}
		}
		parent, err := strconv.ParseInt(cols[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("swc: line %d: bad parent: %w", line, err)
		}
		if parent < 0 {
			parent = models.RootParent
		}

		node := models.Treenode{
			ID:       id,
			ParentID: parent,
			X:        coords[0],
			Y:        coords[1],
			Z:        coords[2],
			Radius:   coords[3],
			// SWC carries no confidence or authorship; use CATMAID's
			// defaults so round trips stay well formed.
			Confidence: 5,
		}
		res.Nodes = append(res.Nodes, node)

		if label == LabelSoma || (label == LabelUndefined && node.Radius > 0) {
			res.Tags[models.SomaTag] = append(res.Tags[models.SomaTag], id)
		} else if label != LabelUndefined {
			key := strconv.Itoa(label)
			res.Tags[key] = append(res.Tags[key], id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("swc: reading input: %w", err)
	}
	if len(res.Nodes) == 0 {
		return nil, fmt.Errorf("swc: no data rows")
	}
	return res, nil
}
