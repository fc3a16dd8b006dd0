// Package neuron models CATMAID neurons as lazily populated records. A
// Neuron starts as a bare skeleton ID; reading a field that has not been
// fetched yet triggers one blocking round trip through a fetch.Fetcher and
// caches the result. List aggregates many neurons with positional, keyed and
// vectorized access.
//
// A Neuron is not safe for concurrent use. Callers that share one across
// goroutines must add their own fetch deduplication.
package neuron

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/metrics"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// fieldState tracks whether a field holds fetched data.
type fieldState uint8

const (
	unset fieldState = iota
	populated
)

// Neuron is a single skeleton on a CATMAID server. The ID is fixed at
// construction; every other field is fetched on first read and cached until
// refreshed or overwritten.
type Neuron struct {
	id      int64
	fetcher fetch.Fetcher

	name        string
	nodes       models.TreenodeTable
	connectors  models.ConnectorTable
	tags        models.Tags
	annotations []models.Annotation
	review      models.ReviewStatus

	nameState        fieldState
	nodesState       fieldState
	connectorsState  fieldState
	tagsState        fieldState
	annotationsState fieldState
	reviewState      fieldState

	// Derived from nodes/connectors, dropped whenever those change.
	graph    *Graph
	segments [][]int64
}

// New returns a bare neuron. No remote call is made; every field except the
// ID is unset.
func New(id int64, fetcher fetch.Fetcher) *Neuron {
	return &Neuron{id: id, fetcher: fetcher}
}

// FromRecord returns a neuron pre-populated with the fields present in rec,
// as handed back by a bulk fetch. Fields absent from rec stay unset.
func FromRecord(id int64, rec *fetch.Record, fetcher fetch.Fetcher) *Neuron {
	n := New(id, fetcher)
	n.applyRecord(rec)
	return n
}

// SkeletonID returns the neuron's identity. Never triggers a fetch.
func (n *Neuron) SkeletonID() int64 { return n.id }

// Equal reports whether other refers to the same skeleton. Field contents
// and population state are irrelevant.
func (n *Neuron) Equal(other *Neuron) bool {
	return other != nil && n.id == other.id
}

func (n *Neuron) String() string {
	if n.nameState == populated {
		return fmt.Sprintf("neuron %d (%s)", n.id, n.name)
	}
	return fmt.Sprintf("neuron %d", n.id)
}

// Populated reports whether every field of the given group holds data.
func (n *Neuron) Populated(group fetch.FieldGroup) bool {
	switch group {
	case fetch.GroupSkeleton:
		return n.nodesState == populated && n.connectorsState == populated && n.tagsState == populated
	case fetch.GroupName:
		return n.nameState == populated
	case fetch.GroupAnnotations:
		return n.annotationsState == populated
	case fetch.GroupReview:
		return n.reviewState == populated
	}
	return false
}

// applyRecord copies the populated fields of rec into the neuron and marks
// them populated. Derived fields are dropped when structure data changes.
func (n *Neuron) applyRecord(rec *fetch.Record) {
	if rec == nil {
		return
	}
	if rec.Name != nil {
		n.name = *rec.Name
		n.nameState = populated
	}
	if rec.Nodes != nil {
		n.nodes = rec.Nodes.Clone()
		n.nodesState = populated
		n.invalidateDerived()
	}
	if rec.Connectors != nil {
		n.connectors = rec.Connectors.Clone()
		n.connectorsState = populated
		n.invalidateDerived()
	}
	if rec.Tags != nil {
		n.tags = rec.Tags.Clone()
		n.tagsState = populated
	}
	if rec.Annotations != nil {
		n.annotations = make([]models.Annotation, len(rec.Annotations))
		copy(n.annotations, rec.Annotations)
		n.annotationsState = populated
	}
	if rec.Review != nil {
		n.review = *rec.Review
		n.reviewState = populated
	}
}

func (n *Neuron) invalidateDerived() {
	n.graph = nil
	n.segments = nil
}

// applyGroup applies rec and then marks every field of the fetched group
// populated. A fetch covers its whole group, so a field the record carries as
// nil was returned empty by the server, not skipped; it becomes an empty
// table rather than staying unset and re-triggering fetches.
func (n *Neuron) applyGroup(rec *fetch.Record, group fetch.FieldGroup) {
	n.applyRecord(rec)
	switch group {
	case fetch.GroupSkeleton:
		if n.nodesState == unset {
			n.nodes = models.TreenodeTable{}
			n.nodesState = populated
			n.invalidateDerived()
		}
		if n.connectorsState == unset {
			n.connectors = models.ConnectorTable{}
			n.connectorsState = populated
			n.invalidateDerived()
		}
		if n.tagsState == unset {
			n.tags = models.Tags{}
			n.tagsState = populated
		}
	case fetch.GroupName:
		n.nameState = populated
	case fetch.GroupAnnotations:
		if n.annotationsState == unset {
			n.annotations = []models.Annotation{}
			n.annotationsState = populated
		}
	case fetch.GroupReview:
		n.reviewState = populated
	}
}

// fetchGroup performs one remote round trip for the given group and applies
// the result.
func (n *Neuron) fetchGroup(ctx context.Context, group fetch.FieldGroup) error {
	if n.fetcher == nil {
		return fmt.Errorf("neuron %d: no fetcher attached", n.id)
	}
	recs, err := n.fetcher.FetchFields(ctx, []int64{n.id}, group)
	if err != nil {
		return err
	}
	rec, ok := recs[n.id]
	if !ok {
		return &fetch.UnknownSkeletonError{ID: n.id}
	}
	n.applyGroup(rec, group)
	return nil
}

// ensure fetches the group only if some of its fields are still unset.
func (n *Neuron) ensure(ctx context.Context, group fetch.FieldGroup) error {
	if n.Populated(group) {
		return nil
	}
	return n.fetchGroup(ctx, group)
}

// invalidator is implemented by fetchers that keep local copies of server
// responses, such as the sqlite cache.
type invalidator interface {
	Invalidate(ctx context.Context, id int64, group fetch.FieldGroup) error
}

// Refresh unconditionally re-fetches the group and overwrites its fields,
// populated or not. If the fetcher caches responses the cached entry is
// dropped first, so the data really comes from the server. Derived fields
// based on the refreshed data are dropped.
func (n *Neuron) Refresh(ctx context.Context, group fetch.FieldGroup) error {
	if inv, ok := n.fetcher.(invalidator); ok {
		if err := inv.Invalidate(ctx, n.id, group); err != nil {
			return err
		}
	}
	if err := n.fetchGroup(ctx, group); err != nil {
		return err
	}
	metrics.Inc(metrics.RefreshTotal)
	return nil
}

// Name returns the neuron's name, fetching it on first read.
func (n *Neuron) Name(ctx context.Context) (string, error) {
	if err := n.ensure(ctx, fetch.GroupName); err != nil {
		return "", err
	}
	return n.name, nil
}

// Nodes returns the treenode table, fetching the skeleton group (nodes,
// connectors, tags) on first read. The returned table is the neuron's own;
// use SetNodes to replace it.
func (n *Neuron) Nodes(ctx context.Context) (models.TreenodeTable, error) {
	if n.nodesState == unset {
		if err := n.fetchGroup(ctx, fetch.GroupSkeleton); err != nil {
			return nil, err
		}
	}
	return n.nodes, nil
}

// Connectors returns the connector table, fetching the skeleton group on
// first read.
func (n *Neuron) Connectors(ctx context.Context) (models.ConnectorTable, error) {
	if n.connectorsState == unset {
		if err := n.fetchGroup(ctx, fetch.GroupSkeleton); err != nil {
			return nil, err
		}
	}
	return n.connectors, nil
}

// Tags returns the tag map, fetching the skeleton group on first read.
func (n *Neuron) Tags(ctx context.Context) (models.Tags, error) {
	if n.tagsState == unset {
		if err := n.fetchGroup(ctx, fetch.GroupSkeleton); err != nil {
			return nil, err
		}
	}
	return n.tags, nil
}

// Annotations returns the neuron's annotations, fetching on first read.
func (n *Neuron) Annotations(ctx context.Context) ([]models.Annotation, error) {
	if err := n.ensure(ctx, fetch.GroupAnnotations); err != nil {
		return nil, err
	}
	return n.annotations, nil
}

// ReviewStatus returns the reviewed/total node counts, fetching on first read.
func (n *Neuron) ReviewStatus(ctx context.Context) (models.ReviewStatus, error) {
	if err := n.ensure(ctx, fetch.GroupReview); err != nil {
		return models.ReviewStatus{}, err
	}
	return n.review, nil
}

// Root returns the root treenode.
func (n *Neuron) Root(ctx context.Context) (models.Treenode, error) {
	nodes, err := n.Nodes(ctx)
	if err != nil {
		return models.Treenode{}, err
	}
	root, ok := nodes.Root()
	if !ok {
		return models.Treenode{}, fmt.Errorf("neuron %d: node table has no root", n.id)
	}
	return root, nil
}

// Soma returns the treenode ID of the soma and true if one can be located:
// the first node carrying the soma tag, else the first node with a measured
// radius greater than zero.
func (n *Neuron) Soma(ctx context.Context) (int64, bool, error) {
	tags, err := n.Tags(ctx)
	if err != nil {
		return 0, false, err
	}
	if ids := tags[models.SomaTag]; len(ids) > 0 {
		return ids[0], true, nil
	}
	nodes, err := n.Nodes(ctx)
	if err != nil {
		return 0, false, err
	}
	for i := range nodes {
		if nodes[i].Radius > 0 {
			return nodes[i].ID, true, nil
		}
	}
	return 0, false, nil
}

// Graph returns the tree representation of the skeleton, computed from the
// node table on first read and cached until the table changes.
func (n *Neuron) Graph(ctx context.Context) (*Graph, error) {
	if n.graph != nil {
		return n.graph, nil
	}
	nodes, err := n.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	g, err := BuildGraph(nodes)
	if err != nil {
		return nil, fmt.Errorf("neuron %d: %w", n.id, err)
	}
	n.graph = g
	return g, nil
}

// Segments returns the linear segments of the skeleton, distal end first,
// longest segment first. Cached until the node table changes.
func (n *Neuron) Segments(ctx context.Context) ([][]int64, error) {
	if n.segments != nil {
		return n.segments, nil
	}
	g, err := n.Graph(ctx)
	if err != nil {
		return nil, err
	}
	n.segments = g.Segments()
	return n.segments, nil
}

// SetNodes replaces the treenode table, typically with the output of an
// external morphology tool, and drops derived fields.
func (n *Neuron) SetNodes(nodes models.TreenodeTable) {
	n.nodes = nodes.Clone()
	n.nodesState = populated
	n.invalidateDerived()
}

// SetConnectors replaces the connector table and drops derived fields.
func (n *Neuron) SetConnectors(connectors models.ConnectorTable) {
	n.connectors = connectors.Clone()
	n.connectorsState = populated
	n.invalidateDerived()
}

// SetTags replaces the tag map.
func (n *Neuron) SetTags(tags models.Tags) {
	n.tags = tags.Clone()
	n.tagsState = populated
}

// SetName replaces the cached name.
func (n *Neuron) SetName(name string) {
	n.name = name
	n.nameState = populated
}

// Clone returns a deep copy sharing only the fetcher, which is a borrowed
// collaborator. Derived fields are dropped; they are cheap to recompute.
func (n *Neuron) Clone() *Neuron {
	out := &Neuron{
		id:               n.id,
		fetcher:          n.fetcher,
		name:             n.name,
		nodes:            n.nodes.Clone(),
		connectors:       n.connectors.Clone(),
		tags:             n.tags.Clone(),
		review:           n.review,
		nameState:        n.nameState,
		nodesState:       n.nodesState,
		connectorsState:  n.connectorsState,
		tagsState:        n.tagsState,
		annotationsState: n.annotationsState,
		reviewState:      n.reviewState,
	}
	if n.annotations != nil {
		out.annotations = make([]models.Annotation, len(n.annotations))
		copy(out.annotations, n.annotations)
	}
	return out
}

// Reroot makes newRoot the skeleton's root by flipping parent pointers along
// the path from the old root. With inplace true the receiver is mutated and
// returned; with inplace false a deep copy carries the change and the
// receiver stays untouched. Exactly one of the two reflects the operation.
func (n *Neuron) Reroot(ctx context.Context, newRoot int64, inplace bool) (*Neuron, error) {
	if _, err := n.Nodes(ctx); err != nil {
		return nil, err
	}

	target := n
	if !inplace {
		target = n.Clone()
	}

	idx := target.nodes.Index()
	if _, ok := idx[newRoot]; !ok {
		return nil, fmt.Errorf("neuron %d: treenode %d not in node table", n.id, newRoot)
	}

	// Collect the path from the new root up to the old one before touching
	// anything, so a broken parent link never leaves a half-flipped tree.
	var path []int
	for cur := newRoot; cur != models.RootParent; {
		pos, ok := idx[cur]
		if !ok {
			return nil, fmt.Errorf("neuron %d: broken parent link at treenode %d", n.id, cur)
		}
		if len(path) > len(target.nodes) {
			return nil, fmt.Errorf("neuron %d: parent cycle at treenode %d", n.id, cur)
		}
		path = append(path, pos)
		cur = target.nodes[pos].ParentID
	}

	// Reverse each edge along the path.
	prev := models.RootParent
	for _, pos := range path {
		id := target.nodes[pos].ID
		target.nodes[pos].ParentID = prev
		prev = id
	}

	target.invalidateDerived()
	return target, nil
}
