package neuron

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// List is an ordered collection of neurons. Order is the load-bearing
// structure: duplicate skeleton IDs are permitted, and every vectorized read
// is positionally aligned with member order. The ID index is rebuilt at
// construction and maps each ID to all of its positions.
type List struct {
	neurons []*Neuron
	index   map[int64][]int
}

// NewList builds a list from the given neurons, preserving their order.
func NewList(neurons ...*Neuron) *List {
	l := &List{neurons: make([]*Neuron, len(neurons))}
	copy(l.neurons, neurons)
	l.rebuildIndex()
	return l
}

func (l *List) rebuildIndex() {
	l.index = make(map[int64][]int, len(l.neurons))
	for i, n := range l.neurons {
		l.index[n.SkeletonID()] = append(l.index[n.SkeletonID()], i)
	}
}

// Len returns the number of members, duplicates included.
func (l *List) Len() int { return len(l.neurons) }

// At returns the i-th neuron.
func (l *List) At(i int) (*Neuron, error) {
	if i < 0 || i >= len(l.neurons) {
		return nil, &OutOfRangeError{Index: i, Len: len(l.neurons)}
	}
	return l.neurons[i], nil
}

// GetByID returns the first member with the given skeleton ID. Use
// GetAllByID when duplicates matter.
func (l *List) GetByID(id int64) (*Neuron, error) {
	positions := l.index[id]
	if len(positions) == 0 {
		return nil, &NotFoundError{ID: id}
	}
	return l.neurons[positions[0]], nil
}

// GetAllByID returns every member with the given skeleton ID, in their
// original relative order.
func (l *List) GetAllByID(id int64) ([]*Neuron, error) {
	positions := l.index[id]
	if len(positions) == 0 {
		return nil, &NotFoundError{ID: id}
	}
	out := make([]*Neuron, len(positions))
	for i, pos := range positions {
		out[i] = l.neurons[pos]
	}
	return out, nil
}

// Contains reports whether any member has the given skeleton ID.
func (l *List) Contains(id int64) bool {
	return len(l.index[id]) > 0
}

// Neurons returns the members in order. The slice is a copy; the neurons
// are not.
func (l *List) Neurons() []*Neuron {
	out := make([]*Neuron, len(l.neurons))
	copy(out, l.neurons)
	return out
}

// SkeletonIDs returns the members' IDs in order. Never triggers a fetch.
func (l *List) SkeletonIDs() []int64 {
	out := make([]int64, len(l.neurons))
	for i, n := range l.neurons {
		out[i] = n.SkeletonID()
	}
	return out
}

// Concat returns a new list holding the receiver's members followed by
// other's. Duplicate IDs are allowed; neither input is modified.
func (l *List) Concat(other *List) *List {
	merged := make([]*Neuron, 0, len(l.neurons)+len(other.neurons))
	merged = append(merged, l.neurons...)
	merged = append(merged, other.neurons...)
	return NewList(merged...)
}

// ensureGroup populates the given field group on every member that still
// lacks it, batching all missing IDs into a single fetch. Members sharing an
// ID are populated from the same record. Fails fast on the first error.
func (l *List) ensureGroup(ctx context.Context, group fetch.FieldGroup) error {
	var missing []*Neuron
	var ids []int64
	seen := make(map[int64]bool)
	for _, n := range l.neurons {
		if n.Populated(group) {
			continue
		}
		missing = append(missing, n)
		if !seen[n.SkeletonID()] {
			seen[n.SkeletonID()] = true
			ids = append(ids, n.SkeletonID())
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fetcher := missing[0].fetcher
	if fetcher == nil {
		return fmt.Errorf("neuron list: member %d has no fetcher attached", missing[0].id)
	}

	recs, err := fetcher.FetchFields(ctx, ids, group)
	if err != nil {
		return err
	}
	for _, n := range missing {
		rec, ok := recs[n.SkeletonID()]
		if !ok {
			// The fetcher chose not to batch this ID; ask individually.
			if err := n.fetchGroup(ctx, group); err != nil {
				return err
			}
			continue
		}
		n.applyGroup(rec, group)
	}
	return nil
}

// ensureGroupBestEffort is ensureGroup with per-member isolation: one member
// failing does not stop the others. It returns one error per failed member.
func (l *List) ensureGroupBestEffort(ctx context.Context, group fetch.FieldGroup) []error {
	var errs []error
	for _, n := range l.neurons {
		if n.Populated(group) {
			continue
		}
		if err := n.fetchGroup(ctx, group); err != nil {
			errs = append(errs, fmt.Errorf("skeleton %d: %w", n.SkeletonID(), err))
		}
	}
	return errs
}

// Names returns every member's name, aligned with member order. Members with
// the name still unset are fetched in one batched call; the first failure
// aborts the read.
func (l *List) Names(ctx context.Context) ([]string, error) {
	if err := l.ensureGroup(ctx, fetch.GroupName); err != nil {
		return nil, err
	}
	out := make([]string, len(l.neurons))
	for i, n := range l.neurons {
		out[i] = n.name
	}
	return out, nil
}

// NamesBestEffort is Names without fail-fast: slots of members whose fetch
// failed hold the empty string, and the collected failures are returned
// joined alongside the partial result.
func (l *List) NamesBestEffort(ctx context.Context) ([]string, error) {
	errs := l.ensureGroupBestEffort(ctx, fetch.GroupName)
	out := make([]string, len(l.neurons))
	for i, n := range l.neurons {
		if n.nameState == populated {
			out[i] = n.name
		}
	}
	return out, errors.Join(errs...)
}

// ReviewStatuses returns every member's review status, aligned with member
// order. Fails fast.
func (l *List) ReviewStatuses(ctx context.Context) ([]models.ReviewStatus, error) {
	if err := l.ensureGroup(ctx, fetch.GroupReview); err != nil {
		return nil, err
	}
	out := make([]models.ReviewStatus, len(l.neurons))
	for i, n := range l.neurons {
		out[i] = n.review
	}
	return out, nil
}

// Annotations returns every member's annotations, aligned with member order.
// Fails fast.
func (l *List) Annotations(ctx context.Context) ([][]models.Annotation, error) {
	if err := l.ensureGroup(ctx, fetch.GroupAnnotations); err != nil {
		return nil, err
	}
	out := make([][]models.Annotation, len(l.neurons))
	for i, n := range l.neurons {
		out[i] = n.annotations
	}
	return out, nil
}

// NodeCounts returns every member's treenode count, aligned with member
// order, fetching skeleton data where needed. Fails fast.
func (l *List) NodeCounts(ctx context.Context) ([]int, error) {
	if err := l.ensureGroup(ctx, fetch.GroupSkeleton); err != nil {
		return nil, err
	}
	out := make([]int, len(l.neurons))
	for i, n := range l.neurons {
		out[i] = len(n.nodes)
	}
	return out, nil
}

// FilterByAnnotation returns a new list holding the members annotated with
// the given name, in their original relative order. The receiver is never
// modified; members are shared, not copied.
func (l *List) FilterByAnnotation(ctx context.Context, name string) (*List, error) {
	if err := l.ensureGroup(ctx, fetch.GroupAnnotations); err != nil {
		return nil, err
	}
	var kept []*Neuron
	for _, n := range l.neurons {
		for _, a := range n.annotations {
			if a.Name == name {
				kept = append(kept, n)
				break
			}
		}
	}
	return NewList(kept...), nil
}

// Filter returns a new list holding the members for which keep returns true,
// in their original relative order. No fetches are triggered; the predicate
// decides what it needs.
func (l *List) Filter(keep func(*Neuron) bool) *List {
	var kept []*Neuron
	for _, n := range l.neurons {
		if keep(n) {
			kept = append(kept, n)
		}
	}
	return NewList(kept...)
}

// GetMany bulk-fetches the skeleton group for the given IDs and returns a
// list of pre-populated neurons in input order.
func GetMany(ctx context.Context, fetcher fetch.Fetcher, ids []int64) (*List, error) {
	recs, err := fetcher.FetchFields(ctx, ids, fetch.GroupSkeleton)
	if err != nil {
		return nil, err
	}
	neurons := make([]*Neuron, len(ids))
	for i, id := range ids {
		n := New(id, fetcher)
		if rec, ok := recs[id]; ok {
			n.applyGroup(rec, fetch.GroupSkeleton)
		} else if err := n.fetchGroup(ctx, fetch.GroupSkeleton); err != nil {
			return nil, err
		}
		neurons[i] = n
	}
	return NewList(neurons...), nil
}
