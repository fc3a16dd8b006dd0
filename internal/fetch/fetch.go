// Package fetch defines the contract between lazily populated neuron objects
// and whatever actually talks to the CATMAID server. Neurons depend only on
// the Fetcher interface; the HTTP client, the response cache and the test
// mock all implement it.
package fetch

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// FieldGroup identifies the smallest set of neuron fields a single remote
// call populates. Nodes, connectors and tags come off the wire together.
type FieldGroup int

const (
	GroupSkeleton FieldGroup = iota // nodes + connectors + tags
	GroupName
	GroupAnnotations
	GroupReview
)

// Groups lists every field group, in fetch-cost order.
var Groups = []FieldGroup{GroupSkeleton, GroupName, GroupAnnotations, GroupReview}

func (g FieldGroup) String() string {
	switch g {
	case GroupSkeleton:
		return "skeleton"
	case GroupName:
		return "name"
	case GroupAnnotations:
		return "annotations"
	case GroupReview:
		return "review"
	}
	return fmt.Sprintf("fieldgroup(%d)", int(g))
}

// Record is a partial per-skeleton payload. Only the fields belonging to the
// requested group are set; nil means the fetch did not cover the field, while
// a non-nil empty table means the server returned no rows. The table fields
// carry no omitempty so that distinction survives JSON serialization, which
// the response cache relies on.
type Record struct {
	Name        *string               `json:"name,omitempty"`
	Nodes       models.TreenodeTable  `json:"nodes"`
	Connectors  models.ConnectorTable `json:"connectors"`
	Tags        models.Tags           `json:"tags"`
	Annotations []models.Annotation   `json:"annotations"`
	Review      *models.ReviewStatus  `json:"review,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		Nodes:      r.Nodes.Clone(),
		Connectors: r.Connectors.Clone(),
		Tags:       r.Tags.Clone(),
	}
	if r.Name != nil {
		name := *r.Name
		out.Name = &name
	}
	if r.Annotations != nil {
		out.Annotations = make([]models.Annotation, len(r.Annotations))
		copy(out.Annotations, r.Annotations)
	}
	if r.Review != nil {
		review := *r.Review
		out.Review = &review
	}
	return out
}

// Merge copies the populated fields of other into r.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	if other.Name != nil {
		name := *other.Name
		r.Name = &name
	}
	if other.Nodes != nil {
		r.Nodes = other.Nodes.Clone()
	}
	if other.Connectors != nil {
		r.Connectors = other.Connectors.Clone()
	}
	if other.Tags != nil {
		r.Tags = other.Tags.Clone()
	}
	if other.Annotations != nil {
		r.Annotations = make([]models.Annotation, len(other.Annotations))
		copy(r.Annotations, other.Annotations)
	}
	if other.Review != nil {
		review := *other.Review
		r.Review = &review
	}
}

// Fetcher retrieves one field group for a batch of skeleton IDs in a single
// blocking round trip. The result maps skeleton ID to its partial record; an
// ID missing from both the map and the error means the implementation chose
// not to batch it and the caller should ask again. Implementations do not
// retry; that policy belongs to callers.
type Fetcher interface {
	FetchFields(ctx context.Context, ids []int64, group FieldGroup) (map[int64]*Record, error)
}

// RemoteError wraps a failed round trip to the data source: transport
// failure, unexpected status or an undecodable response body.
type RemoteError struct {
	Op     string // request description, e.g. "compact-skeleton"
	Status int    // HTTP status, 0 when the request never completed
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catmaid: %s returned status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("catmaid: %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// UnknownSkeletonError reports a skeleton ID the server does not know.
type UnknownSkeletonError struct {
	ID int64
}

func (e *UnknownSkeletonError) Error() string {
	return fmt.Sprintf("catmaid: unknown skeleton %d", e.ID)
}
