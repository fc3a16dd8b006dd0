package neuron

import (
	"encoding/json"
	"fmt"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// neuronJSON is the interchange shape for a serialized neuron. Derived
// fields (graph, segments) and the fetcher are never serialized. Population
// state rides on null versus present: an unset table encodes as null, a
// populated empty table as an empty array or object, so the tables must not
// carry omitempty.
type neuronJSON struct {
	SkeletonID  int64                 `json:"skeleton_id"`
	Name        *string               `json:"name,omitempty"`
	Nodes       models.TreenodeTable  `json:"nodes"`
	Connectors  models.ConnectorTable `json:"connectors"`
	Tags        models.Tags           `json:"tags"`
	Annotations []models.Annotation   `json:"annotations"`
	Review      *models.ReviewStatus  `json:"review,omitempty"`
}

// EncodeJSON serializes a list of neurons. Unset fields are omitted so that
// decoding restores the same population state.
func EncodeJSON(l *List) ([]byte, error) {
	out := make([]neuronJSON, 0, l.Len())
	for _, n := range l.neurons {
		entry := neuronJSON{SkeletonID: n.id}
		if n.nameState == populated {
			name := n.name
			entry.Name = &name
		}
		if n.nodesState == populated {
			entry.Nodes = n.nodes
			if entry.Nodes == nil {
				entry.Nodes = models.TreenodeTable{}
			}
		}
		if n.connectorsState == populated {
			entry.Connectors = n.connectors
			if entry.Connectors == nil {
				entry.Connectors = models.ConnectorTable{}
			}
		}
		if n.tagsState == populated {
			entry.Tags = n.tags
			if entry.Tags == nil {
				entry.Tags = models.Tags{}
			}
		}
		if n.annotationsState == populated {
			entry.Annotations = n.annotations
			if entry.Annotations == nil {
				entry.Annotations = []models.Annotation{}
			}
		}
		if n.reviewState == populated {
			review := n.review
			entry.Review = &review
		}
		out = append(out, entry)
	}
	return json.Marshal(out)
}

// DecodeJSON restores a list from EncodeJSON output and attaches the given
// fetcher to every member so unset fields stay lazily fetchable. The fetcher
// itself is never part of the serialized form.
func DecodeJSON(data []byte, fetcher fetch.Fetcher) (*List, error) {
	var entries []neuronJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding neuron json: %w", err)
	}

	neurons := make([]*Neuron, 0, len(entries))
	for i, entry := range entries {
		if entry.SkeletonID == 0 {
			return nil, fmt.Errorf("decoding neuron json: entry %d is missing skeleton_id", i)
		}
		n := New(entry.SkeletonID, fetcher)
		if entry.Name != nil {
			n.SetName(*entry.Name)
		}
		if entry.Nodes != nil {
			n.SetNodes(entry.Nodes)
		}
		if entry.Connectors != nil {
			n.SetConnectors(entry.Connectors)
		}
		if entry.Tags != nil {
			n.SetTags(entry.Tags)
		}
		if entry.Annotations != nil {
			n.annotations = entry.Annotations
			n.annotationsState = populated
		}
		if entry.Review != nil {
			n.review = *entry.Review
			n.reviewState = populated
		}
		neurons = append(neurons, n)
	}
	return NewList(neurons...), nil
}
