package neuron

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

func TestJSON_RoundTripPreservesPopulationState(t *testing.T) {
	ctx := context.Background()
	m := twoNeuronFetcher(t)

	full := FromRecord(16, testRecord("full"), m)
	bare := New(27295, m)

	data, err := EncodeJSON(NewList(full, bare))
	require.NoError(t, err)

	decodedFetcher := twoNeuronFetcher(t)
	decoded, err := DecodeJSON(data, decodedFetcher)
	require.NoError(t, err)
	require.Equal(t, 2, decoded.Len())

	first, err := decoded.At(0)
	require.NoError(t, err)
	assert.True(t, first.Populated(fetch.GroupSkeleton))
	assert.True(t, first.Populated(fetch.GroupName))

	name, err := first.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "full", name)
	nodes, err := first.Nodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
	assert.Equal(t, 0, decodedFetcher.TotalCalls(), "populated fields decode without fetching")

	// The bare member stays bare and lazily fetchable.
	second, err := decoded.At(1)
	require.NoError(t, err)
	assert.False(t, second.Populated(fetch.GroupName))
	name, err = second.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PN right", name)
}

func TestJSON_RoundTripKeepsEmptyTablesPopulated(t *testing.T) {
	ctx := context.Background()
	m := fetch.NewMockFetcher()
	n := New(16, m)
	n.SetNodes(models.TreenodeTable{{ID: 1, ParentID: models.RootParent}})
	n.SetConnectors(models.ConnectorTable{})
	n.SetTags(models.Tags{})

	data, err := EncodeJSON(NewList(n))
	require.NoError(t, err)

	decoded, err := DecodeJSON(data, m)
	require.NoError(t, err)
	got, err := decoded.At(0)
	require.NoError(t, err)

	// An empty table is populated data, not an unset field; reading it back
	// must not go to the server.
	assert.True(t, got.Populated(fetch.GroupSkeleton))
	connectors, err := got.Connectors(ctx)
	require.NoError(t, err)
	assert.Empty(t, connectors)
	tags, err := got.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, 0, m.TotalCalls())
}

func TestJSON_DerivedFieldsNeverSerialized(t *testing.T) {
	ctx := context.Background()
	n := New(16, seededFetcher(t, 16))
	_, err := n.Graph(ctx)
	require.NoError(t, err)
	_, err = n.Segments(ctx)
	require.NoError(t, err)

	data, err := EncodeJSON(NewList(n))
	require.NoError(t, err)

	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "graph")
	assert.NotContains(t, entries[0], "segments")
	assert.Contains(t, entries[0], "skeleton_id")
}

func TestJSON_MissingSkeletonID(t *testing.T) {
	_, err := DecodeJSON([]byte(`[{"name": "anonymous"}]`), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "skeleton_id")
}

func TestJSON_Malformed(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"not": "a list"}`), nil)
	require.Error(t, err)
}
