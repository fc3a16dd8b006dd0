package swc

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// Skeleton with non-contiguous IDs: root 100 (soma), branch at 200, leaves
// 300 and 400.
func sampleSkeleton() (models.TreenodeTable, models.Tags) {
	nodes := models.TreenodeTable{
		{ID: 100, ParentID: models.RootParent, X: 0, Y: 0, Z: 0, Radius: 150, Confidence: 5},
		{ID: 200, ParentID: 100, X: 10, Y: 0, Z: 0, Radius: -1, Confidence: 5},
		{ID: 300, ParentID: 200, X: 20, Y: 5, Z: 0, Radius: -1, Confidence: 5},
		{ID: 400, ParentID: 200, X: 20, Y: -5, Z: 0, Radius: -1, Confidence: 5},
	}
	tags := models.Tags{models.SomaTag: {100}}
	return nodes, tags
}

func TestEncode_RemapsIDs(t *testing.T) {
	nodes, tags := sampleSkeleton()

	var buf bytes.Buffer
	mapping, err := Encode(&buf, nodes, tags, Options{})
	require.NoError(t, err)

	require.Len(t, mapping, 4)
	assert.Equal(t, int64(1), mapping[100], "root maps to 1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	// Root row: PointNo 1, soma label, parent -1.
	root := strings.Fields(lines[0])
	assert.Equal(t, []string{"1", "1", "0", "0", "0", "150", "-1"}, root)

	// Every parent reference points at an earlier row.
	seen := map[string]bool{"-1": true}
	for _, line := range lines {
		cols := strings.Fields(line)
		require.Len(t, cols, 7)
		assert.True(t, seen[cols[6]], "parent %s written after child", cols[6])
		seen[cols[0]] = true
	}
}

func TestEncode_Labels(t *testing.T) {
	nodes, tags := sampleSkeleton()
	connectors := models.ConnectorTable{
		{TreenodeID: 300, ConnectorID: 7, Relation: models.Presynaptic},
		{TreenodeID: 400, ConnectorID: 8, Relation: models.Postsynaptic},
	}

	var buf bytes.Buffer
	mapping, err := Encode(&buf, nodes, tags, Options{
		ExportSynapses: true,
		Connectors:     connectors,
	})
	require.NoError(t, err)

	labels := map[int64]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		cols := strings.Fields(line)
		for old, remapped := range mapping {
			if cols[0] == strconv.FormatInt(remapped, 10) {
				labels[old] = cols[1]
			}
		}
	}
	assert.Equal(t, "1", labels[100], "soma")
	assert.Equal(t, "5", labels[200], "branch point")
	assert.Equal(t, "7", labels[300], "presynaptic leaf")
	assert.Equal(t, "8", labels[400], "postsynaptic leaf")
}

func TestEncode_MinRadius(t *testing.T) {
	nodes, tags := sampleSkeleton()

	var buf bytes.Buffer
	_, err := Encode(&buf, nodes, tags, Options{MinRadius: 70})
	require.NoError(t, err)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		cols := strings.Fields(line)
		assert.NotEqual(t, "-1", cols[5], "radius floor applies")
	}
}

func TestEncode_UnreachableNodes(t *testing.T) {
	nodes := models.TreenodeTable{
		{ID: 1, ParentID: models.RootParent},
		{ID: 5, ParentID: 99}, // 99 is not in the table
	}
	var buf bytes.Buffer
	_, err := Encode(&buf, nodes, nil, Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "unreachable")
}

func TestEncode_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, nil, nil, Options{})
	require.Error(t, err)
}

func TestDecode(t *testing.T) {
	input := `# exported from somewhere
# second header line
1 1 0.0 0.0 0.0 150.0 -1
2 0 10.0 0.0 0.0 -1.0 1
3 6 20.0 5.0 0.0 -1.0 2
`
	res, err := Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"exported from somewhere", "second header line"}, res.Header)
	require.Len(t, res.Nodes, 3)
	assert.Equal(t, models.RootParent, res.Nodes[0].ParentID)
	assert.Equal(t, int64(1), res.Nodes[1].ParentID)
	assert.Equal(t, 5, res.Nodes[0].Confidence, "decoded nodes carry the default confidence")

	assert.Equal(t, []int64{1}, res.Tags[models.SomaTag])
	assert.Equal(t, []int64{3}, res.Tags["6"])
}

func TestDecode_SomaInferredFromRadius(t *testing.T) {
	input := "1 0 0 0 0 200.0 -1\n2 0 1 1 1 -1.0 1\n"
	res, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, res.Tags[models.SomaTag])
}

func TestDecode_BadInput(t *testing.T) {
	_, err := Decode(strings.NewReader("1 0 0 0\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "columns")

	_, err = Decode(strings.NewReader("# only comments\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "no data rows")
}

func TestRoundTrip(t *testing.T) {
	nodes, tags := sampleSkeleton()

	var buf bytes.Buffer
	mapping, err := Encode(&buf, nodes, tags, Options{Header: []string{"round trip"}})
	require.NoError(t, err)

	res, err := Decode(&buf)
	require.NoError(t, err)

	require.Len(t, res.Nodes, len(nodes))
	assert.Equal(t, []string{"round trip"}, res.Header)

	// Coordinates survive under the remapped IDs.
	byNew := map[int64]models.Treenode{}
	for _, node := range res.Nodes {
		byNew[node.ID] = node
	}
	for _, orig := range nodes {
		decoded, ok := byNew[mapping[orig.ID]]
		require.True(t, ok)
		assert.Equal(t, orig.X, decoded.X)
		assert.Equal(t, orig.Y, decoded.Y)
		assert.Equal(t, orig.Z, decoded.Z)
	}
	assert.Equal(t, []int64{mapping[100]}, res.Tags[models.SomaTag])
}
