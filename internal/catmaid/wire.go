package catmaid

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ajitpratap0/catmaid-go/internal/models"
)

// compactSkeleton is the payload of the compact-skeleton endpoint: a
// three-element array of node rows, connector rows and the tag map. Rows are
// positional arrays, not objects.
type compactSkeleton struct {
	Nodes      models.TreenodeTable
	Connectors models.ConnectorTable
	Tags       models.Tags
}

func (c *compactSkeleton) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("compact-skeleton envelope: %w", err)
	}
	if len(parts) < 3 {
		return fmt.Errorf("compact-skeleton envelope has %d parts, want 3", len(parts))
	}

	nodes, err := decodeRows(parts[0])
	if err != nil {
		return fmt.Errorf("node table: %w", err)
	}
	c.Nodes = make(models.TreenodeTable, 0, len(nodes))
	for i, row := range nodes {
		node, err := decodeTreenode(row)
		if err != nil {
			return fmt.Errorf("node row %d: %w", i, err)
		}
		c.Nodes = append(c.Nodes, node)
	}

	connectors, err := decodeRows(parts[1])
	if err != nil {
		return fmt.Errorf("connector table: %w", err)
	}
	c.Connectors = make(models.ConnectorTable, 0, len(connectors))
	for i, row := range connectors {
		conn, err := decodeConnector(row)
		if err != nil {
			return fmt.Errorf("connector row %d: %w", i, err)
		}
		c.Connectors = append(c.Connectors, conn)
	}

	c.Tags = models.Tags{}
	if err := json.Unmarshal(parts[2], &c.Tags); err != nil {
		return fmt.Errorf("tag map: %w", err)
	}
	return nil
}

// decodeRows parses a positional table into rows of json.Number / nil cells.
func decodeRows(data json.RawMessage) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Columns of a compact-skeleton node row:
// id, parent_id (null for root), user_id, x, y, z, radius, confidence.
func decodeTreenode(row []any) (models.Treenode, error) {
	if len(row) < 8 {
		return models.Treenode{}, fmt.Errorf("has %d columns, want 8", len(row))
	}
	var (
		node models.Treenode
		err  error
	)
	if node.ID, err = cellInt64(row[0]); err != nil {
		return models.Treenode{}, fmt.Errorf("id: %w", err)
	}
	if row[1] == nil {
		node.ParentID = models.RootParent
	} else if node.ParentID, err = cellInt64(row[1]); err != nil {
		return models.Treenode{}, fmt.Errorf("parent_id: %w", err)
	}
	if node.CreatorID, err = cellInt64(row[2]); err != nil {
		return models.Treenode{}, fmt.Errorf("user_id: %w", err)
	}
	if node.X, err = cellFloat(row[3]); err != nil {
		return models.Treenode{}, fmt.Errorf("x: %w", err)
	}
	if node.Y, err = cellFloat(row[4]); err != nil {
		return models.Treenode{}, fmt.Errorf("y: %w", err)
	}
	if node.Z, err = cellFloat(row[5]); err != nil {
		return models.Treenode{}, fmt.Errorf("z: %w", err)
	}
	if node.Radius, err = cellFloat(row[6]); err != nil {
		return models.Treenode{}, fmt.Errorf("radius: %w", err)
	}
	conf, err := cellInt64(row[7])
	if err != nil {
		return models.Treenode{}, fmt.Errorf("confidence: %w", err)
	}
	node.Confidence = int(conf)
	return node, nil
}

// Columns of a compact-skeleton connector row:
// treenode_id, connector_id, relation_id, x, y, z.
func decodeConnector(row []any) (models.Connector, error) {
	if len(row) < 6 {
		return models.Connector{}, fmt.Errorf("has %d columns, want 6", len(row))
	}
	var (
		conn models.Connector
		err  error
	)
	if conn.TreenodeID, err = cellInt64(row[0]); err != nil {
		return models.Connector{}, fmt.Errorf("treenode_id: %w", err)
	}
	if conn.ConnectorID, err = cellInt64(row[1]); err != nil {
		return models.Connector{}, fmt.Errorf("connector_id: %w", err)
	}
	rel, err := cellInt64(row[2])
	if err != nil {
		return models.Connector{}, fmt.Errorf("relation: %w", err)
	}
	conn.Relation = models.Relation(rel)
	if conn.X, err = cellFloat(row[3]); err != nil {
		return models.Connector{}, fmt.Errorf("x: %w", err)
	}
	if conn.Y, err = cellFloat(row[4]); err != nil {
		return models.Connector{}, fmt.Errorf("y: %w", err)
	}
	if conn.Z, err = cellFloat(row[5]); err != nil {
		return models.Connector{}, fmt.Errorf("z: %w", err)
	}
	return conn, nil
}

func cellInt64(v any) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("cell %v is not a number", v)
	}
	return num.Int64()
}

func cellFloat(v any) (float64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("cell %v is not a number", v)
	}
	return num.Float64()
}

// decodeBody unmarshals a response body, treating an empty body as an empty
// JSON object so endpoints with no payload decode cleanly.
func decodeBody(raw []byte, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// annotationsForSkeletons is the payload of the annotations/forskeletons
// endpoint: an annotation ID to name map plus per-skeleton annotation refs.
type annotationsForSkeletons struct {
	Annotations map[string]string `json:"annotations"`
	Skeletons   map[string][]struct {
		ID  int64 `json:"id"`
		UID int64 `json:"uid"`
	} `json:"skeletons"`
}
