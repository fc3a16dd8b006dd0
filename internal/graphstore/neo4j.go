// Package graphstore exports skeleton graphs to a Neo4j database, one
// Treenode node per skeleton row with PARENT_OF edges along the tree and
// SYNAPSES_TO edges from the connector table. Writes are MERGE-based and
// safe to repeat.
package graphstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/catmaid-go/internal/metrics"
	"github.com/ajitpratap0/catmaid-go/internal/models"
	"github.com/ajitpratap0/catmaid-go/internal/neuron"
)

// Exporter writes neurons into Neo4j.
type Exporter struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

// NewExporter connects to Neo4j and verifies the connection.
func NewExporter(ctx context.Context, uri, user, password string, logger *slog.Logger) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connecting to Neo4j at %s: %w", uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying Neo4j connection at %s: %w", uri, err)
	}
	logger.Info("connected to Neo4j", "uri", uri)
	return &Exporter{driver: driver, logger: logger}, nil
}

// ExportNeuron writes one neuron's treenodes, tree edges and synaptic links.
// Skeleton data is fetched lazily if the neuron does not hold it yet.
func (e *Exporter) ExportNeuron(ctx context.Context, n *neuron.Neuron) error {
	nodes, err := n.Nodes(ctx)
	if err != nil {
		return err
	}
	connectors, err := n.Connectors(ctx)
	if err != nil {
		return err
	}

	if err := e.writeTreenodes(ctx, n.SkeletonID(), nodes); err != nil {
		return err
	}
	if err := e.writeConnectors(ctx, n.SkeletonID(), connectors); err != nil {
		return err
	}

	metrics.Inc(metrics.GraphExports)
	e.logger.Info("exported skeleton graph",
		"skeleton", n.SkeletonID(), "nodes", len(nodes), "connectors", len(connectors))
	return nil
}

func (e *Exporter) writeTreenodes(ctx context.Context, skeletonID int64, nodes models.TreenodeTable) error {
	rows := make([]map[string]any, 0, len(nodes))
	for i := range nodes {
		rows = append(rows, map[string]any{
			"id":        nodes[i].ID,
			"parent_id": nodes[i].ParentID,
			"x":         nodes[i].X,
			"y":         nodes[i].Y,
			"z":         nodes[i].Z,
			"radius":    nodes[i].Radius,
		})
	}

	_, err := neo4j.ExecuteQuery(ctx, e.driver, `
		UNWIND $rows AS row
		MERGE (t:Treenode {id: row.id})
		SET t.skeleton_id = $skeleton_id,
		    t.x = row.x, t.y = row.y, t.z = row.z, t.radius = row.radius
		WITH t, row
		WHERE row.parent_id >= 0
		MERGE (p:Treenode {id: row.parent_id})
		MERGE (p)-[:PARENT_OF]->(t)`,
		map[string]any{"rows": rows, "skeleton_id": skeletonID},
		neo4j.EagerResultTransformer)
	if err != nil {
		return fmt.Errorf("writing treenodes for skeleton %d: %w", skeletonID, err)
	}
	return nil
}

func (e *Exporter) writeConnectors(ctx context.Context, skeletonID int64, connectors models.ConnectorTable) error {
	rows := make([]map[string]any, 0, len(connectors))
	for i := range connectors {
		rows = append(rows, map[string]any{
			"treenode_id":  connectors[i].TreenodeID,
			"connector_id": connectors[i].ConnectorID,
			"relation":     connectors[i].Relation.String(),
		})
	}

	_, err := neo4j.ExecuteQuery(ctx, e.driver, `
		UNWIND $rows AS row
		MERGE (t:Treenode {id: row.treenode_id})
		MERGE (c:Connector {id: row.connector_id})
		MERGE (t)-[s:SYNAPSES_TO]->(c)
		SET s.relation = row.relation`,
		map[string]any{"rows": rows},
		neo4j.EagerResultTransformer)
	if err != nil {
		return fmt.Errorf("writing connectors for skeleton %d: %w", skeletonID, err)
	}
	return nil
}

// Close releases the driver.
func (e *Exporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}
