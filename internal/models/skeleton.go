// Package models defines the tabular data types a CATMAID server hands back
// for a skeleton: the treenode table, the connector table, node tags and
// annotations. These are plain row-per-record structures so that external
// morphology tooling can consume and replace them wholesale.
package models

// Treenode is one row of a skeleton's node table.
type Treenode struct {
	ID         int64   `json:"id"`
	ParentID   int64   `json:"parent_id"` // RootParent for the root node
	CreatorID  int64   `json:"creator_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Radius     float64 `json:"radius"` // -1 when unmeasured
	Confidence int     `json:"confidence"`
}

// RootParent is the parent_id sentinel marking a skeleton's root node.
const RootParent int64 = -1

// IsRoot returns true if the node has no parent.
func (t Treenode) IsRoot() bool { return t.ParentID == RootParent }

// TreenodeTable is an ordered node table, one row per treenode.
type TreenodeTable []Treenode

// Clone returns a deep copy of the table.
func (tt TreenodeTable) Clone() TreenodeTable {
	if tt == nil {
		return nil
	}
	out := make(TreenodeTable, len(tt))
	copy(out, tt)
	return out
}

// Index maps treenode ID to row position. First position wins on duplicates.
func (tt TreenodeTable) Index() map[int64]int {
	idx := make(map[int64]int, len(tt))
	for i := range tt {
		if _, ok := idx[tt[i].ID]; !ok {
			idx[tt[i].ID] = i
		}
	}
	return idx
}

// Root returns the first root node in the table, or false if none exists.
func (tt TreenodeTable) Root() (Treenode, bool) {
	for i := range tt {
		if tt[i].IsRoot() {
			return tt[i], true
		}
	}
	return Treenode{}, false
}

// Relation classifies how a treenode participates in a connector.
type Relation int

const (
	Presynaptic  Relation = 0
	Postsynaptic Relation = 1
	GapJunction  Relation = 2
	Abutting     Relation = 3
)

// IsValid returns true if the relation code is recognized.
func (r Relation) IsValid() bool {
	return r >= Presynaptic && r <= Abutting
}

func (r Relation) String() string {
	switch r {
	case Presynaptic:
		return "presynaptic"
	case Postsynaptic:
		return "postsynaptic"
	case GapJunction:
		return "gap_junction"
	case Abutting:
		return "abutting"
	}
	return "unknown"
}

// Connector is one row of a skeleton's connector table: a link between a
// treenode and a synaptic connector object.
type Connector struct {
	TreenodeID  int64    `json:"treenode_id"`
	ConnectorID int64    `json:"connector_id"`
	Relation    Relation `json:"relation"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Z           float64  `json:"z"`
}

// ConnectorTable is an ordered connector table, one row per link.
type ConnectorTable []Connector

// Clone returns a deep copy of the table.
func (ct ConnectorTable) Clone() ConnectorTable {
	if ct == nil {
		return nil
	}
	out := make(ConnectorTable, len(ct))
	copy(out, ct)
	return out
}

// Presynapses returns the rows with a presynaptic relation, in table order.
func (ct ConnectorTable) Presynapses() ConnectorTable {
	return ct.withRelation(Presynaptic)
}

// Postsynapses returns the rows with a postsynaptic relation, in table order.
func (ct ConnectorTable) Postsynapses() ConnectorTable {
	return ct.withRelation(Postsynaptic)
}

func (ct ConnectorTable) withRelation(r Relation) ConnectorTable {
	var out ConnectorTable
	for i := range ct {
		if ct[i].Relation == r {
			out = append(out, ct[i])
		}
	}
	return out
}

// Tags maps a tag label to the treenode IDs carrying it.
type Tags map[string][]int64

// SomaTag is the label CATMAID uses to mark a skeleton's soma node.
const SomaTag = "soma"

// Clone returns a deep copy of the tag map.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		ids := make([]int64, len(v))
		copy(ids, v)
		out[k] = ids
	}
	return out
}

// Annotation is a named label attached to a skeleton on the server.
type Annotation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ReviewStatus is the reviewed/total node count for a skeleton.
type ReviewStatus struct {
	Reviewed int `json:"reviewed"`
	Total    int `json:"total"`
}

// Percent returns the reviewed fraction in percent, 0 for an empty skeleton.
func (rs ReviewStatus) Percent() float64 {
	if rs.Total == 0 {
		return 0
	}
	return 100 * float64(rs.Reviewed) / float64(rs.Total)
}
