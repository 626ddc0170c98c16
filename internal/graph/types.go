package graph

type RelationKind string

const (
	RelationCalls     RelationKind = "calls"
	RelationUsesType  RelationKind = "uses_type"
	RelationReads     RelationKind = "reads"
	RelationIncludes  RelationKind = "includes"
	RelationBelongsTo RelationKind = "belongs_to"
)

type UnresolvedReason string

const (
	ReasonNoCandidate   UnresolvedReason = "no_candidate"
	ReasonSourceMissing UnresolvedReason = "source_missing"
)

type NodeKind string

const (
	NodeUnit      NodeKind = "unit"
	NodeClass     NodeKind = "class"
	NodeInterface NodeKind = "interface"
	NodeTrait     NodeKind = "trait"
	NodeEnum      NodeKind = "enum"
	NodeFunction  NodeKind = "function"
	NodeMethod    NodeKind = "method"
	NodeConstant  NodeKind = "constant"
	NodeProperty  NodeKind = "property"
	NodeVariable  NodeKind = "variable"
)

// Container reports whether uses inside a node of kind k are attributed to it.
func (k NodeKind) Container() bool {
	switch k {
	case NodeClass, NodeInterface, NodeTrait, NodeEnum, NodeFunction, NodeMethod:
		return true
	}
	return false
}

// Node is one declaration of the analyzed project, or a whole unit.
// StartLine and EndLine cover the full declaration, not just its name.
type Node struct {
	ID          string   `json:"id"`
	Unit        string   `json:"unit"`
	Kind        NodeKind `json:"kind"`
	Name        string   `json:"name"`
	Qualified   string   `json:"qualified"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	Type        string   `json:"type,omitempty"`
	ContentHash string   `json:"content_hash"`
	Deprecated  bool     `json:"deprecated,omitempty"`
}

type Evidence struct {
	Filepath  string `json:"filepath,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// Edge is a directed dependency: From uses To.
type Edge struct {
	From       string       `json:"from"`
	To         string       `json:"to"`
	Kind       RelationKind `json:"kind"`
	Confidence float64      `json:"confidence,omitempty"`
	Evidence   Evidence     `json:"evidence,omitempty"`
}

// UnresolvedRelation is a use whose name matched no declaration.
type UnresolvedRelation struct {
	From     string           `json:"from"`
	Target   string           `json:"target"`
	Kind     RelationKind     `json:"kind"`
	Reason   UnresolvedReason `json:"reason"`
	Evidence Evidence         `json:"evidence,omitempty"`
}
