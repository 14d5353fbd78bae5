package graph

import "cpp2puml/internal/extractor"

type RelationKind string

const (
	RelationInheritance RelationKind = "inheritance"
	RelationComposition RelationKind = "composition"
	RelationAssociation RelationKind = "association"
	RelationDependency  RelationKind = "dependency"
	RelationNesting     RelationKind = "nesting"
)

type UnresolvedReason string

const (
	ReasonNoCandidate UnresolvedReason = "no_candidate"
	ReasonAmbiguous   UnresolvedReason = "ambiguous"
)

// Node is one class in the graph, keyed by its scoped name.
type Node struct {
	Key   string                 `json:"key"`
	ID    string                 `json:"id"`
	Class *extractor.ClassEntity `json:"class"`
}

// Edge is a resolved relationship between two nodes.
type Edge struct {
	From    string           `json:"from"`
	To      string           `json:"to"`
	Kind    RelationKind     `json:"kind"`
	Access  extractor.Access `json:"access,omitempty"`
	Virtual bool             `json:"virtual,omitempty"`
	Many    bool             `json:"many,omitempty"`
	Via     string           `json:"via,omitempty"`
}

// Unresolved is a type reference that did not resolve to exactly one class.
type Unresolved struct {
	From   string           `json:"from"`
	Type   string           `json:"type"`
	Reason UnresolvedReason `json:"reason"`
}
