package graph

import (
	"strings"

	"cpp2puml/internal/extractor"
)

// Graph manages classes and their relationships.
type Graph struct {
	Nodes      map[string]*Node
	Order      []string
	Edges      []Edge
	Unresolved []Unresolved

	// Index for name lookup: qualified name -> keys, last component -> keys.
	// Keys are listed in declaration order.
	qualifiedIndex map[string][]string
	shortIndex     map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:          make(map[string]*Node),
		Edges:          []Edge{},
		qualifiedIndex: make(map[string][]string),
		shortIndex:     make(map[string][]string),
	}
}

// Key is the graph key of a class: its enclosing scopes and full name,
// template arguments of a specialization included.
func Key(c *extractor.ClassEntity) string {
	scope := c.Scope()
	if len(scope) == 0 {
		return c.Name
	}
	return strings.Join(scope, "::") + "::" + c.Name
}

// AddClass adds a class as a node and indexes it. The first definition of a
// key wins; AddClass reports whether c was added.
func (g *Graph) AddClass(c *extractor.ClassEntity) bool {
	if c == nil || c.Name == "" {
		return false
	}
	key := Key(c)
	if _, exists := g.Nodes[key]; exists {
		return false
	}
	g.Nodes[key] = &Node{Key: key, ID: extractor.BuildClassID(c), Class: c}
	g.Order = append(g.Order, key)

	qualified := c.QualifiedName()
	g.qualifiedIndex[qualified] = append(g.qualifiedIndex[qualified], key)
	short := c.PureName()
	g.shortIndex[short] = append(g.shortIndex[short], key)
	return true
}

// Classes returns the classes in insertion order.
func (g *Graph) Classes() []*extractor.ClassEntity {
	out := make([]*extractor.ClassEntity, 0, len(g.Order))
	for _, key := range g.Order {
		out = append(out, g.Nodes[key].Class)
	}
	return out
}

// LinkRelations resolves the raw type strings of every class against the
// classes known to the graph and rebuilds Edges. Unknown targets produce no
// edge and are recorded in Unresolved.
func (g *Graph) LinkRelations() {
	g.Edges = []Edge{}
	g.Unresolved = nil
	seen := make(map[edgeKey]bool)
	add := func(e Edge) {
		k := edgeKey{e.From, e.To, e.Kind}
		if seen[k] {
			return
		}
		seen[k] = true
		g.Edges = append(g.Edges, e)
	}

	for _, key := range g.Order {
		c := g.Nodes[key].Class

		for _, base := range c.Bases {
			ref := ParseTypeRef(base.Type)
			if target := g.resolve(ref.Name, c); target != "" {
				add(Edge{From: key, To: target, Kind: RelationInheritance, Access: base.Access, Virtual: base.Virtual})
			}
		}

		if c.Outer != "" {
			if outers := g.qualifiedIndex[c.Outer]; len(outers) > 0 {
				add(Edge{From: outers[0], To: key, Kind: RelationNesting})
			}
		}

		linked := make(map[string]bool)
		for _, m := range c.Fields() {
			for _, hit := range Classify(ParseTypeRef(m.Type)) {
				target := g.resolve(hit.Name, c)
				if target == "" {
					continue
				}
				linked[target] = true
				add(Edge{From: key, To: target, Kind: hit.Kind, Many: hit.Many, Via: m.Name})
			}
		}

		for _, m := range c.Methods() {
			types := append([]string{m.Type}, m.Params...)
			for _, t := range types {
				for _, name := range Names(ParseTypeRef(t)) {
					target := g.resolve(name, c)
					if target == "" || target == key || linked[target] {
						continue
					}
					add(Edge{From: key, To: target, Kind: RelationDependency, Via: m.Name})
				}
			}
		}
	}
}

type edgeKey struct {
	from, to string
	kind     RelationKind
}

// resolve finds the key of the class a name refers to from inside holder:
// first relative to each enclosing scope of holder (innermost first), then
// as a global qualified name, then by its last component.
func (g *Graph) resolve(name string, holder *extractor.ClassEntity) string {
	if name == "" {
		return ""
	}
	name = strings.TrimPrefix(name, "::")
	if g.isTemplateParam(name, holder) {
		return ""
	}

	scopes := append(append([]string(nil), holder.Scope()...), holder.PureName())
	for i := len(scopes); i >= 0; i-- {
		candidate := name
		if i > 0 {
			candidate = strings.Join(scopes[:i], "::") + "::" + name
		}
		if keys := g.qualifiedIndex[candidate]; len(keys) > 0 {
			return keys[0]
		}
	}

	short := name
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		short = name[idx+2:]
	}
	keys := g.shortIndex[short]
	switch {
	case len(keys) == 0:
		g.Unresolved = append(g.Unresolved, Unresolved{From: Key(holder), Type: name, Reason: ReasonNoCandidate})
		return ""
	case len(keys) > 1:
		g.Unresolved = append(g.Unresolved, Unresolved{From: Key(holder), Type: name, Reason: ReasonAmbiguous})
	}
	return keys[0]
}

// isTemplateParam reports whether name is a template parameter of holder or
// of a class enclosing it.
func (g *Graph) isTemplateParam(name string, holder *extractor.ClassEntity) bool {
	for c, hops := holder, 0; c != nil && hops < 64; hops++ {
		for _, param := range c.TemplateParams {
			if param == name {
				return true
			}
		}
		outers := g.qualifiedIndex[c.Outer]
		if c.Outer == "" || len(outers) == 0 {
			return false
		}
		c = g.Nodes[outers[0]].Class
	}
	return false
}

// Lookup resolves a name from global scope.
func (g *Graph) Lookup(name string) *Node {
	if keys := g.qualifiedIndex[strings.TrimPrefix(name, "::")]; len(keys) > 0 {
		return g.Nodes[keys[0]]
	}
	if node, ok := g.Nodes[name]; ok {
		return node
	}
	return nil
}

// GetDependents returns all nodes that have an edge to the given node.
func (g *Graph) GetDependents(key string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == key {
			if node, ok := g.Nodes[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}
