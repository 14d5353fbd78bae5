package graph

// Stats summarizes a linked graph for reporting.
type Stats struct {
	Classes    int
	Edges      int
	ByKind     map[RelationKind]int
	Unresolved map[UnresolvedReason]int
}

func (g *Graph) Stats() Stats {
	s := Stats{
		ByKind:     make(map[RelationKind]int),
		Unresolved: make(map[UnresolvedReason]int),
	}
	if g == nil {
		return s
	}
	s.Classes = len(g.Nodes)
	s.Edges = len(g.Edges)
	for _, e := range g.Edges {
		s.ByKind[e.Kind]++
	}
	for _, u := range g.Unresolved {
		s.Unresolved[u.Reason]++
	}
	return s
}
