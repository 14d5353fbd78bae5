package retrieval

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cpp2puml/internal/graph"
)

var ErrUnknownKind = errors.New("unknown relationship kind")

var relationKinds = []graph.RelationKind{
	graph.RelationInheritance,
	graph.RelationComposition,
	graph.RelationAssociation,
	graph.RelationDependency,
	graph.RelationNesting,
}

// Config controls how focus subgraphs are extracted.
type Config struct {
	MaxHops      int
	AllowedKinds map[graph.RelationKind]bool
}

func DefaultConfig() Config {
	return Config{
		MaxHops:      1,
		AllowedKinds: nil,
	}
}

// ParseKinds turns relationship kind names into an AllowedKinds set. No
// names allow every kind.
func ParseKinds(names []string) (map[graph.RelationKind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	allowed := make(map[graph.RelationKind]bool, len(names))
	for _, name := range names {
		kind := graph.RelationKind(strings.ToLower(strings.TrimSpace(name)))
		known := false
		for _, k := range relationKinds {
			known = known || k == kind
		}
		if !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
		}
		allowed[kind] = true
	}
	return allowed, nil
}

// Subgraph is the part of a graph around a set of seed classes.
type Subgraph struct {
	SeedIDs []string
	// Missing lists seed names that matched no class.
	Missing []string
	// Depth is the hop distance of every included node key from the nearest seed.
	Depth map[string]int
	Graph *graph.Graph
}

// Focus collects the classes within cfg.MaxHops relationships of the named
// seeds, following edges in either direction. The returned graph keeps the
// declaration order of g and every edge of g between two included classes.
func Focus(g *graph.Graph, names []string, cfg Config) *Subgraph {
	if g == nil {
		return &Subgraph{Graph: graph.NewGraph()}
	}
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	seedSet, missing := findSeedKeys(g, names)
	seedIDs := sortedKeys(seedSet)

	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if !edgeAllowed(e, cfg) {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}

	visitedDepth := make(map[string]int, len(seedIDs))
	queue := make([]queueItem, 0, len(seedIDs))
	for _, id := range seedIDs {
		visitedDepth[id] = 0
		queue = append(queue, queueItem{id: id, depth: 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, next := range adj[cur.id] {
			nextDepth := cur.depth + 1
			prevDepth, seen := visitedDepth[next]
			if !seen || nextDepth < prevDepth {
				visitedDepth[next] = nextDepth
				queue = append(queue, queueItem{id: next, depth: nextDepth})
			}
		}
	}

	sub := graph.NewGraph()
	for _, key := range g.Order {
		if _, ok := visitedDepth[key]; ok {
			sub.AddClass(g.Nodes[key].Class)
		}
	}
	for _, e := range g.Edges {
		_, from := visitedDepth[e.From]
		_, to := visitedDepth[e.To]
		if from && to && edgeAllowed(e, cfg) {
			sub.Edges = append(sub.Edges, e)
		}
	}

	return &Subgraph{
		SeedIDs: seedIDs,
		Missing: missing,
		Depth:   visitedDepth,
		Graph:   sub,
	}
}

type queueItem struct {
	id    string
	depth int
}

// findSeedKeys resolves each name as a qualified name first and falls back
// to every class with that unqualified name.
func findSeedKeys(g *graph.Graph, names []string) (map[string]int, []string) {
	out := make(map[string]int)
	var missing []string
	for _, name := range names {
		if node := g.Lookup(name); node != nil {
			out[node.Key] = 0
			continue
		}
		found := false
		for _, key := range g.Order {
			if g.Nodes[key].Class.PureName() == name {
				out[key] = 0
				found = true
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	return out, missing
}

func edgeAllowed(e graph.Edge, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Kind]
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
