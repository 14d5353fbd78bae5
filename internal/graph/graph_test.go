package graph

import (
	"testing"

	"cpp2puml/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) *Graph {
	t.Helper()
	model := extractor.Parse("test.hpp", src)
	return FromFiles(model)
}

func hasEdge(g *Graph, from, to string, kind RelationKind) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestGraph_LinkRelations(t *testing.T) {
	g := build(t, `
namespace app {
class Engine {};
class Wheel {};
class Driver {};
class Vehicle {
public:
	virtual void drive() = 0;
};
class Car : public Vehicle {
	Engine engine;
	std::vector<Wheel> wheels;
	Driver* driver;
	std::shared_ptr<Engine> spare;
public:
	void drive() override;
	void hire(const Driver& d);
	Wheel replace(int index);
};
}
`)

	t.Run("Inheritance", func(t *testing.T) {
		assert.True(t, hasEdge(g, "app::Car", "app::Vehicle", RelationInheritance))
	})

	t.Run("Composition by value and container", func(t *testing.T) {
		assert.True(t, hasEdge(g, "app::Car", "app::Engine", RelationComposition))
		for _, e := range g.Edges {
			if e.From == "app::Car" && e.To == "app::Wheel" && e.Kind == RelationComposition {
				assert.True(t, e.Many, "container-held wheels should be many")
				assert.Equal(t, "wheels", e.Via)
			}
		}
		assert.True(t, hasEdge(g, "app::Car", "app::Wheel", RelationComposition))
	})

	t.Run("Association by pointer and shared_ptr", func(t *testing.T) {
		assert.True(t, hasEdge(g, "app::Car", "app::Driver", RelationAssociation))
		assert.True(t, hasEdge(g, "app::Car", "app::Engine", RelationAssociation))
	})

	t.Run("Dependency suppressed when already linked", func(t *testing.T) {
		assert.False(t, hasEdge(g, "app::Car", "app::Driver", RelationDependency))
		assert.False(t, hasEdge(g, "app::Car", "app::Wheel", RelationDependency))
	})

	t.Run("Dependent lookup", func(t *testing.T) {
		dependents := g.GetDependents("app::Vehicle")
		require.Len(t, dependents, 1)
		assert.Equal(t, "Car", dependents[0].Class.Name)
	})
}

func TestGraph_DependencyFromSignature(t *testing.T) {
	g := build(t, `
struct Request {};
struct Response {};
class Handler {
public:
	Response handle(const Request& req);
	Handler(const Handler& other);
};
`)
	assert.True(t, hasEdge(g, "Handler", "Request", RelationDependency))
	assert.True(t, hasEdge(g, "Handler", "Response", RelationDependency))
	assert.False(t, hasEdge(g, "Handler", "Handler", RelationDependency), "self references are not dependencies")
}

func TestGraph_ForwardReference(t *testing.T) {
	g := build(t, `
class X { Y* y; };
class Y {};
`)
	assert.True(t, hasEdge(g, "X", "Y", RelationAssociation))
}

func TestGraph_UnknownTargetsOmitted(t *testing.T) {
	g := build(t, `
class A : public Missing {
	std::string name;
	Unknown* u;
};
`)
	assert.Empty(t, g.Edges)
	assert.Equal(t, 3, g.Stats().Unresolved[ReasonNoCandidate])
}

func TestGraph_TemplateParamsNotLinked(t *testing.T) {
	g := build(t, `
class Node {};
template <class Node, typename T>
class List {
	Node* head;
	T value;
	struct Cell { T item; };
};
`)
	assert.False(t, hasEdge(g, "List", "Node", RelationAssociation))
	assert.Empty(t, g.Unresolved)
	assert.True(t, hasEdge(g, "List", "List::Cell", RelationNesting))
}

func TestGraph_ElaboratedFieldComposition(t *testing.T) {
	g := build(t, `
class C { struct A a; enum Color color; };
struct A {};
enum Color { Red };
`)
	assert.True(t, hasEdge(g, "C", "A", RelationComposition))
	assert.True(t, hasEdge(g, "C", "Color", RelationComposition))
}

func TestGraph_NestedScopeResolution(t *testing.T) {
	g := build(t, `
namespace a {
struct Node {};
class Tree {
	struct Node { int v; };
	Node root;
};
}
namespace b {
struct Node {};
struct Holder { a::Node n; Node local; };
}
`)
	assert.True(t, hasEdge(g, "a::Tree", "a::Tree::Node", RelationComposition), "innermost scope wins")
	assert.True(t, hasEdge(g, "a::Tree", "a::Tree::Node", RelationNesting))
	assert.True(t, hasEdge(g, "b::Holder", "a::Node", RelationComposition))
	assert.True(t, hasEdge(g, "b::Holder", "b::Node", RelationComposition))
}

func TestGraph_LastComponentFallback(t *testing.T) {
	first := extractor.Parse("a.hpp", "namespace x { class Target {}; }")
	second := extractor.Parse("b.hpp", "namespace y { class Target {}; }\nclass User { other::Target t; };")
	g := FromFiles(first, second)

	assert.True(t, hasEdge(g, "User", "x::Target", RelationComposition), "first declared wins")
	assert.Equal(t, 1, g.Stats().Unresolved[ReasonAmbiguous])
}

func TestGraph_EdgesDeduplicated(t *testing.T) {
	g := build(t, `
class A {};
class B { A a1; A a2; A* p1; A* p2; };
`)
	assert.Len(t, g.Edges, 2)
	assert.Equal(t, RelationComposition, g.Edges[0].Kind)
	assert.Equal(t, "a1", g.Edges[0].Via)
	assert.Equal(t, RelationAssociation, g.Edges[1].Kind)
	assert.Equal(t, map[RelationKind]int{RelationComposition: 1, RelationAssociation: 1}, g.Stats().ByKind)
}

func TestGraph_DuplicateDefinitionFirstWins(t *testing.T) {
	g := NewGraph()
	first := extractor.Parse("a.hpp", "class Dup { int a; };")
	second := extractor.Parse("b.hpp", "class Dup { int b; };")

	assert.Empty(t, g.AddFile(first))
	dups := g.AddFile(second)
	require.Len(t, dups, 1)
	assert.Equal(t, "b.hpp", dups[0].File)
	assert.Equal(t, "a.hpp", g.Lookup("Dup").Class.File)
}

func TestGraph_Deterministic(t *testing.T) {
	src := `
class A {}; class B : public A { A* a; };
class C : public B { std::vector<A> as; B b; };
`
	first := build(t, src)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Edges, build(t, src).Edges)
	}
}
