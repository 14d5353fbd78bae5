package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTypeRef(t *testing.T) {
	tests := []struct {
		raw  string
		want TypeRef
	}{
		{"int", TypeRef{}},
		{"unsigned long long", TypeRef{}},
		{"Foo", TypeRef{Name: "Foo"}},
		{"const ns::Foo&", TypeRef{Name: "ns::Foo", Indirect: true}},
		{"struct Foo*", TypeRef{Name: "Foo", Indirect: true}},
		{"Foo const*", TypeRef{Name: "Foo", Indirect: true}},
		{"Foo[4]", TypeRef{Name: "Foo", Array: true}},
		{"std::vector<Foo*>", TypeRef{Name: "std::vector", Args: []TypeRef{{Name: "Foo", Indirect: true}}}},
		{"std::map<int, Bar>", TypeRef{Name: "std::map", Args: []TypeRef{{}, {Name: "Bar"}}}},
		{"std::array<Foo, 3>", TypeRef{Name: "std::array", Args: []TypeRef{{Name: "Foo"}, {}}}},
		{"const Foo& other", TypeRef{Name: "Foo", Indirect: true}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTypeRef(tt.raw))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want []Hit
	}{
		{"A", []Hit{{Name: "A", Kind: RelationComposition}}},
		{"A*", []Hit{{Name: "A", Kind: RelationAssociation}}},
		{"A&", []Hit{{Name: "A", Kind: RelationAssociation}}},
		{"std::vector<A>", []Hit{{Name: "A", Kind: RelationComposition, Many: true}}},
		{"std::vector<A*>", []Hit{{Name: "A", Kind: RelationAssociation, Many: true}}},
		{"std::unique_ptr<A>", []Hit{{Name: "A", Kind: RelationComposition}}},
		{"std::optional<A>", []Hit{{Name: "A", Kind: RelationComposition}}},
		{"std::shared_ptr<A>", []Hit{{Name: "A", Kind: RelationAssociation}}},
		{"std::weak_ptr<A>", []Hit{{Name: "A", Kind: RelationAssociation}}},
		{"std::map<K, std::unique_ptr<V>>", []Hit{
			{Name: "K", Kind: RelationComposition, Many: true},
			{Name: "V", Kind: RelationComposition, Many: true},
		}},
		{"Box<A>", []Hit{
			{Name: "Box", Kind: RelationComposition},
			{Name: "A", Kind: RelationAssociation},
		}},
		{"A[8]", []Hit{{Name: "A", Kind: RelationComposition, Many: true}}},
		{"int", nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(ParseTypeRef(tt.raw)))
		})
	}
}
