package graph

import "cpp2puml/internal/extractor"

// AddFile adds every class of a parsed file and returns the ones rejected as
// duplicates of an already known definition.
func (g *Graph) AddFile(model *extractor.FileModel) []*extractor.ClassEntity {
	if model == nil {
		return nil
	}
	var duplicates []*extractor.ClassEntity
	for _, c := range model.Classes {
		if c.Name == "" {
			continue
		}
		if !g.AddClass(c) {
			duplicates = append(duplicates, c)
		}
	}
	return duplicates
}

// FromFiles builds a linked graph from parsed files in the given order.
func FromFiles(models ...*extractor.FileModel) *Graph {
	g := NewGraph()
	for _, m := range models {
		g.AddFile(m)
	}
	g.LinkRelations()
	return g
}
