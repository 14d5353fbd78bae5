package analysis

import (
	"path/filepath"

	"cpp2puml/internal/graph"
)

// ImpactReport summarizes the classes affected by changed files.
type ImpactReport struct {
	DirectlyAffected   []*graph.Node
	IndirectlyAffected []*graph.Node
}

// Analyzer performs impact analysis on the class graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact reports the classes defined in the changed files and the
// classes that inherit from, hold or use them.
func (a *Analyzer) AnalyzeImpact(changedFiles []string) *ImpactReport {
	changed := make(map[string]bool, len(changedFiles))
	for _, path := range changedFiles {
		changed[normalize(path)] = true
	}

	var direct []*graph.Node
	for _, key := range a.g.Order {
		node := a.g.Nodes[key]
		if changed[normalize(node.Class.File)] {
			direct = append(direct, node)
		}
	}
	return a.ImpactOf(direct)
}

// ImpactOf reports the given classes as directly affected and the classes
// with an edge to any of them as indirectly affected.
func (a *Analyzer) ImpactOf(direct []*graph.Node) *ImpactReport {
	report := &ImpactReport{
		DirectlyAffected:   []*graph.Node{},
		IndirectlyAffected: []*graph.Node{},
	}

	seenDirect := make(map[string]bool, len(direct))
	seenIndirect := make(map[string]bool)

	for _, node := range direct {
		if node == nil || seenDirect[node.Key] {
			continue
		}
		report.DirectlyAffected = append(report.DirectlyAffected, node)
		seenDirect[node.Key] = true
	}

	for _, node := range report.DirectlyAffected {
		for _, dep := range a.g.GetDependents(node.Key) {
			if !seenDirect[dep.Key] && !seenIndirect[dep.Key] {
				report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
				seenIndirect[dep.Key] = true
			}
		}
	}

	return report
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
