package generator

import (
	"fmt"
	"regexp"
	"strings"

	"cpp2puml/internal/extractor"
	"cpp2puml/internal/graph"
)

// Options controls how a graph is rendered.
type Options struct {
	Title string
	// Icons keeps PlantUML's graphical visibility icons instead of the
	// +, - and # glyphs.
	Icons bool
	// CStyle renders "int x" instead of "x: int".
	CStyle     bool
	NoPackages bool
}

// PlantUMLGenerator renders a linked graph as a PlantUML class diagram.
type PlantUMLGenerator struct {
	opts Options
}

func NewPlantUMLGenerator(opts Options) *PlantUMLGenerator {
	return &PlantUMLGenerator{opts: opts}
}

// edgeSections is the order in which relationship groups are written.
var edgeSections = []graph.RelationKind{
	graph.RelationInheritance,
	graph.RelationComposition,
	graph.RelationAssociation,
	graph.RelationDependency,
	graph.RelationNesting,
}

// Generate returns the diagram text for every class and edge of g.
func (p *PlantUMLGenerator) Generate(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("@startuml\n\n")
	if title := strings.TrimSpace(p.opts.Title); title != "" {
		sb.WriteString(fmt.Sprintf("title %s\n\n", title))
	}
	if !p.opts.Icons {
		sb.WriteString("skinparam classAttributeIconSize 0\n\n")
	}

	names := p.displayNames(g)

	if p.opts.NoPackages {
		for _, key := range g.Order {
			p.writeClass(&sb, g.Nodes[key].Class, names[key], "")
			sb.WriteString("\n")
		}
	} else {
		root := newPackageTree()
		for _, key := range g.Order {
			root.add(g.Nodes[key])
		}
		p.writePackage(&sb, root, names, "")
	}

	for _, kind := range edgeSections {
		wrote := false
		for _, e := range g.Edges {
			if e.Kind != kind {
				continue
			}
			from, to := names[e.From], names[e.To]
			if from == "" || to == "" {
				continue
			}
			sb.WriteString(edgeLine(e, from, to))
			wrote = true
		}
		if wrote {
			sb.WriteString("\n")
		}
	}

	sb.WriteString("@enduml\n")
	return sb.String()
}

func edgeLine(e graph.Edge, from, to string) string {
	switch e.Kind {
	case graph.RelationInheritance:
		if e.Virtual || (e.Access != "" && e.Access != extractor.AccessPublic) {
			return fmt.Sprintf("%s --|> %s #line.dashed\n", from, to)
		}
		return fmt.Sprintf("%s --|> %s\n", from, to)
	case graph.RelationComposition:
		if e.Many {
			return fmt.Sprintf("%s *-- \"*\" %s\n", from, to)
		}
		return fmt.Sprintf("%s *-- %s\n", from, to)
	case graph.RelationAssociation:
		if e.Many {
			return fmt.Sprintf("%s --> \"*\" %s\n", from, to)
		}
		return fmt.Sprintf("%s --> %s\n", from, to)
	case graph.RelationDependency:
		return fmt.Sprintf("%s ..> %s\n", from, to)
	default:
		return fmt.Sprintf("%s +-- %s\n", from, to)
	}
}

// displayNames maps node keys to the identifier used in the diagram. A pure
// name shared by several nodes is replaced by an alias derived from the key.
func (p *PlantUMLGenerator) displayNames(g *graph.Graph) map[string]string {
	counts := make(map[string]int)
	for _, key := range g.Order {
		counts[g.Nodes[key].Class.PureName()]++
	}
	names := make(map[string]string, len(g.Order))
	for _, key := range g.Order {
		pure := g.Nodes[key].Class.PureName()
		if counts[pure] > 1 {
			names[key] = aliasFor(key)
		} else {
			names[key] = pure
		}
	}
	return names
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func aliasFor(key string) string {
	alias := strings.Trim(nonIdent.ReplaceAllString(strings.ReplaceAll(key, "::", "_"), "_"), "_")
	if alias == "" {
		return "node"
	}
	if alias[0] >= '0' && alias[0] <= '9' {
		alias = "n_" + alias
	}
	return alias
}

func (p *PlantUMLGenerator) writeClass(sb *strings.Builder, c *extractor.ClassEntity, name, indent string) {
	sb.WriteString(indent + p.classHead(c, name) + " {\n")

	if c.Kind == extractor.KindEnum {
		for _, e := range c.Enumerators {
			sb.WriteString(fmt.Sprintf("%s\t%s\n", indent, e))
		}
		if len(c.Enumerators) == 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(indent + "}\n")
		return
	}

	fields, methods := c.Fields(), c.Methods()
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("%s\t%s %s%s\n", indent, f.Access.Symbol(), modifiers(f), p.variable(f.Name, f.Type)))
	}
	if len(fields) > 0 && len(methods) > 0 {
		sb.WriteString("\n")
	}
	for _, m := range methods {
		sb.WriteString(fmt.Sprintf("%s\t%s %s%s\n", indent, m.Access.Symbol(), modifiers(m), p.method(m)))
	}
	if len(fields) == 0 && len(methods) == 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(indent + "}\n")
}

func (p *PlantUMLGenerator) classHead(c *extractor.ClassEntity, name string) string {
	keyword := "class"
	switch {
	case c.Kind == extractor.KindEnum:
		keyword = "enum"
	case c.IsInterface():
		keyword = "interface"
	case c.IsAbstract():
		keyword = "abstract class"
	}

	generics := ""
	if len(c.TemplateParams) > 0 {
		generics = "<" + strings.Join(c.TemplateParams, ", ") + ">"
	}

	var head string
	if name != c.PureName() {
		head = fmt.Sprintf("%s \"%s%s\" as %s", keyword, graph.Key(c), generics, name)
	} else {
		head = keyword + " " + name + generics
	}
	if c.Kind == extractor.KindUnion {
		head += " <<union>>"
	}
	return head
}

func modifiers(m extractor.Member) string {
	var mod string
	if m.Static {
		mod += "{static} "
	}
	if m.Abstract {
		mod += "{abstract} "
	}
	return mod
}

func (p *PlantUMLGenerator) variable(name, typ string) string {
	switch {
	case typ == "":
		return name
	case name == "":
		return typ
	case p.opts.CStyle:
		return typ + " " + name
	default:
		return name + ": " + typ
	}
}

func (p *PlantUMLGenerator) method(m extractor.Member) string {
	args := make([]string, 0, len(m.Params))
	for _, param := range m.Params {
		name, typ := splitParam(param)
		args = append(args, p.variable(name, typ))
	}
	call := fmt.Sprintf("%s(%s)", m.Name, strings.Join(args, ", "))

	if m.Constructor || m.Destructor || m.Type == "" {
		return call
	}
	if p.opts.CStyle {
		return m.Type + " " + call
	}
	return call + ": " + m.Type
}

var typeWords = map[string]bool{
	"int": true, "char": true, "short": true, "long": true, "float": true, "double": true,
	"bool": true, "void": true, "signed": true, "unsigned": true, "auto": true,
	"const": true, "volatile": true, "wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
}

var trailingIdent = regexp.MustCompile(`^(.*[^A-Za-z0-9_:])([A-Za-z_][A-Za-z0-9_]*)$`)

// splitParam separates a raw parameter into its name and type. Parameters
// without a name are returned as a type only.
func splitParam(param string) (name, typ string) {
	param = strings.TrimSpace(param)
	m := trailingIdent.FindStringSubmatch(param)
	if m == nil || typeWords[m[2]] {
		return "", param
	}
	typ = strings.TrimSpace(m[1])
	if typ == "" {
		return "", param
	}
	return m[2], typ
}

type packageTree struct {
	name     string
	nodes    []*graph.Node
	children []*packageTree
	index    map[string]*packageTree
}

func newPackageTree() *packageTree {
	return &packageTree{index: make(map[string]*packageTree)}
}

func (t *packageTree) add(n *graph.Node) {
	cur := t
	for _, ns := range n.Class.Namespace {
		child, ok := cur.index[ns]
		if !ok {
			child = newPackageTree()
			child.name = ns
			cur.index[ns] = child
			cur.children = append(cur.children, child)
		}
		cur = child
	}
	cur.nodes = append(cur.nodes, n)
}

func (p *PlantUMLGenerator) writePackage(sb *strings.Builder, t *packageTree, names map[string]string, indent string) {
	inner := indent
	if t.name != "" {
		sb.WriteString(fmt.Sprintf("%spackage %s {\n", indent, t.name))
		inner = indent + "\t"
	}
	for _, n := range t.nodes {
		p.writeClass(sb, n.Class, names[n.Key], inner)
		sb.WriteString("\n")
	}
	for _, child := range t.children {
		p.writePackage(sb, child, names, inner)
	}
	if t.name != "" {
		sb.WriteString(indent + "}\n\n")
	}
}
