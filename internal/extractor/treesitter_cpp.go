package extractor

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// CppTreeSitterEngine builds the model from a tree-sitter C++ syntax tree.
// It parses the decoded source including preprocessor directives, descends
// into every branch of #if/#ifdef blocks, and records the same entities as
// the native parser using the grammar instead of heuristics.
type CppTreeSitterEngine struct{}

func (*CppTreeSitterEngine) Name() string { return EngineTreeSitter }

func (*CppTreeSitterEngine) GetLanguage() *sitter.Language {
	return cpp.GetLanguage()
}

func (e *CppTreeSitterEngine) Extract(path string, src []byte) (*FileModel, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &tsWalker{src: src, model: &FileModel{Path: path}}
	root := tree.RootNode()
	w.walkScope(root, nil)
	if root.HasError() {
		w.model.Diagnostics = append(w.model.Diagnostics, Diagnostic{
			Line:    firstErrorLine(root),
			Message: "tree-sitter reported syntax errors; affected declarations may be missing",
		})
	}
	return w.model, nil
}

type tsWalker struct {
	src   []byte
	model *FileModel
}

func (w *tsWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

// normalize re-renders source text the way the native parser joins tokens.
func normalize(text string) string {
	return joinTokens(Tokenize(text))
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row + 1)
}

func isClassSpecifier(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return n.ChildByFieldName("body") != nil
	}
	return false
}

func isPreprocBlock(n *sitter.Node) bool {
	switch n.Type() {
	case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_elifdef":
		return true
	}
	return false
}

// walkScope visits declarations at namespace scope.
func (w *tsWalker) walkScope(node *sitter.Node, ns []string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch {
		case child.Type() == "namespace_definition":
			inner := append([]string(nil), ns...)
			if name := child.ChildByFieldName("name"); name != nil {
				for _, part := range strings.Split(w.text(name), "::") {
					if part = strings.TrimSpace(part); part != "" && part != "inline" {
						inner = append(inner, part)
					}
				}
			}
			if body := child.ChildByFieldName("body"); body != nil {
				w.walkScope(body, inner)
			}
		case child.Type() == "linkage_specification":
			if body := child.ChildByFieldName("body"); body != nil {
				w.walkScope(body, ns)
			}
		case isPreprocBlock(child):
			w.walkScope(child, ns)
		case isClassSpecifier(child):
			w.entity(child, ns, nil, nil, "")
		case child.Type() == "template_declaration":
			params := w.templateParams(child)
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if inner := child.NamedChild(j); isClassSpecifier(inner) {
					w.entity(inner, ns, nil, params, "")
				}
			}
		case child.Type() == "declaration", child.Type() == "type_definition":
			if typ := child.ChildByFieldName("type"); isClassSpecifier(typ) {
				alias := ""
				if child.Type() == "type_definition" {
					alias = w.text(child.ChildByFieldName("declarator"))
				}
				w.entity(typ, ns, nil, nil, alias)
			}
		}
	}
}

func (w *tsWalker) templateParams(decl *sitter.Node) []string {
	list := decl.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}
	names := []string{}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if name := templateParamName(Tokenize(w.text(list.NamedChild(i)))); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// entity records a class, struct, union or enum definition and its members.
func (w *tsWalker) entity(node *sitter.Node, ns []string, outer *ClassEntity, params []string, alias string) *ClassEntity {
	var qualifier []string
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		qualifier, name = splitClassName(Tokenize(w.text(n)))
	}
	if name == "" {
		name = strings.TrimSpace(alias)
	}
	if name == "" {
		w.model.Diagnostics = append(w.model.Diagnostics, Diagnostic{Line: line(node), Message: "anonymous " + kindOf(node) + " skipped"})
		return nil
	}

	c := &ClassEntity{
		Name:           name,
		Namespace:      append([]string(nil), ns...),
		Kind:           Kind(kindOf(node)),
		TemplateParams: params,
		File:           w.model.Path,
		StartLine:      line(node),
		EndLine:        int(node.EndPoint().Row + 1),
	}
	if outer != nil {
		c.Outer = outer.QualifiedName()
		c.Namespace = append([]string(nil), outer.Namespace...)
	}
	if len(qualifier) > 0 {
		scope := append(append([]string(nil), ns...), qualifier...)
		if o := w.model.Find(strings.Join(scope, "::")); o != nil && o.Kind != KindEnum {
			c.Outer = o.QualifiedName()
			c.Namespace = append([]string(nil), o.Namespace...)
		} else {
			c.Namespace = scope
		}
	}
	w.model.Classes = append(w.model.Classes, c)

	body := node.ChildByFieldName("body")
	if c.Kind == KindEnum {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			if e := body.NamedChild(i); e.Type() == "enumerator" {
				c.Enumerators = append(c.Enumerators, w.text(e.ChildByFieldName("name")))
			}
		}
		return c
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		if clause := node.NamedChild(i); clause.Type() == "base_class_clause" {
			c.Bases = w.bases(clause, c.Kind.DefaultAccess())
		}
	}
	access := c.Kind.DefaultAccess()
	w.walkMembers(body, c, &access)
	return c
}

func kindOf(node *sitter.Node) string {
	return strings.TrimSuffix(node.Type(), "_specifier")
}

func (w *tsWalker) bases(clause *sitter.Node, defaultAccess Access) []BaseSpec {
	var specs []BaseSpec
	spec := BaseSpec{Access: defaultAccess}
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case ":", "...", "comment":
		case ",":
			spec = BaseSpec{Access: defaultAccess}
		case "access_specifier":
			spec.Access = Access(strings.TrimSpace(w.text(child)))
		case "virtual", "virtual_specifier", "virtual_function_specifier":
			spec.Virtual = true
		default:
			if !child.IsNamed() {
				if t := w.text(child); t == "public" || t == "protected" || t == "private" {
					spec.Access = Access(t)
				} else if t == "virtual" {
					spec.Virtual = true
				}
				continue
			}
			spec.Type = normalize(w.text(child))
			specs = append(specs, spec)
			spec = BaseSpec{Access: defaultAccess}
		}
	}
	return specs
}

// walkMembers visits a field_declaration_list.
func (w *tsWalker) walkMembers(list *sitter.Node, c *ClassEntity, access *Access) {
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(i)
		switch child.Type() {
		case "access_specifier":
			*access = Access(strings.TrimSpace(w.text(child)))
		case "field_declaration", "declaration", "function_definition":
			w.member(child, c, *access)
		case "template_declaration":
			tp := w.templateParams(child)
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				switch {
				case isClassSpecifier(inner):
					w.entity(inner, nil, c, tp, "")
				case inner.Type() == "field_declaration", inner.Type() == "declaration", inner.Type() == "function_definition":
					w.member(inner, c, *access)
				}
			}
		case "type_definition":
			if typ := child.ChildByFieldName("type"); isClassSpecifier(typ) {
				w.entity(typ, nil, c, nil, w.text(child.ChildByFieldName("declarator")))
			}
		default:
			if isPreprocBlock(child) {
				w.walkMembers(child, c, access)
			}
		}
	}
}

// member records the fields or method declared by one member declaration.
func (w *tsWalker) member(decl *sitter.Node, c *ClassEntity, access Access) {
	var static, virtual, abstract bool
	var typeParts []string
	var declarators []*sitter.Node
	placeholder := ""
	for i := 0; i < int(decl.ChildCount()); i++ {
		child := decl.Child(i)
		field := decl.FieldNameForChild(i)
		switch {
		case field == "declarator":
			declarators = append(declarators, child)
		case field == "type":
			if isClassSpecifier(child) && child.ChildByFieldName("name") == nil && kindOf(child) != string(KindEnum) {
				// members of an anonymous union or struct belong to c
				if decl.ChildByFieldName("declarator") == nil {
					if body := child.ChildByFieldName("body"); body != nil {
						inner := access
						w.walkMembers(body, c, &inner)
					}
					return
				}
				placeholder = kindOf(child) + " <anonymous>"
				continue
			}
			if isClassSpecifier(child) {
				nested := w.entity(child, nil, c, nil, "")
				if nested == nil {
					return
				}
				typeParts = append(typeParts, nested.Name)
				continue
			}
			typeParts = append(typeParts, w.text(child))
		case field == "default_value":
			if strings.TrimSpace(w.text(child)) == "0" {
				abstract = true
			}
		case child.Type() == "pure_virtual_clause":
			abstract = true
		case child.Type() == "delete_method_clause":
			return
		case child.Type() == "type_qualifier" && len(declarators) == 0:
			typeParts = append(typeParts, w.text(child))
		case child.Type() == "storage_class_specifier" && strings.TrimSpace(w.text(child)) == "static":
			static = true
		case child.Type() == "virtual", child.Type() == "virtual_function_specifier":
			virtual = true
		}
	}
	typeText := normalize(strings.Join(typeParts, " "))
	if placeholder != "" {
		typeText = strings.TrimSpace(strings.Join(typeParts, " ") + " " + placeholder)
	}

	for _, d := range declarators {
		m, ok := w.declarator(d, typeText, c)
		if !ok {
			continue
		}
		m.Access = access
		m.Static = static
		m.Line = line(decl)
		if m.Kind == MemberMethod {
			m.Virtual = m.Virtual || virtual || abstract
			m.Abstract = abstract
		}
		c.Members = append(c.Members, m)
	}
}

// declarator unwraps pointer, reference and array declarators down to the
// declared name and builds the member it describes.
func (w *tsWalker) declarator(d *sitter.Node, typeText string, c *ClassEntity) (Member, bool) {
	ops, suffix := "", ""
	var fn *sitter.Node
	for d != nil {
		switch d.Type() {
		case "pointer_declarator":
			ops += "*"
			d = d.ChildByFieldName("declarator")
			continue
		case "reference_declarator":
			if d.ChildCount() > 0 {
				ops += w.text(d.Child(0))
			}
			d = d.NamedChild(0)
			continue
		case "array_declarator":
			suffix = "[" + normalize(w.text(d.ChildByFieldName("size"))) + "]" + suffix
			d = d.ChildByFieldName("declarator")
			continue
		case "init_declarator", "attributed_declarator":
			d = d.ChildByFieldName("declarator")
			if d == nil {
				return Member{}, false
			}
			continue
		case "bitfield_clause":
			return Member{}, false
		case "function_declarator":
			inner := d.ChildByFieldName("declarator")
			if inner != nil && inner.Type() == "parenthesized_declarator" {
				return w.functionPointer(d, typeText+ops)
			}
			fn = d
			d = inner
			continue
		case "parenthesized_declarator":
			d = d.NamedChild(0)
			continue
		}
		break
	}
	if d == nil {
		return Member{}, false
	}

	name := ""
	destructor := false
	switch d.Type() {
	case "field_identifier", "identifier", "type_identifier":
		name = w.text(d)
	case "destructor_name":
		name = normalize(w.text(d))
		destructor = true
	case "operator_name":
		name = normalize(w.text(d))
	case "operator_cast":
		name = "operator " + normalize(w.text(d.ChildByFieldName("type")))
		if fn == nil {
			fn = d.ChildByFieldName("declarator")
		}
	case "qualified_identifier":
		_, name = splitClassName(Tokenize(w.text(d)))
	case "template_function":
		name = w.text(d.ChildByFieldName("name"))
	default:
		return Member{}, false
	}

	if fn == nil {
		if typeText == "" {
			return Member{}, false
		}
		return Member{Name: name, Type: typeText + ops + suffix, Kind: MemberField}, true
	}

	m := Member{Name: name, Kind: MemberMethod, Destructor: destructor}
	if typeText != "" {
		m.Type = typeText + ops
	}
	if p := fn.ChildByFieldName("parameters"); p != nil {
		inner := strings.TrimSpace(w.text(p))
		inner = strings.TrimSuffix(strings.TrimPrefix(inner, "("), ")")
		m.Params = parseParams(Tokenize(inner))
	}
	for i := 0; i < int(fn.ChildCount()); i++ {
		child := fn.Child(i)
		switch child.Type() {
		case "type_qualifier":
			if strings.TrimSpace(w.text(child)) == "const" {
				m.Const = true
			}
		case "virtual_specifier":
			m.Virtual = true
		case "trailing_return_type":
			if m.Type == "" || m.Type == "auto" {
				m.Type = normalize(strings.TrimPrefix(strings.TrimSpace(w.text(child)), "->"))
			}
		}
	}
	if !destructor && m.Type == "" && name == c.PureName() {
		m.Constructor = true
	}
	if m.Type == "" && !m.Constructor && !m.Destructor && !strings.HasPrefix(m.Name, "operator") {
		return Member{}, false
	}
	return m, true
}

// functionPointer renders "R (*name)(args)" as a field of type "R(*)(args)".
func (w *tsWalker) functionPointer(fn *sitter.Node, typeText string) (Member, bool) {
	toks := Tokenize(w.text(fn))
	nameIdx := -1
	for i, tok := range toks {
		if tok.Type == TokenIdent {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return Member{}, false
	}
	name := toks[nameIdx].Value
	rest := append(append([]Token(nil), toks[:nameIdx]...), toks[nameIdx+1:]...)
	return Member{Name: name, Type: typeText + joinTokens(rest), Kind: MemberField}, true
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return line(n)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.HasError() {
			return firstErrorLine(child)
		}
	}
	return line(n)
}
