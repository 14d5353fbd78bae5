package extractor

import "strings"

// Kind is the declaration keyword that introduced a ClassEntity.
type Kind string

const (
	KindClass  Kind = "class"
	KindStruct Kind = "struct"
	KindUnion  Kind = "union"
	KindEnum   Kind = "enum"
)

// Access is a C++ access level.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessPrivate   Access = "private"
)

// Symbol returns the UML visibility glyph for the access level.
func (a Access) Symbol() string {
	switch a {
	case AccessPublic:
		return "+"
	case AccessProtected:
		return "#"
	default:
		return "-"
	}
}

// DefaultAccess is the access in effect before the first access label.
func (k Kind) DefaultAccess() Access {
	if k == KindClass {
		return AccessPrivate
	}
	return AccessPublic
}

// MemberKind distinguishes data members from member functions.
type MemberKind string

const (
	MemberField  MemberKind = "field"
	MemberMethod MemberKind = "method"
)

// BaseSpec is one entry of a class's base-specifier list.
type BaseSpec struct {
	Type    string `json:"type"`
	Access  Access `json:"access"`
	Virtual bool   `json:"virtual,omitempty"`
}

// Member is a field or method declared directly in a class body.
// Type holds the declared type of a field or the return type of a method.
type Member struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Kind        MemberKind `json:"kind"`
	Access      Access     `json:"access"`
	Static      bool       `json:"static,omitempty"`
	Virtual     bool       `json:"virtual,omitempty"`
	Abstract    bool       `json:"abstract,omitempty"`
	Const       bool       `json:"const,omitempty"`
	Constructor bool       `json:"constructor,omitempty"`
	Destructor  bool       `json:"destructor,omitempty"`
	Params      []string   `json:"params,omitempty"`
	Line        int        `json:"line"`
}

// ClassEntity is one class, struct, union or enum definition.
type ClassEntity struct {
	Name           string     `json:"name"`
	Namespace      []string   `json:"namespace,omitempty"`
	Outer          string     `json:"outer,omitempty"`
	Kind           Kind       `json:"kind"`
	Bases          []BaseSpec `json:"bases,omitempty"`
	Members        []Member   `json:"members,omitempty"`
	TemplateParams []string   `json:"template_params,omitempty"`
	Enumerators    []string   `json:"enumerators,omitempty"`
	File           string     `json:"file"`
	StartLine      int        `json:"start_line"`
	EndLine        int        `json:"end_line"`
}

// PureName is the class name without template arguments.
func (c *ClassEntity) PureName() string {
	name, _, _ := strings.Cut(c.Name, "<")
	return strings.TrimSpace(name)
}

// Scope is the chain of enclosing scopes: namespaces, then outer classes.
func (c *ClassEntity) Scope() []string {
	if c.Outer == "" {
		return c.Namespace
	}
	return strings.Split(c.Outer, "::")
}

// QualifiedName joins the enclosing scopes and the pure name with "::".
func (c *ClassEntity) QualifiedName() string {
	scope := c.Scope()
	if len(scope) == 0 {
		return c.PureName()
	}
	return strings.Join(scope, "::") + "::" + c.PureName()
}

// Fields returns the data members in declaration order.
func (c *ClassEntity) Fields() []Member {
	return c.membersOf(MemberField)
}

// Methods returns the member functions in declaration order.
func (c *ClassEntity) Methods() []Member {
	return c.membersOf(MemberMethod)
}

func (c *ClassEntity) membersOf(kind MemberKind) []Member {
	var out []Member
	for _, m := range c.Members {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// IsAbstract reports whether any method is pure virtual.
func (c *ClassEntity) IsAbstract() bool {
	for _, m := range c.Members {
		if m.Kind == MemberMethod && m.Abstract {
			return true
		}
	}
	return false
}

// IsInterface reports whether the class has methods only, every one of them
// pure virtual or static.
func (c *ClassEntity) IsInterface() bool {
	if c.Kind == KindEnum {
		return false
	}
	methods := 0
	for _, m := range c.Members {
		switch {
		case m.Kind == MemberField:
			return false
		case m.Constructor || m.Destructor:
			continue
		case !m.Abstract && !m.Static:
			return false
		}
		methods++
	}
	return methods > 0
}

// Diagnostic records a construct the parser approximated or skipped.
type Diagnostic struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// FileModel is the result of parsing one source file.
type FileModel struct {
	Path        string         `json:"path"`
	Classes     []*ClassEntity `json:"classes"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// Find returns the first class whose qualified or plain name matches.
func (m *FileModel) Find(name string) *ClassEntity {
	for _, c := range m.Classes {
		if c.QualifiedName() == name || c.Name == name {
			return c
		}
	}
	return nil
}
