package graph

import (
	"strings"

	"cpp2puml/internal/extractor"
)

// TypeRef is a declared type decomposed into a named reference, its template
// arguments and indirection.
type TypeRef struct {
	Name     string
	Args     []TypeRef
	Indirect bool
	Array    bool
}

// ParseTypeRef decomposes raw type text such as "const std::map<K, V*>&".
// Fundamental types yield an empty Name. Tokens after the type, such as a
// parameter name, are ignored.
func ParseTypeRef(raw string) TypeRef {
	toks := extractor.Tokenize(raw)
	ref, _ := parseRef(toks, 0)
	return ref
}

var ignoredQualifiers = map[string]bool{
	"const": true, "volatile": true, "mutable": true, "typename": true,
	"struct": true, "class": true, "union": true, "enum": true,
	"static": true, "inline": true, "constexpr": true, "register": true,
}

func parseRef(toks []extractor.Token, i int) (TypeRef, int) {
	var ref TypeRef
	for i < len(toks) && ignoredQualifiers[toks[i].Value] && toks[i].Type == extractor.TokenKeyword {
		i++
	}

	var parts []string
	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok.Is("::"):
			i++
			continue
		case tok.Type == extractor.TokenIdent:
			parts = append(parts, tok.Value)
			i++
			if i < len(toks) && toks[i].Type == extractor.TokenAngleOpen {
				// arguments of an inner segment belong to the reference too
				ref.Args, i = parseArgs(toks, i+1)
			}
			if i < len(toks) && toks[i].Is("::") {
				continue
			}
		case tok.Type == extractor.TokenKeyword && len(parts) == 0:
			// fundamental type: int, unsigned long, ...
			for i < len(toks) && toks[i].Type == extractor.TokenKeyword && !toks[i].Is("const") {
				i++
			}
		}
		break
	}
	ref.Name = strings.Join(parts, "::")

	for i < len(toks) {
		tok := toks[i]
		switch {
		case tok.Is("*"), tok.Is("&"), tok.Is("&&"), tok.Is("^"):
			ref.Indirect = true
		case tok.Is("["):
			ref.Array = true
		case tok.Is("const"), tok.Is("volatile"), tok.Is("]"), tok.Type == extractor.TokenNumber:
		default:
			return ref, i
		}
		i++
	}
	return ref, i
}

func parseArgs(toks []extractor.Token, i int) ([]TypeRef, int) {
	var args []TypeRef
	for i < len(toks) {
		if toks[i].Type == extractor.TokenAngleClose {
			return args, i + 1
		}
		arg, next := parseRef(toks, i)
		args = append(args, arg)
		i = next
		// skip what the argument parse did not consume: values, expressions
		depth := 0
		for i < len(toks) {
			tok := toks[i]
			if depth == 0 && (tok.Is(",") || tok.Type == extractor.TokenAngleClose) {
				break
			}
			switch {
			case tok.Type == extractor.TokenAngleOpen, tok.Is("("):
				depth++
			case tok.Type == extractor.TokenAngleClose, tok.Is(")"):
				depth--
			}
			i++
		}
		if i < len(toks) && toks[i].Is(",") {
			i++
		}
	}
	return args, i
}

type wrapperKind int

const (
	notWrapper wrapperKind = iota
	owningContainer
	owningValue
	nonOwning
)

var wrappers = map[string]wrapperKind{
	"vector": owningContainer, "list": owningContainer, "deque": owningContainer,
	"forward_list": owningContainer, "array": owningContainer, "valarray": owningContainer,
	"set": owningContainer, "multiset": owningContainer,
	"unordered_set": owningContainer, "unordered_multiset": owningContainer,
	"map": owningContainer, "multimap": owningContainer,
	"unordered_map": owningContainer, "unordered_multimap": owningContainer,
	"queue": owningContainer, "stack": owningContainer, "priority_queue": owningContainer,
	"optional": owningValue, "unique_ptr": owningValue, "auto_ptr": owningValue,
	"pair": owningValue, "tuple": owningValue, "variant": owningValue,
	"shared_ptr": nonOwning, "weak_ptr": nonOwning, "reference_wrapper": nonOwning,
	"span": nonOwning, "observer_ptr": nonOwning,
}

func wrapperOf(name string) wrapperKind {
	name = strings.TrimPrefix(name, "std::")
	if strings.Contains(name, "::") {
		return notWrapper
	}
	return wrappers[name]
}

// Hit is a class reference found in a type together with how it is held.
type Hit struct {
	Name string
	Kind RelationKind
	Many bool
}

// Classify lists the references of a field type in order of appearance. A
// reference reached only by value and through owning wrappers is a
// composition; anything behind a pointer, reference, non-owning wrapper or
// unknown template is an association. References inside containers are Many.
func Classify(ref TypeRef) []Hit {
	var hits []Hit
	classify(ref, true, false, &hits)
	return hits
}

func classify(ref TypeRef, owned, many bool, hits *[]Hit) {
	if ref.Indirect {
		owned = false
	}
	if ref.Array {
		many = true
	}
	if ref.Name == "" {
		return
	}
	switch wrapperOf(ref.Name) {
	case owningContainer:
		for _, arg := range ref.Args {
			classify(arg, owned, true, hits)
		}
		return
	case owningValue:
		for _, arg := range ref.Args {
			classify(arg, owned, many, hits)
		}
		return
	case nonOwning:
		for _, arg := range ref.Args {
			classify(arg, false, many, hits)
		}
		return
	}

	kind := RelationAssociation
	if owned {
		kind = RelationComposition
	}
	*hits = append(*hits, Hit{Name: ref.Name, Kind: kind, Many: many})
	for _, arg := range ref.Args {
		classify(arg, false, many, hits)
	}
}

// Names lists every non-wrapper name referenced by a type.
func Names(ref TypeRef) []string {
	var names []string
	for _, hit := range Classify(ref) {
		names = append(names, hit.Name)
	}
	return names
}
