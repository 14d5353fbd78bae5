package extractor

import (
	"fmt"
	"strings"
)

// ParseState is the parser's position in the declaration grammar.
type ParseState int

const (
	StateTopLevel ParseState = iota
	StateInNamespace
	StateAwaitingClassName
	StateInClassHeader
	StateInClassBody
	StateInMethodBody
	StateInMemberDeclaration
)

func (s ParseState) String() string {
	switch s {
	case StateTopLevel:
		return "TopLevel"
	case StateInNamespace:
		return "InNamespace"
	case StateAwaitingClassName:
		return "AwaitingClassName"
	case StateInClassHeader:
		return "InClassHeader"
	case StateInClassBody:
		return "InClassBody"
	case StateInMethodBody:
		return "InMethodBody"
	case StateInMemberDeclaration:
		return "InMemberDeclaration"
	}
	return fmt.Sprintf("ParseState(%d)", int(s))
}

type frameKind int

const (
	frameNamespace frameKind = iota
	frameTransparent
	frameClass
)

// frame is one open brace that carries structure.
type frame struct {
	kind    frameKind
	names   []string
	class   *ClassEntity
	access  Access
	typedef bool
}

// ParseContext is the scope state of a single parse. It is owned by one
// Parser and discarded with it.
type ParseContext struct {
	frames   []frame
	depth    int
	template []string
	typedef  bool
}

// Depth is the current brace depth, including skipped blocks.
func (c *ParseContext) Depth() int {
	return c.depth
}

// Namespace returns the open namespace components, outermost first.
func (c *ParseContext) Namespace() []string {
	var ns []string
	for _, f := range c.frames {
		if f.kind == frameNamespace {
			ns = append(ns, f.names...)
		}
	}
	return ns
}

// Class returns the innermost open class, or nil.
func (c *ParseContext) Class() *ClassEntity {
	if f := c.classFrame(); f != nil {
		return f.class
	}
	return nil
}

func (c *ParseContext) classFrame() *frame {
	if len(c.frames) == 0 {
		return nil
	}
	if top := &c.frames[len(c.frames)-1]; top.kind == frameClass {
		return top
	}
	return nil
}

func (c *ParseContext) push(f frame) {
	c.frames = append(c.frames, f)
	c.depth++
}

func (c *ParseContext) pop() (frame, bool) {
	if len(c.frames) == 0 {
		return frame{}, false
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	c.depth--
	return f, true
}

func (c *ParseContext) clearPending() {
	c.template = nil
	c.typedef = false
}

// Parser builds a FileModel from the token sequence of one source file.
type Parser struct {
	scanner *Scanner
	buf     []Token
	last    Token

	ctx   ParseContext
	state ParseState
	model *FileModel
}

// Parse parses src, read from path, into a FileModel. It never fails:
// constructs it cannot interpret are skipped.
func Parse(path, src string) *FileModel {
	return NewParser(path, src).Parse()
}

// NewParser creates a parser for one file.
func NewParser(path, src string) *Parser {
	return &Parser{
		scanner: NewScanner(src),
		model:   &FileModel{Path: path},
		state:   StateTopLevel,
	}
}

// State returns the state the parser is currently in.
func (p *Parser) State() ParseState {
	return p.state
}

// Context exposes the scope state of the parse.
func (p *Parser) Context() *ParseContext {
	return &p.ctx
}

// Parse consumes the whole input and returns the model.
func (p *Parser) Parse() *FileModel {
	for p.peek(0).Type != TokenEOF {
		if p.ctx.Class() != nil {
			p.state = StateInClassBody
			p.parseMemberStatement()
		} else {
			p.state = p.scopeState()
			p.parseStatement()
		}
	}
	p.finishOpen()
	p.state = StateTopLevel
	return p.model
}

func (p *Parser) scopeState() ParseState {
	if len(p.ctx.frames) == 0 {
		return StateTopLevel
	}
	return StateInNamespace
}

// parseStatement handles one construct at namespace scope.
func (p *Parser) parseStatement() {
	tok := p.peek(0)
	switch {
	case tok.Type == TokenCloseBrace:
		p.next()
		p.closeFrame(tok)
	case tok.Type == TokenSemicolon:
		p.next()
		p.ctx.clearPending()
	case tok.Is("namespace"), tok.Is("inline") && p.peek(1).Is("namespace"):
		p.parseNamespace()
	case tok.Is("extern") && p.peek(1).Type == TokenLiteral && p.peek(2).Type == TokenOpenBrace:
		p.next()
		p.next()
		p.next()
		p.ctx.push(frame{kind: frameTransparent})
	case tok.Is("template"):
		p.parseTemplateHeader()
	case tok.Is("typedef") && isClassKey(p.peek(1)):
		p.next()
		p.ctx.typedef = true
	case isClassKey(tok):
		if head := p.parseClassHead(); head != nil {
			p.skipStatement()
		}
	default:
		p.skipStatement()
	}
}

// parseMemberStatement handles one construct inside a class body.
func (p *Parser) parseMemberStatement() {
	tok := p.peek(0)
	switch {
	case tok.Type == TokenCloseBrace:
		p.next()
		p.closeFrame(tok)
	case tok.Type == TokenSemicolon:
		p.next()
		p.ctx.clearPending()
	case isAccessKeyword(tok) && p.peek(1).Type == TokenColon:
		p.next()
		p.next()
		p.ctx.classFrame().access = Access(tok.Value)
	case isAccessKeyword(tok) && p.peek(1).Type == TokenIdent && p.peek(2).Type == TokenColon:
		// Qt style "public slots:"
		p.next()
		p.next()
		p.next()
		p.ctx.classFrame().access = Access(tok.Value)
	case tok.Type == TokenIdent && p.peek(1).Type == TokenColon:
		// "signals:" and other macro labels
		p.next()
		p.next()
	case tok.Is("template"):
		p.parseTemplateHeader()
	case tok.Is("typedef") && isClassKey(p.peek(1)):
		p.next()
		p.ctx.typedef = true
	case tok.Is("friend"), tok.Is("using"), tok.Is("typedef"), tok.Is("static_assert"), tok.Is("namespace"):
		p.skipStatement()
	case isClassKey(tok):
		if head := p.parseClassHead(); head != nil {
			p.parseMemberDeclaration(head)
		}
	default:
		p.parseMemberDeclaration(nil)
	}
}

func (p *Parser) parseNamespace() {
	if p.peek(0).Is("inline") {
		p.next()
	}
	p.next() // namespace

	var names []string
	for {
		tok := p.peek(0)
		switch {
		case tok.Type == TokenIdent:
			names = append(names, tok.Value)
			p.next()
		case tok.Is("::"), tok.Is("inline"):
			p.next()
		case tok.Is("[") && p.peek(1).Is("["):
			p.skipAttribute()
		case tok.Type == TokenOpenBrace:
			p.next()
			p.ctx.push(frame{kind: frameNamespace, names: names})
			return
		default:
			// alias or malformed: namespace x = y;
			p.skipStatement()
			return
		}
	}
}

// parseTemplateHeader consumes "template <...>" and remembers the parameter
// names for the declaration that follows.
func (p *Parser) parseTemplateHeader() {
	p.next() // template
	if p.peek(0).Type != TokenAngleOpen {
		return
	}
	p.next()

	var params [][]Token
	var cur []Token
	depth := 0
	for {
		tok := p.peek(0)
		if tok.Type == TokenEOF || tok.Type == TokenOpenBrace || tok.Type == TokenCloseBrace || tok.Type == TokenSemicolon {
			break
		}
		p.next()
		if tok.Type == TokenAngleClose && depth == 0 {
			break
		}
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("("):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")"):
			depth--
		case tok.Is(",") && depth == 0:
			params = append(params, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		params = append(params, cur)
	}

	names := []string{}
	for _, param := range params {
		if name := templateParamName(param); name != "" {
			names = append(names, name)
		}
	}
	p.ctx.template = names
}

func templateParamName(param []Token) string {
	end := len(param)
	depth := 0
	for i, tok := range param {
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("("):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")"):
			depth--
		case tok.Is("=") && depth == 0:
			end = i
		}
		if end != len(param) {
			break
		}
	}
	for i := end - 1; i >= 0; i-- {
		if param[i].Type == TokenIdent {
			return param[i].Value
		}
		if param[i].Type == TokenAngleClose {
			break
		}
	}
	return ""
}

// parseClassHead parses "class|struct|union|enum name [: bases] {". When the
// keyword does not start a definition (elaborated type, forward declaration
// handled in place) it returns the consumed tokens so the caller can treat
// them as the start of an ordinary declaration.
func (p *Parser) parseClassHead() []Token {
	p.state = StateAwaitingClassName
	keyTok := p.next()
	kind := Kind(keyTok.Value)
	consumed := []Token{keyTok}
	if kind == KindEnum && (p.peek(0).Is("class") || p.peek(0).Is("struct")) {
		consumed = append(consumed, p.next())
	}

	var head []Token
	for {
		tok := p.peek(0)
		switch {
		case tok.Is("[") && p.peek(1).Is("["):
			p.skipAttribute()
			continue
		case (tok.Is("alignas") || tok.Is("__declspec") || tok.Is("__attribute__")) && p.peek(1).Is("("):
			p.next()
			p.skipParens()
			continue
		case tok.Type == TokenIdent, tok.Type == TokenKeyword && tok.Value != "final",
			tok.Is("::"), tok.Type == TokenAngleOpen, tok.Type == TokenAngleClose,
			tok.Type == TokenNumber, tok.Is(","), tok.Is("*") && p.insideAngles(head),
			tok.Type == TokenLiteral && p.insideAngles(head):
			if tok.Is(",") && !p.insideAngles(head) {
				return append(consumed, head...)
			}
			if tok.Type == TokenKeyword && !p.insideAngles(head) && !isTypeKeyword(tok) {
				return append(consumed, head...)
			}
			head = append(head, p.next())
			continue
		case tok.Is("final"), tok.Is("sealed"):
			p.next()
			continue
		case tok.Type == TokenSemicolon:
			if p.ctx.classFrame() != nil && !isSingleName(head) {
				// "struct timeval tv;" declares a field
				return append(consumed, head...)
			}
			// forward declaration
			p.next()
			p.ctx.clearPending()
			return nil
		case tok.Type == TokenColon, tok.Type == TokenOpenBrace:
		default:
			return append(consumed, head...)
		}
		break
	}
	if kind != KindEnum && len(head) > 0 && head[0].Type == TokenKeyword {
		return append(consumed, head...)
	}

	qualifier, name := splitClassName(head)

	var bases []BaseSpec
	if p.peek(0).Type == TokenColon {
		p.next()
		if kind == KindEnum {
			p.skipUntilBrace()
		} else {
			p.state = StateInClassHeader
			bases = p.parseBaseList(kind.DefaultAccess())
		}
	}
	if p.peek(0).Type != TokenOpenBrace {
		// "class Foo : Bar;" or garbage after the base list
		p.skipStatement()
		return nil
	}
	p.next()

	c := &ClassEntity{
		Name:           name,
		Namespace:      append([]string(nil), p.ctx.Namespace()...),
		Kind:           kind,
		Bases:          bases,
		TemplateParams: p.ctx.template,
		File:           p.model.Path,
		StartLine:      keyTok.Line,
	}
	if outer := p.ctx.Class(); outer != nil {
		c.Outer = outer.QualifiedName()
	}
	if len(qualifier) > 0 {
		p.applyQualifier(c, qualifier)
	}
	typedef := p.ctx.typedef
	p.ctx.clearPending()
	p.model.Classes = append(p.model.Classes, c)

	if kind == KindEnum {
		p.parseEnumBody(c)
		p.finishClass(c, typedef)
		return nil
	}
	p.ctx.push(frame{kind: frameClass, class: c, access: kind.DefaultAccess(), typedef: typedef})
	p.state = StateInClassBody
	return nil
}

// isSingleName reports whether head is one possibly qualified or templated
// name, as in "A", "ns::A" or "Box<int>".
func isSingleName(head []Token) bool {
	depth, names := 0, 0
	var prev Token
	for _, tok := range head {
		switch {
		case tok.Type == TokenAngleOpen:
			depth++
		case tok.Type == TokenAngleClose:
			depth--
		case depth == 0 && tok.Type == TokenIdent && !prev.Is("::"):
			names++
		}
		if depth == 0 {
			prev = tok
		}
	}
	return names <= 1
}

func (p *Parser) insideAngles(head []Token) bool {
	depth := 0
	for _, tok := range head {
		switch tok.Type {
		case TokenAngleOpen:
			depth++
		case TokenAngleClose:
			depth--
		}
	}
	return depth > 0
}

// splitClassName takes the trailing qualified name of a class head, dropping
// export macros that precede it.
func splitClassName(head []Token) (qualifier []string, name string) {
	end := len(head)
	start := end
	for start > 0 {
		i := start - 1
		tok := head[i]
		switch {
		case tok.Type == TokenAngleClose:
			depth := 0
			for ; i >= 0; i-- {
				if head[i].Type == TokenAngleClose {
					depth++
				} else if head[i].Type == TokenAngleOpen {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if i <= 0 {
				return nil, joinTokens(head)
			}
			start = i
			continue
		case tok.Type == TokenIdent:
			start = i
			if i > 0 && head[i-1].Is("::") {
				start = i - 1
				continue
			}
		case tok.Is("::"):
			start = i
			continue
		}
		break
	}
	group := head[start:end]
	if len(group) > 0 && group[0].Is("::") {
		group = group[1:]
	}

	var parts []string
	var cur []Token
	depth := 0
	for _, tok := range group {
		switch {
		case tok.Type == TokenAngleOpen:
			depth++
		case tok.Type == TokenAngleClose:
			depth--
		case tok.Is("::") && depth == 0:
			parts = append(parts, joinTokens(cur))
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		parts = append(parts, joinTokens(cur))
	}
	if len(parts) == 0 {
		return nil, ""
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// applyQualifier places "class Outer::Inner {" under Outer when Outer was
// seen in this file, otherwise under the named namespaces.
func (p *Parser) applyQualifier(c *ClassEntity, qualifier []string) {
	scope := append(append([]string(nil), p.ctx.Namespace()...), qualifier...)
	if outer := p.model.Find(strings.Join(scope, "::")); outer != nil && outer.Kind != KindEnum {
		c.Outer = outer.QualifiedName()
		c.Namespace = append([]string(nil), outer.Namespace...)
		return
	}
	c.Namespace = scope
}

func (p *Parser) parseBaseList(defaultAccess Access) []BaseSpec {
	var specs []BaseSpec
	var cur []Token
	depth := 0
	flush := func() {
		if spec, ok := parseBaseSpec(cur, defaultAccess); ok {
			specs = append(specs, spec)
		}
		cur = nil
	}
	for {
		tok := p.peek(0)
		switch {
		case tok.Type == TokenEOF, tok.Type == TokenSemicolon, tok.Type == TokenCloseBrace:
			flush()
			return specs
		case tok.Type == TokenOpenBrace && depth == 0:
			flush()
			return specs
		}
		p.next()
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("("):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")"):
			depth--
		case tok.Is(",") && depth == 0:
			flush()
			continue
		}
		cur = append(cur, tok)
	}
}

func parseBaseSpec(tokens []Token, defaultAccess Access) (BaseSpec, bool) {
	spec := BaseSpec{Access: defaultAccess}
	var typ []Token
	for _, tok := range tokens {
		switch {
		case isAccessKeyword(tok) && len(typ) == 0:
			spec.Access = Access(tok.Value)
		case tok.Is("virtual"):
			spec.Virtual = true
		case tok.Is("..."):
		default:
			typ = append(typ, tok)
		}
	}
	if len(typ) == 0 {
		return spec, false
	}
	spec.Type = joinTokens(typ)
	return spec, true
}

func (p *Parser) parseEnumBody(c *ClassEntity) {
	expectName := true
	depth := 0
	for {
		tok := p.peek(0)
		if tok.Type == TokenEOF {
			p.diag(tok.Line, "enum %s not closed before end of input", c.Name)
			return
		}
		p.next()
		switch {
		case tok.Type == TokenCloseBrace && depth == 0:
			c.EndLine = tok.Line
			return
		case tok.Type == TokenOpenBrace || tok.Is("("):
			depth++
		case tok.Type == TokenCloseBrace || tok.Is(")"):
			depth--
		case tok.Is(",") && depth == 0:
			expectName = true
		case tok.Type == TokenIdent && expectName && depth == 0:
			c.Enumerators = append(c.Enumerators, tok.Value)
			expectName = false
		}
	}
}

// closeFrame pops the frame closed by tok.
func (p *Parser) closeFrame(tok Token) {
	f, ok := p.ctx.pop()
	if !ok {
		p.diag(tok.Line, "unmatched closing brace")
		return
	}
	if f.kind != frameClass {
		return
	}
	f.class.EndLine = tok.Line
	p.finishClass(f.class, f.typedef)
}

// finishClass consumes the declarators that may follow a class body
// ("} name, *ptr;") and names anonymous typedef'd classes.
func (p *Parser) finishClass(c *ClassEntity, typedef bool) {
	var declarators []Token
	if next := p.peek(0); next.Type == TokenIdent || next.Is("*") || next.Is("&") || next.Is("&&") || next.Is("const") || next.Is("volatile") {
		for {
			tok := p.peek(0)
			if tok.Type == TokenEOF || tok.Type == TokenCloseBrace || tok.Type == TokenOpenBrace {
				break
			}
			p.next()
			if tok.Type == TokenSemicolon {
				break
			}
			declarators = append(declarators, tok)
		}
	} else if next.Type == TokenSemicolon {
		p.next()
	}

	if c.Name == "" && typedef {
		for _, tok := range declarators {
			if tok.Type == TokenIdent {
				c.Name = tok.Value
				break
			}
		}
	}
	if c.Name == "" {
		p.removeClass(c)
		p.absorbAnonymous(c, declarators)
		return
	}

	if typedef || len(declarators) == 0 {
		return
	}
	if f := p.ctx.classFrame(); f != nil {
		for _, decl := range splitTopLevel(declarators, ",") {
			if m, ok := declaratorField(decl, []Token{{Type: TokenIdent, Value: c.Name}}, f.access); ok {
				m.Line = c.EndLine
				f.class.Members = append(f.class.Members, m)
			}
		}
	}
}

// absorbAnonymous attributes an unnamed class to the enclosing class: the
// members of "union { int i; float f; };" belong to it directly, and
// "struct { int x; } pos;" declares pos with a placeholder type.
func (p *Parser) absorbAnonymous(c *ClassEntity, declarators []Token) {
	f := p.ctx.classFrame()
	if f == nil {
		p.diag(c.StartLine, "anonymous %s skipped", c.Kind)
		return
	}
	if len(declarators) == 0 {
		for _, m := range c.Members {
			m.Access = f.access
			f.class.Members = append(f.class.Members, m)
		}
		return
	}
	placeholder := []Token{{Type: TokenIdent, Value: string(c.Kind) + " <anonymous>"}}
	for _, decl := range splitTopLevel(declarators, ",") {
		if m, ok := declaratorField(decl, placeholder, f.access); ok {
			m.Line = c.EndLine
			f.class.Members = append(f.class.Members, m)
		}
	}
}

func (p *Parser) removeClass(c *ClassEntity) {
	for i, existing := range p.model.Classes {
		if existing == c {
			p.model.Classes = append(p.model.Classes[:i], p.model.Classes[i+1:]...)
			return
		}
	}
}

// finishOpen finalizes classes left open at end of input.
func (p *Parser) finishOpen() {
	line := p.last.Line
	for {
		f, ok := p.ctx.pop()
		if !ok {
			return
		}
		switch f.kind {
		case frameClass:
			f.class.EndLine = line
			p.diag(line, "%s %s not closed before end of input", f.class.Kind, f.class.Name)
			if f.class.Name == "" {
				p.removeClass(f.class)
			}
		case frameNamespace:
			p.diag(line, "namespace %s not closed before end of input", strings.Join(f.names, "::"))
		}
	}
}

// skipStatement discards tokens through the next ';' or balanced block at
// the current depth. A closing brace of the enclosing scope is left alone.
func (p *Parser) skipStatement() {
	defer p.ctx.clearPending()
	for {
		tok := p.peek(0)
		switch tok.Type {
		case TokenEOF, TokenCloseBrace:
			return
		case TokenSemicolon:
			p.next()
			return
		case TokenOpenBrace:
			p.next()
			p.skipBlock()
			if p.peek(0).Type == TokenSemicolon {
				p.next()
			}
			return
		}
		p.next()
	}
}

// skipBlock consumes tokens up to the brace matching an already consumed '{'.
func (p *Parser) skipBlock() {
	start := p.last.Line
	p.ctx.depth++
	defer func() { p.ctx.depth-- }()
	depth := 1
	for depth > 0 {
		tok := p.next()
		switch tok.Type {
		case TokenEOF:
			p.diag(start, "block opened here is not closed before end of input")
			return
		case TokenOpenBrace:
			depth++
		case TokenCloseBrace:
			depth--
		}
	}
}

func (p *Parser) skipParens() {
	if !p.peek(0).Is("(") {
		return
	}
	p.next()
	depth := 1
	for depth > 0 {
		tok := p.peek(0)
		if tok.Type == TokenEOF || tok.Type == TokenOpenBrace || tok.Type == TokenCloseBrace || tok.Type == TokenSemicolon {
			return
		}
		p.next()
		if tok.Is("(") {
			depth++
		} else if tok.Is(")") {
			depth--
		}
	}
}

func (p *Parser) skipAttribute() {
	// [[ ... ]]
	depth := 0
	for {
		tok := p.peek(0)
		if tok.Type == TokenEOF || tok.Type == TokenOpenBrace || tok.Type == TokenCloseBrace || tok.Type == TokenSemicolon {
			return
		}
		p.next()
		if tok.Is("[") {
			depth++
		} else if tok.Is("]") {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipUntilBrace() {
	for {
		tok := p.peek(0)
		if tok.Type == TokenEOF || tok.Type == TokenOpenBrace || tok.Type == TokenSemicolon || tok.Type == TokenCloseBrace {
			return
		}
		p.next()
	}
}

func (p *Parser) diag(line int, format string, args ...any) {
	p.model.Diagnostics = append(p.model.Diagnostics, Diagnostic{Line: line, Message: fmt.Sprintf(format, args...)})
}

// Token navigation helpers

func (p *Parser) peek(n int) Token {
	for len(p.buf) <= n {
		tok := p.scanner.Next()
		p.buf = append(p.buf, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	if n < len(p.buf) {
		return p.buf[n]
	}
	return p.buf[len(p.buf)-1]
}

func (p *Parser) next() Token {
	tok := p.peek(0)
	if tok.Type == TokenEOF {
		return tok
	}
	p.buf = p.buf[1:]
	p.last = tok
	return tok
}

func isClassKey(tok Token) bool {
	return tok.Type == TokenKeyword && (tok.Value == "class" || tok.Value == "struct" || tok.Value == "union" || tok.Value == "enum")
}

func isAccessKeyword(tok Token) bool {
	return tok.Type == TokenKeyword && (tok.Value == "public" || tok.Value == "protected" || tok.Value == "private")
}

func isTypeKeyword(tok Token) bool {
	switch tok.Value {
	case "void", "bool", "char", "wchar_t", "char8_t", "char16_t", "char32_t",
		"short", "int", "long", "float", "double", "signed", "unsigned", "const", "volatile":
		return true
	}
	return false
}
