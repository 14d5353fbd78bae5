package extractor

import "strings"

// braceInit stands in for a skipped "{...}" initializer inside a statement.
var braceInit = Token{Type: TokenPunct, Value: "{}"}

// parseMemberDeclaration collects one member declaration of the innermost
// class, skipping function bodies and brace initializers, and records the
// fields or method it declares.
func (p *Parser) parseMemberDeclaration(prefix []Token) {
	p.state = StateInMemberDeclaration
	defer p.ctx.clearPending()

	stmt := append([]Token(nil), prefix...)
	parens, brackets, angles := 0, 0, 0
	sawParams, sawAssign, initList := false, false, false
	for {
		tok := p.peek(0)
		switch {
		case tok.Type == TokenEOF:
			return
		case tok.Type == TokenCloseBrace:
			// class closed without a terminating ';'
			return
		case isAccessKeyword(tok) && parens == 0 &&
			(p.peek(1).Type == TokenColon || p.peek(1).Type == TokenIdent && p.peek(2).Type == TokenColon):
			// a macro such as Q_OBJECT left without ';' before a label
			return
		case tok.Type == TokenSemicolon:
			p.next()
			p.finishMember(stmt)
			return
		case tok.Type == TokenOpenBrace:
			p.next()
			isBody := sawParams && !sawAssign && (!initList || !endsInitTarget(stmt))
			if isBody {
				p.state = StateInMethodBody
				p.skipBlock()
				p.finishMember(stmt)
				return
			}
			p.skipBlock()
			stmt = append(stmt, braceInit)
			continue
		}

		p.next()
		top := parens == 0 && brackets == 0 && angles == 0
		switch {
		case tok.Is("("):
			afterDecltype := len(stmt) > 0 && stmt[len(stmt)-1].Is("decltype")
			if top && !sawAssign && !afterDecltype {
				sawParams = true
			}
			parens++
		case tok.Is(")"):
			parens--
		case tok.Is("["):
			brackets++
		case tok.Is("]"):
			brackets--
		case tok.Type == TokenAngleOpen:
			angles++
		case tok.Type == TokenAngleClose:
			angles--
		case tok.Is("=") && top:
			if !sawParams {
				sawAssign = true
			}
		case tok.Type == TokenColon && top && sawParams:
			initList = true
		}
		stmt = append(stmt, tok)
	}
}

// endsInitTarget reports whether a '{' after stmt initializes a member or base
// in a constructor's init list rather than opening the body.
func endsInitTarget(stmt []Token) bool {
	if len(stmt) == 0 {
		return false
	}
	last := stmt[len(stmt)-1]
	return last.Type == TokenIdent || last.Type == TokenAngleClose
}

var declSpecifiers = map[string]bool{
	"static": true, "virtual": true, "inline": true, "explicit": true,
	"constexpr": true, "consteval": true, "constinit": true, "mutable": true,
	"extern": true, "thread_local": true, "register": true, "friend": true,
}

// finishMember classifies a collected statement and appends the members it
// declares to the innermost class.
func (p *Parser) finishMember(stmt []Token) {
	f := p.ctx.classFrame()
	if f == nil || len(stmt) == 0 {
		return
	}
	line := stmt[0].Line

	var static, virtual bool
	var toks []Token
	for i := 0; i < len(stmt); i++ {
		tok := stmt[i]
		switch {
		case tok.Is("[") && i+1 < len(stmt) && stmt[i+1].Is("["):
			i = skipGroup(stmt, i, "[", "]")
			continue
		case tok.Is("alignas") || tok.Is("__attribute__") || tok.Is("__declspec"):
			if i+1 < len(stmt) && stmt[i+1].Is("(") {
				i = skipGroup(stmt, i+1, "(", ")")
			}
			continue
		case tok.Is("explicit") && i+1 < len(stmt) && stmt[i+1].Is("("):
			i = skipGroup(stmt, i+1, "(", ")")
			continue
		case declSpecifiers[tok.Value] && tok.Type == TokenKeyword && !pastDeclarator(toks):
			static = static || tok.Value == "static"
			virtual = virtual || tok.Value == "virtual"
			continue
		}
		toks = append(toks, tok)
	}
	if len(toks) == 0 {
		return
	}

	if open := firstParamParen(toks); open >= 0 && !isFunctionPointer(toks, open) {
		m, ok := p.methodMember(toks, open, f.class)
		if !ok {
			return
		}
		m.Access = f.access
		m.Static = static
		m.Virtual = m.Virtual || virtual
		m.Line = line
		f.class.Members = append(f.class.Members, m)
		return
	}

	declarators := splitTopLevel(toks, ",")
	first, ok := declaratorField(declarators[0], nil, f.access)
	if !ok {
		return
	}
	first.Static = static
	first.Line = line
	f.class.Members = append(f.class.Members, first)

	base := baseTypeTokens(declarators[0])
	for _, decl := range declarators[1:] {
		m, ok := declaratorField(decl, base, f.access)
		if !ok {
			continue
		}
		m.Static = static
		m.Line = line
		f.class.Members = append(f.class.Members, m)
	}
}

// pastDeclarator reports whether the collected tokens already end in a
// parameter list, after which specifiers no longer apply.
func pastDeclarator(toks []Token) bool {
	for _, tok := range toks {
		if tok.Is("(") {
			return true
		}
	}
	return false
}

// firstParamParen returns the index of the first '(' at nesting depth zero
// that appears before any initializer, or -1. The operand of decltype is
// not a parameter list.
func firstParamParen(toks []Token) int {
	depth := 0
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("["):
			depth++
		case tok.Type == TokenAngleClose || tok.Is("]"):
			depth--
		case depth != 0:
		case tok.Is("decltype") && i+1 < len(toks) && toks[i+1].Is("("):
			i = skipGroup(toks, i+1, "(", ")")
		case tok.Is("("):
			return i
		case tok.Is("="), tok == braceInit, tok.Type == TokenColon:
			return -1
		}
	}
	return -1
}

// isFunctionPointer recognizes "R (*name)(args)" and "R (Class::*name)(args)".
func isFunctionPointer(toks []Token, open int) bool {
	for i := open + 1; i < len(toks); i++ {
		tok := toks[i]
		switch {
		case tok.Is("*"), tok.Is("&"), tok.Is("^"):
			return true
		case tok.Type == TokenIdent, tok.Is("::"):
			continue
		}
		return false
	}
	return false
}

// methodMember builds a method from tokens whose parameter list opens at open.
func (p *Parser) methodMember(toks []Token, open int, class *ClassEntity) (Member, bool) {
	m := Member{Kind: MemberMethod}

	nameEnd := open
	var ret []Token
	if op := indexOf(toks[:open], "operator"); op >= 0 {
		if op == open-1 && open+2 < len(toks) && toks[open+1].Is(")") && toks[open+2].Is("(") {
			m.Name = "operator()"
			open += 2
		} else {
			m.Name = joinTokens(toks[op:nameEnd])
		}
		ret = toks[:op]
	} else {
		i := nameEnd - 1
		if i >= 0 && toks[i].Type == TokenAngleClose {
			// explicit specialization: name<Args>(...)
			for depth := 0; i >= 0; i-- {
				if toks[i].Type == TokenAngleClose {
					depth++
				} else if toks[i].Type == TokenAngleOpen {
					depth--
					if depth == 0 {
						i--
						break
					}
				}
			}
		}
		if i < 0 || toks[i].Type != TokenIdent {
			return m, false
		}
		m.Name = toks[i].Value
		start := i
		if i > 0 && toks[i-1].Is("~") {
			m.Name = "~" + m.Name
			m.Destructor = true
			start = i - 1
		}
		// drop an out-of-line qualifier: Foo::bar
		for start >= 2 && toks[start-1].Is("::") && toks[start-2].Type == TokenIdent {
			start -= 2
		}
		ret = toks[:start]
	}

	closeIdx := skipGroup(toks, open, "(", ")")
	m.Params = parseParams(toks[open+1 : min(closeIdx, len(toks))])

	if !m.Destructor && len(ret) == 0 && m.Name == class.PureName() {
		m.Constructor = true
	}
	m.Type = joinTokens(ret)

	rest := toks[min(closeIdx+1, len(toks)):]
	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		switch {
		case tok.Is("const"):
			m.Const = true
		case tok.Is("override"), tok.Is("final"):
			m.Virtual = true
		case tok.Is("noexcept") || tok.Is("throw"):
			if i+1 < len(rest) && rest[i+1].Is("(") {
				i = skipGroup(rest, i+1, "(", ")")
			}
		case tok.Is("->"):
			j := i + 1
			for j < len(rest) && !rest[j].Is("=") && !rest[j].Is("override") && !rest[j].Is("final") &&
				!rest[j].Is("requires") && rest[j] != braceInit {
				j++
			}
			if m.Type == "" || m.Type == "auto" || strings.HasSuffix(m.Type, " auto") {
				m.Type = joinTokens(rest[i+1 : j])
			}
			i = j - 1
		case tok.Is("="):
			if i+1 < len(rest) {
				switch next := rest[i+1]; {
				case next.Is("0"):
					m.Abstract = true
					m.Virtual = true
				case next.Is("delete"):
					return m, false
				}
			}
			i++
		case tok.Is("requires"):
			i = len(rest)
		}
	}

	if m.Type == "" && !m.Constructor && !m.Destructor && !strings.HasPrefix(m.Name, "operator") {
		// macro invocation such as Q_OBJECT_HELPER(x)
		return m, false
	}
	return m, true
}

// parseParams renders each parameter without its default argument.
func parseParams(toks []Token) []string {
	if len(toks) == 0 {
		return nil
	}
	var params []string
	for _, param := range splitTopLevel(toks, ",") {
		if eq := indexTopLevel(param, "="); eq >= 0 {
			param = param[:eq]
		}
		if s := joinTokens(param); s != "" {
			params = append(params, s)
		}
	}
	if len(params) == 1 && params[0] == "void" {
		return nil
	}
	return params
}

// declaratorField builds a field from one declarator. With a nil base the
// declarator carries its own type; otherwise base supplies it and the
// declarator contributes only pointer and reference operators.
func declaratorField(decl []Token, base []Token, access Access) (Member, bool) {
	cut := len(decl)
	depth := 0
	for i, tok := range decl {
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("(") || tok.Is("["):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")") || tok.Is("]"):
			depth--
		case depth == 0 && (tok.Is("=") || tok == braceInit || tok.Type == TokenColon):
			cut = i
		}
		if cut != len(decl) {
			break
		}
	}
	decl = decl[:cut]
	if len(decl) == 0 {
		return Member{}, false
	}

	// function pointer: R (*name)(args)
	if open := firstParamParen(decl); open >= 0 && isFunctionPointer(decl, open) {
		closeIdx := skipGroup(decl, open, "(", ")")
		name := -1
		for i := open + 1; i < closeIdx && i < len(decl); i++ {
			if decl[i].Type == TokenIdent {
				name = i
			}
		}
		if name < 0 {
			return Member{}, false
		}
		typ := append(append(append([]Token(nil), base...), decl[:name]...), decl[name+1:]...)
		return Member{Name: decl[name].Value, Type: joinTokens(typ), Kind: MemberField, Access: access}, true
	}

	end := len(decl)
	for end > 0 && decl[end-1].Is("]") {
		end = skipGroupBackward(decl, end-1, "[", "]")
	}
	suffix := joinTokens(decl[end:])
	name := end - 1
	if name < 0 || decl[name].Type != TokenIdent {
		return Member{}, false
	}

	typ := append(append([]Token(nil), base...), decl[:name]...)
	if len(typ) == 0 || !hasTypeWord(typ) {
		return Member{}, false
	}
	return Member{Name: decl[name].Value, Type: joinTokens(typ) + suffix, Kind: MemberField, Access: access}, true
}

func hasTypeWord(toks []Token) bool {
	for _, tok := range toks {
		if tok.IsWord() {
			return true
		}
	}
	return false
}

// baseTypeTokens strips the name and pointer operators from the first
// declarator of "T *a, b" leaving the type shared by later declarators.
func baseTypeTokens(decl []Token) []Token {
	end := len(decl)
	if eq := indexTopLevel(decl, "="); eq >= 0 {
		end = eq
	}
	for i, tok := range decl[:end] {
		if tok == braceInit || tok.Type == TokenColon || tok.Is("[") {
			end = i
			break
		}
	}
	if end > 0 && decl[end-1].Type == TokenIdent {
		end--
	}
	for end > 0 && (decl[end-1].Is("*") || decl[end-1].Is("&") || decl[end-1].Is("&&") || decl[end-1].Is("const") && end > 1 && decl[end-2].Is("*")) {
		end--
	}
	return decl[:end]
}

// splitTopLevel splits toks on sep outside of (), [], <> and braces.
func splitTopLevel(toks []Token, sep string) [][]Token {
	var parts [][]Token
	start, depth := 0, 0
	for i, tok := range toks {
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("(") || tok.Is("["):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")") || tok.Is("]"):
			depth--
		case depth == 0 && tok.Is(sep):
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

func indexTopLevel(toks []Token, value string) int {
	depth := 0
	for i, tok := range toks {
		switch {
		case tok.Type == TokenAngleOpen || tok.Is("(") || tok.Is("["):
			depth++
		case tok.Type == TokenAngleClose || tok.Is(")") || tok.Is("]"):
			depth--
		case depth == 0 && tok.Is(value):
			return i
		}
	}
	return -1
}

func indexOf(toks []Token, value string) int {
	for i, tok := range toks {
		if tok.Is(value) {
			return i
		}
	}
	return -1
}

// skipGroup returns the index of the token closing the group opened at open.
func skipGroup(toks []Token, open int, opener, closer string) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Is(opener) {
			depth++
		} else if toks[i].Is(closer) {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}

func skipGroupBackward(toks []Token, closeIdx int, opener, closer string) int {
	depth := 0
	for i := closeIdx; i >= 0; i-- {
		if toks[i].Is(closer) {
			depth++
		} else if toks[i].Is(opener) {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return 0
}

// joinTokens renders tokens as compact C++: a space follows each comma and
// precedes a word that comes after a word, a '>' or a pointer operator.
func joinTokens(toks []Token) string {
	var sb strings.Builder
	for i, tok := range toks {
		if i > 0 {
			prev := toks[i-1]
			spaced := prev.IsWord() || prev.Type == TokenAngleClose || prev.Is("*") || prev.Is("&") || prev.Is("&&")
			if spaced && tok.IsWord() || prev.Is(",") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(tok.Value)
	}
	return sb.String()
}
