package extractor

import (
	"fmt"
	"strings"
)

// TokenType is the coarse lexical category of a Token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenPunct
	TokenOpenBrace
	TokenCloseBrace
	TokenAngleOpen
	TokenAngleClose
	TokenSemicolon
	TokenColon
	TokenLiteral
)

var tokenTypeNames = [...]string{
	TokenEOF:        "eof",
	TokenIdent:      "identifier",
	TokenKeyword:    "keyword",
	TokenNumber:     "number",
	TokenPunct:      "punct",
	TokenOpenBrace:  "open-brace",
	TokenCloseBrace: "close-brace",
	TokenAngleOpen:  "angle-open",
	TokenAngleClose: "angle-close",
	TokenSemicolon:  "semicolon",
	TokenColon:      "colon",
	TokenLiteral:    "literal",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexical fragment. Literal tokens never carry their contents.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// IsWord reports whether the token is an identifier, keyword or number.
func (t Token) IsWord() bool {
	return t.Type == TokenIdent || t.Type == TokenKeyword || t.Type == TokenNumber
}

// Is reports whether the token has the given spelling.
func (t Token) Is(value string) bool {
	return t.Type != TokenEOF && t.Type != TokenLiteral && t.Value == value
}

var keywords = map[string]bool{
	"class": true, "struct": true, "union": true, "enum": true, "namespace": true,
	"public": true, "private": true, "protected": true, "virtual": true,
	"static": true, "const": true, "constexpr": true, "consteval": true, "constinit": true,
	"volatile": true, "mutable": true, "inline": true, "explicit": true, "extern": true,
	"thread_local": true, "register": true, "friend": true, "template": true,
	"typename": true, "using": true, "typedef": true, "operator": true,
	"override": true, "final": true, "noexcept": true, "delete": true,
	"default": true, "new": true, "return": true, "static_assert": true,
	"decltype": true, "auto": true, "alignas": true,
	"void": true, "bool": true, "char": true, "wchar_t": true, "char8_t": true,
	"char16_t": true, "char32_t": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "break": true, "continue": true,
	"this": true, "nullptr": true, "true": true, "false": true,
	"sizeof": true, "requires": true, "concept": true,
}

// Longest first.
var punctuators = []string{
	"<<=", ">>=", "...", "->*",
	"::", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", ".*", "##",
}

type angleMark struct {
	parens int
}

// Scanner turns C++ source text into a lazy sequence of tokens.
// Comments, preprocessor lines and the contents of literals are dropped.
//
// Template angle brackets are recognized heuristically: '<' opens a template
// argument list when it directly follows an identifier (other than
// "operator") or the keyword "template". Anything else is an operator. Known
// misreads include `a < b > c` and comparisons inside default arguments.
type Scanner struct {
	src    string
	pos    int
	line   int
	column int

	prev   Token
	parens int
	angles []angleMark
	done   bool
}

// NewScanner creates a scanner over src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: src, line: 1, column: 1}
}

// Next returns the next token, or a TokenEOF token once input is exhausted.
func (s *Scanner) Next() Token {
	if s.done {
		return Token{Type: TokenEOF, Line: s.line, Column: s.column}
	}
	for {
		s.skipSpaceAndComments()
		if s.pos >= len(s.src) {
			s.done = true
			return Token{Type: TokenEOF, Line: s.line, Column: s.column}
		}
		ch := s.src[s.pos]
		if ch == '#' {
			s.skipPreprocessor()
			continue
		}
		if tok, ok := s.scan(); ok {
			return s.remember(tok)
		}
	}
}

// Tokenize drains the scanner into a slice.
func Tokenize(src string) []Token {
	s := NewScanner(src)
	var tokens []Token
	for tok := s.Next(); tok.Type != TokenEOF; tok = s.Next() {
		tokens = append(tokens, tok)
	}
	return tokens
}

func (s *Scanner) remember(tok Token) Token {
	s.prev = tok
	return tok
}

func (s *Scanner) scan() (Token, bool) {
	line, col := s.line, s.column
	ch := s.src[s.pos]

	switch {
	case ch == '"' || ch == '\'':
		s.skipLiteral(ch)
		return Token{Type: TokenLiteral, Value: string([]byte{ch, ch}), Line: line, Column: col}, true
	case isIdentStart(ch):
		return s.scanIdentifier(line, col), true
	case isDigit(ch) || (ch == '.' && isDigit(s.peekAt(1))):
		return s.scanNumber(line, col), true
	}

	switch ch {
	case '{':
		s.advance()
		s.angles = s.angles[:0]
		return Token{Type: TokenOpenBrace, Value: "{", Line: line, Column: col}, true
	case '}':
		s.advance()
		s.angles = s.angles[:0]
		return Token{Type: TokenCloseBrace, Value: "}", Line: line, Column: col}, true
	case ';':
		s.advance()
		s.angles = s.angles[:0]
		return Token{Type: TokenSemicolon, Value: ";", Line: line, Column: col}, true
	case '(':
		s.advance()
		s.parens++
		return Token{Type: TokenPunct, Value: "(", Line: line, Column: col}, true
	case ')':
		s.advance()
		if s.parens > 0 {
			s.parens--
		}
		// angles opened inside the closed parens were not template lists
		for len(s.angles) > 0 && s.angles[len(s.angles)-1].parens > s.parens {
			s.angles = s.angles[:len(s.angles)-1]
		}
		return Token{Type: TokenPunct, Value: ")", Line: line, Column: col}, true
	case '<':
		if s.opensTemplate() && !strings.HasPrefix(s.src[s.pos:], "<<") && !strings.HasPrefix(s.src[s.pos:], "<=") {
			s.advance()
			s.angles = append(s.angles, angleMark{parens: s.parens})
			return Token{Type: TokenAngleOpen, Value: "<", Line: line, Column: col}, true
		}
	case '>':
		if len(s.angles) > 0 && !strings.HasPrefix(s.src[s.pos:], ">=") {
			s.advance()
			s.angles = s.angles[:len(s.angles)-1]
			return Token{Type: TokenAngleClose, Value: ">", Line: line, Column: col}, true
		}
	case ':':
		if s.peekAt(1) != ':' {
			s.advance()
			return Token{Type: TokenColon, Value: ":", Line: line, Column: col}, true
		}
	}

	for _, p := range punctuators {
		if strings.HasPrefix(s.src[s.pos:], p) {
			s.advanceN(len(p))
			return Token{Type: TokenPunct, Value: p, Line: line, Column: col}, true
		}
	}

	s.advance()
	if ch < 0x20 || ch >= 0x7f {
		// stray control bytes and non-ASCII punctuation carry no structure
		return Token{}, false
	}
	return Token{Type: TokenPunct, Value: string(ch), Line: line, Column: col}, true
}

func (s *Scanner) opensTemplate() bool {
	switch s.prev.Type {
	case TokenIdent:
		return true
	case TokenKeyword:
		return s.prev.Value == "template"
	}
	return false
}

func (s *Scanner) scanIdentifier(line, col int) Token {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.advance()
	}
	word := s.src[start:s.pos]

	// encoding prefixes and raw strings: L"..", u8'..', R"x(..)x"
	if s.pos < len(s.src) && (s.src[s.pos] == '"' || s.src[s.pos] == '\'') && isLiteralPrefix(word) {
		quote := s.src[s.pos]
		if quote == '"' && strings.HasSuffix(word, "R") {
			s.skipRawString()
		} else {
			s.skipLiteral(quote)
		}
		return Token{Type: TokenLiteral, Value: string([]byte{quote, quote}), Line: line, Column: col}
	}

	typ := TokenIdent
	if keywords[word] {
		typ = TokenKeyword
	}
	return Token{Type: typ, Value: word, Line: line, Column: col}
}

func (s *Scanner) scanNumber(line, col int) Token {
	start := s.pos
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case isIdentPart(ch) || ch == '.':
			s.advance()
		case ch == '\'' && isIdentPart(s.peekAt(1)):
			// digit separator
			s.advance()
		case (ch == '+' || ch == '-') && s.pos > start && strings.ContainsRune("eEpP", rune(s.src[s.pos-1])):
			s.advance()
		default:
			return Token{Type: TokenNumber, Value: s.src[start:s.pos], Line: line, Column: col}
		}
	}
	return Token{Type: TokenNumber, Value: s.src[start:s.pos], Line: line, Column: col}
}

func (s *Scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v':
			s.advance()
		case ch == '\\' && (s.peekAt(1) == '\n' || s.peekAt(1) == '\r'):
			s.advance()
		case ch == '/' && s.peekAt(1) == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.advance()
			}
		case ch == '/' && s.peekAt(1) == '*':
			s.advanceN(2)
			for s.pos < len(s.src) && !(s.src[s.pos] == '*' && s.peekAt(1) == '/') {
				s.advance()
			}
			s.advanceN(2)
		default:
			return
		}
	}
}

func (s *Scanner) skipPreprocessor() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		switch {
		case s.src[s.pos] == '\\' && s.peekAt(1) == '\n':
			s.advanceN(2)
		case s.src[s.pos] == '\\' && s.peekAt(1) == '\r' && s.peekAt(2) == '\n':
			s.advanceN(3)
		case s.src[s.pos] == '/' && s.peekAt(1) == '*':
			// a block comment may carry the directive onto the next lines
			s.advanceN(2)
			for s.pos < len(s.src) && !(s.src[s.pos] == '*' && s.peekAt(1) == '/') {
				s.advance()
			}
			s.advanceN(2)
		default:
			s.advance()
		}
	}
}

func (s *Scanner) skipLiteral(quote byte) {
	s.advance()
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '\\':
			s.advanceN(2)
		case ch == quote:
			s.advance()
			return
		case ch == '\n':
			// unterminated; give up at end of line
			return
		default:
			s.advance()
		}
	}
}

func (s *Scanner) skipRawString() {
	s.advance() // opening quote
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '(' && s.src[s.pos] != '\n' && s.pos-start <= 16 {
		s.advance()
	}
	if s.pos >= len(s.src) || s.src[s.pos] != '(' {
		return
	}
	terminator := ")" + s.src[start:s.pos] + "\""
	s.advance()
	end := strings.Index(s.src[s.pos:], terminator)
	if end < 0 {
		s.advanceN(len(s.src) - s.pos)
		return
	}
	s.advanceN(end + len(terminator))
}

func (s *Scanner) advance() {
	if s.pos >= len(s.src) {
		return
	}
	if s.src[s.pos] == '\n' {
		s.line++
		s.column = 1
	} else {
		s.column++
	}
	s.pos++
}

func (s *Scanner) advanceN(n int) {
	for i := 0; i < n; i++ {
		s.advance()
	}
}

func (s *Scanner) peekAt(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLiteralPrefix(word string) bool {
	switch word {
	case "L", "u", "U", "u8", "R", "LR", "uR", "UR", "u8R":
		return true
	}
	return false
}
