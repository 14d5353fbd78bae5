package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Value)
	}
	return out
}

func types(tokens []Token) []TokenType {
	out := make([]TokenType, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Type)
	}
	return out
}

func TestScanner_Basics(t *testing.T) {
	tokens := Tokenize("class A : public B { int x; };")
	assert.Equal(t, []string{"class", "A", ":", "public", "B", "{", "int", "x", ";", "}", ";"}, values(tokens))
	assert.Equal(t, []TokenType{
		TokenKeyword, TokenIdent, TokenColon, TokenKeyword, TokenIdent, TokenOpenBrace,
		TokenKeyword, TokenIdent, TokenSemicolon, TokenCloseBrace, TokenSemicolon,
	}, types(tokens))
}

func TestScanner_EOFIsSticky(t *testing.T) {
	s := NewScanner("x")
	assert.Equal(t, TokenIdent, s.Next().Type)
	for i := 0; i < 3; i++ {
		assert.Equal(t, TokenEOF, s.Next().Type)
	}
}

func TestScanner_Positions(t *testing.T) {
	tokens := Tokenize("int a;\n  float b;")
	require.Len(t, tokens, 6)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[3].Line)
	assert.Equal(t, 3, tokens[3].Column)
}

func TestScanner_SkipsCommentsAndPreprocessor(t *testing.T) {
	src := `// class Hidden {};
#define MACRO(x) \
	class AlsoHidden {};
#if 0 /* multi
line */
/* class Block { }; */
struct Visible {};`
	assert.Empty(t, Tokenize("#if 0"))
	tokens := Tokenize(src)
	assert.Equal(t, []string{"struct", "Visible", "{", "}", ";"}, values(tokens))
	assert.Equal(t, 7, tokens[0].Line)
}

func TestScanner_NeutralizesLiterals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"string with braces", `f("{ class X; }");`, []string{"f", "(", `""`, ")", ";"}},
		{"escaped quote", `s = "a\"}";`, []string{"s", "=", `""`, ";"}},
		{"char literal", `c = '}';`, []string{"c", "=", "''", ";"}},
		{"escaped char", `c = '\'';`, []string{"c", "=", "''", ";"}},
		{"raw string", `r = R"x(")}{ )x";`, []string{"r", "=", `""`, ";"}},
		{"prefixed", `w = L"{"; u = u8"}";`, []string{"w", "=", `""`, ";", "u", "=", `""`, ";"}},
		{"digit separator", `n = 1'000'000;`, []string{"n", "=", "1'000'000", ";"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, values(Tokenize(tt.src)))
		})
	}
}

func TestScanner_TemplateAngles(t *testing.T) {
	t.Run("nested close", func(t *testing.T) {
		tokens := Tokenize("std::map<int, std::vector<Foo>> m;")
		assert.Equal(t, []string{"std", "::", "map", "<", "int", ",", "std", "::", "vector", "<", "Foo", ">", ">", "m", ";"}, values(tokens))
		assert.Equal(t, TokenAngleOpen, tokens[3].Type)
		assert.Equal(t, TokenAngleClose, tokens[11].Type)
		assert.Equal(t, TokenAngleClose, tokens[12].Type)
	})

	t.Run("comparison is not a template", func(t *testing.T) {
		tokens := Tokenize("if (1 < 2) x = y >> 3;")
		for _, tok := range tokens {
			assert.NotEqual(t, TokenAngleOpen, tok.Type)
			assert.NotEqual(t, TokenAngleClose, tok.Type)
		}
	})

	t.Run("shift after identifier", func(t *testing.T) {
		tokens := Tokenize("out << value;")
		assert.Equal(t, []string{"out", "<<", "value", ";"}, values(tokens))
	})

	t.Run("operator less", func(t *testing.T) {
		tokens := Tokenize("bool operator<(const A&) const;")
		assert.Equal(t, TokenPunct, tokens[2].Type)
	})

	t.Run("template keyword", func(t *testing.T) {
		tokens := Tokenize("template <typename T>")
		assert.Equal(t, TokenAngleOpen, tokens[1].Type)
		assert.Equal(t, TokenAngleClose, tokens[4].Type)
	})

	t.Run("abandoned at semicolon", func(t *testing.T) {
		tokens := Tokenize("a < b; c > d;")
		assert.Equal(t, TokenAngleOpen, tokens[1].Type)
		assert.Equal(t, TokenPunct, tokens[5].Type)
	})

	t.Run("abandoned at closing paren", func(t *testing.T) {
		tokens := Tokenize("f(a < b) > c")
		assert.Equal(t, TokenAngleOpen, tokens[3].Type)
		assert.Equal(t, TokenPunct, tokens[6].Type)
	})
}

func TestScanner_ScopeAndColon(t *testing.T) {
	tokens := Tokenize("a::b : c")
	assert.Equal(t, []TokenType{TokenIdent, TokenPunct, TokenIdent, TokenColon, TokenIdent}, types(tokens))
}

func TestScanner_NonASCIIIdentifiers(t *testing.T) {
	tokens := Tokenize("struct Größe { int länge; };")
	assert.Equal(t, "Größe", tokens[1].Value)
	assert.Equal(t, "länge", tokens[4].Value)
}
