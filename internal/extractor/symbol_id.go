package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BuildClassID creates a deterministic ID for a class entity.
// The ID is derived from its kind, qualified name and template signature, so
// re-parsing an unchanged declaration yields the same ID regardless of the
// file it was found in or its line numbers.
func BuildClassID(c *ClassEntity) string {
	if c == nil {
		return ""
	}

	kind := strings.TrimSpace(string(c.Kind))
	if kind == "" {
		kind = string(KindClass)
	}

	scope := strings.Join(c.Scope(), "::")
	if scope == "" {
		scope = "_"
	}

	name := canonicalize(c.Name)
	if name == "" {
		name = "_"
	}

	fingerprint := strings.Join([]string{
		kind,
		scope,
		name,
		strings.Join(c.TemplateParams, ","),
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	short := hex.EncodeToString(sum[:8])
	return fmt.Sprintf("%s/%s:%s:%s", kind, scope, c.PureName(), short)
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}
