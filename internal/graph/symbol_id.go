package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"phpsema/internal/types"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BuildStableID creates a deterministic node ID from the unit path, the
// node kind, the qualified name and a short hash of the declaration text.
func BuildStableID(unit string, kind NodeKind, qualified, content string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = "_"
	}
	if kind == "" {
		kind = "symbol"
	}
	qualified = strings.TrimSpace(qualified)
	if qualified == "" {
		qualified = "_"
	}

	fingerprint := strings.Join([]string{
		"php",
		unit,
		string(kind),
		qualified,
		canonicalize(content),
	}, "|")

	return fmt.Sprintf("php/%s:%s:%s:%s", unit, kind, qualified, ContentHash(fingerprint))
}

// ContentHash is the short hash of s with runs of whitespace collapsed.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(canonicalize(s)))
	return hex.EncodeToString(sum[:8])
}

// typedContentHash also changes when the inferred type of the declaration
// does, so a change elsewhere that retypes it still shows.
func typedContentHash(text string, t *types.Type) string {
	return ContentHash(text + "\x00" + strconv.FormatUint(t.Hash(), 16))
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}
