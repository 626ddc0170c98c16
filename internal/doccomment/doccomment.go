// Package doccomment scans doc comments for @tag annotations.
//
// A tag is recognized only at the start of a line (after whitespace and the
// comment markers '*' and '/') and only when the tag name is followed by
// whitespace. The captured value is the next whitespace-delimited token.
package doccomment

import "strings"

// FindTag returns the value of the first @name tag, or "" when there is none.
func FindTag(doc, name string) string {
	if m := scan(doc, name, true); len(m) > 0 {
		return m[0]
	}
	return ""
}

// FindAllTags returns the values of every @name tag in source order.
func FindAllTags(doc, name string) []string {
	return scan(doc, name, false)
}

// HasTag reports whether doc contains @name at the start of a line,
// with or without a value.
func HasTag(doc, name string) bool {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimLeft(line, " \t\r\v\f*/")
		if !strings.HasPrefix(line, "@"+name) {
			continue
		}
		rest := line[len(name)+1:]
		if rest == "" || isSpace(rest[0]) {
			return true
		}
	}
	return false
}

func scan(doc, name string, onlyOne bool) []string {
	var matches []string
	size := len(doc)
	for i := 0; i < size; i++ {
		c := doc[i]
		if isSpace(c) || c == '*' || c == '/' {
			continue
		}
		if c == '@' && strings.HasPrefix(doc[i+1:], name) {
			i += len(name) + 1
			if i >= size || !isSpace(doc[i]) {
				next := strings.IndexByte(doc[min(i, size):], '\n')
				if next < 0 {
					break
				}
				i += next
				continue
			}
			if doc[i] == '\n' {
				continue
			}
			i++
			for i < size && isSpace(doc[i]) {
				i++
			}
			end := i
			for end < size && !isSpace(doc[end]) {
				end++
			}
			if end > i {
				matches = append(matches, doc[i:end])
				if onlyOne {
					break
				}
				i = end
			}
		}
		next := strings.IndexByte(doc[min(i, size):], '\n')
		if next < 0 {
			break
		}
		i += next
	}
	return matches
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// IsDeprecated reports whether doc carries a deprecation marker anywhere.
func IsDeprecated(doc string) bool {
	return strings.Contains(doc, "@deprecated")
}
