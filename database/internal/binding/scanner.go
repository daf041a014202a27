// Package binding compiles SQL templates that use :name or ? placeholders into
// driver placeholders and binds ordered parameter data to them.
package binding

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Style is the placeholder style found in a template.
type Style uint8

const (
	// StyleNone means the template has no placeholders.
	StyleNone Style = iota
	// StyleNamed means :name placeholders.
	StyleNamed
	// StylePositional means ? placeholders.
	StylePositional
)

func (s Style) String() string {
	switch s {
	case StyleNamed:
		return "named"
	case StylePositional:
		return "positional"
	default:
		return "none"
	}
}

type token struct {
	name  string // empty for ?
	start int
	end   int
}

type scanner struct {
	query  string
	tokens []token
	// literals holds offsets of ? characters inside quotes, comments and dollar-quoted bodies
	literals []int
	// backslash makes a backslash escape the next character inside '...' and "..."
	backslash bool
}

// scan walks the query once, skipping quoted strings, identifiers, comments,
// PostgreSQL :: casts and $tag$ bodies, and collects placeholder tokens.
func (s *scanner) scan() error {
	q := s.query
	i := 0
	for i < len(q) {
		r, w := utf8.DecodeRuneInString(q[i:])
		switch r {
		case '\'', '"', '`':
			j, err := s.skipQuoted(i+w, r)
			if err != nil {
				return err
			}
			i = j
			continue
		case '-':
			if strings.HasPrefix(q[i:], "--") {
				i = s.skipLineComment(i + 2)
				continue
			}
		case '/':
			if strings.HasPrefix(q[i:], "/*") {
				j, err := s.skipBlockComment(i + 2)
				if err != nil {
					return err
				}
				i = j
				continue
			}
		case '$':
			j, ok, err := s.skipDollarQuoted(i)
			if err != nil {
				return err
			}
			if ok {
				i = j
				continue
			}
		case ':':
			if strings.HasPrefix(q[i:], "::") {
				i += 2
				continue
			}
			if name, end := parseIdent(q, i+1); name != "" {
				s.tokens = append(s.tokens, token{name: name, start: i, end: end})
				i = end
				continue
			}
		case '?':
			s.tokens = append(s.tokens, token{start: i, end: i + 1})
		}
		i += w
	}
	return nil
}

func (s *scanner) markLiterals(from, to int) {
	for k := from; k < to; k++ {
		if s.query[k] == '?' {
			s.literals = append(s.literals, k)
		}
	}
}

func (s *scanner) skipQuoted(i int, quote rune) (int, error) {
	start := i
	q := s.query
	for i < len(q) {
		r, w := utf8.DecodeRuneInString(q[i:])
		i += w
		if r == '\\' && s.backslash && quote != '`' {
			if i < len(q) {
				_, w = utf8.DecodeRuneInString(q[i:])
				i += w
			}
			continue
		}
		if r == quote {
			if i < len(q) && rune(q[i]) == quote {
				i++
				continue
			}
			s.markLiterals(start, i)
			return i, nil
		}
	}
	switch quote {
	case '\'':
		return 0, syntaxError("unterminated single-quoted string")
	case '"':
		return 0, syntaxError("unterminated double-quoted identifier")
	default:
		return 0, syntaxError("unterminated backtick-quoted identifier")
	}
}

func (s *scanner) skipLineComment(i int) int {
	start := i
	q := s.query
	for i < len(q) {
		if q[i] == '\n' {
			s.markLiterals(start, i)
			return i + 1
		}
		i++
	}
	s.markLiterals(start, i)
	return i
}

func (s *scanner) skipBlockComment(i int) (int, error) {
	q := s.query
	start := i
	for i < len(q)-1 {
		if q[i] == '*' && q[i+1] == '/' {
			s.markLiterals(start, i)
			return i + 2, nil
		}
		i++
	}
	return 0, syntaxError("unterminated block comment")
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ bodies.
func (s *scanner) skipDollarQuoted(i int) (int, bool, error) {
	q := s.query
	j := i + 1
	for j < len(q) && q[j] != '$' && isTagChar(rune(q[j])) {
		j++
	}
	if j >= len(q) || q[j] != '$' {
		return 0, false, nil
	}
	// $1 style positional references are not dollar quotes
	if j > i+1 && unicode.IsDigit(rune(q[i+1])) {
		return 0, false, nil
	}
	tag := q[i : j+1]
	body := j + 1
	idx := strings.Index(q[body:], tag)
	if idx < 0 {
		return 0, true, syntaxError("unterminated dollar-quoted string")
	}
	s.markLiterals(body, body+idx)
	return body + idx + len(tag), true, nil
}

func isTagChar(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		i += w
	}
	if i == start {
		return "", i
	}
	return s[start:i], i
}
