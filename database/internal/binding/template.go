package binding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Template is a compiled SQL template. Every placeholder has been rewritten to ?.
type Template struct {
	query   string
	plain   string
	escaped string
	style   Style
	names   []string // per placeholder, named style only
	count   int
}

// Option adjusts how Compile reads quoted strings.
type Option func(*scanner)

// WithBackslashEscapes treats a backslash inside single- and double-quoted
// strings as escaping the next character, as MySQL and SQLite clients do.
func WithBackslashEscapes() Option {
	return func(s *scanner) {
		s.backslash = true
	}
}

// Compile scans query for :name and ? placeholders. A template may use one style only.
func Compile(query string, opts ...Option) (*Template, error) {
	s := &scanner{query: query}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.scan(); err != nil {
		return nil, err
	}

	t := &Template{query: query, count: len(s.tokens)}
	for _, tok := range s.tokens {
		style := StylePositional
		if tok.name != "" {
			style = StyleNamed
		}
		if t.style != StyleNone && t.style != style {
			return nil, parameterError("mixed named and positional parameters")
		}
		t.style = style
		if tok.name != "" {
			t.names = append(t.names, tok.name)
		}
	}

	var plain, escaped strings.Builder
	plain.Grow(len(query))
	escaped.Grow(len(query) + len(s.literals))

	// tokens and literals are both in ascending offset order
	last, lit := 0, 0
	writeUntil := func(end int) {
		for lit < len(s.literals) && s.literals[lit] < end {
			off := s.literals[lit]
			plain.WriteString(query[last : off+1])
			escaped.WriteString(query[last:off])
			escaped.WriteString("??")
			last = off + 1
			lit++
		}
		plain.WriteString(query[last:end])
		escaped.WriteString(query[last:end])
	}
	for _, tok := range s.tokens {
		writeUntil(tok.start)
		plain.WriteByte('?')
		escaped.WriteByte('?')
		last = tok.end
	}
	writeUntil(len(query))

	t.plain = plain.String()
	t.escaped = escaped.String()
	return t, nil
}

// Query returns the template as written.
func (t *Template) Query() string { return t.query }

// Style returns the placeholder style used by the template.
func (t *Template) Style() Style { return t.style }

// Placeholders returns the number of placeholders in the template.
func (t *Template) Placeholders() int { return t.count }

// Names returns the placeholder names in order of appearance, repeats included.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

// SQL renders the compiled statement for a placeholder format. squirrel.Question
// keeps ? placeholders; squirrel.Dollar numbers them $1..$n.
func (t *Template) SQL(format squirrel.PlaceholderFormat) (string, error) {
	if format == nil || format == squirrel.Question {
		return t.plain, nil
	}
	return format.ReplacePlaceholders(t.escaped)
}

// Arg is one entry of caller-supplied bind data. Named args bind to every :Name
// occurrence. Positional args carry a 0-based Index and bind to placeholder
// position Index+1.
type Arg struct {
	Name  string
	Index int
	Named bool
	Value any
}

// Bind orders args into driver arguments matching the template placeholders.
// Every placeholder must receive a value and every arg must be used.
func (t *Template) Bind(args []Arg) ([]any, error) {
	named, positional := 0, 0
	for _, a := range args {
		if a.Named {
			named++
		} else {
			positional++
		}
	}
	if named > 0 && positional > 0 {
		return nil, parameterError("mixed named and positional keys")
	}

	switch t.style {
	case StyleNone:
		if len(args) > 0 {
			return nil, parameterError(fmt.Sprintf("%d values bound but the statement has no parameters", len(args)))
		}
		return nil, nil
	case StyleNamed:
		if positional > 0 {
			return nil, parameterError("positional values bound to a statement with named parameters")
		}
		return t.bindNamed(args)
	default:
		if named > 0 {
			return nil, parameterError("named values bound to a statement with positional parameters")
		}
		return t.bindPositional(args)
	}
}

func (t *Template) bindNamed(args []Arg) ([]any, error) {
	values := make(map[string]any, len(args))
	for _, a := range args {
		name := strings.TrimPrefix(a.Name, ":")
		if _, dup := values[name]; dup {
			return nil, parameterError(fmt.Sprintf("parameter :%s bound more than once", name))
		}
		values[name] = a.Value
	}

	out := make([]any, len(t.names))
	used := make(map[string]struct{}, len(values))
	for i, name := range t.names {
		v, ok := values[name]
		if !ok {
			return nil, parameterError(fmt.Sprintf("no value bound for :%s", name))
		}
		out[i] = v
		used[name] = struct{}{}
	}

	if len(used) != len(values) {
		var surplus []string
		for name := range values {
			if _, ok := used[name]; !ok {
				surplus = append(surplus, ":"+name)
			}
		}
		sort.Strings(surplus)
		return nil, parameterError(fmt.Sprintf("parameter %s was not defined", strings.Join(surplus, ", ")))
	}
	return out, nil
}

func (t *Template) bindPositional(args []Arg) ([]any, error) {
	if len(args) != t.count {
		return nil, parameterError(fmt.Sprintf("number of bound variables (%d) does not match number of tokens (%d)", len(args), t.count))
	}

	out := make([]any, t.count)
	bound := make([]bool, t.count)
	for _, a := range args {
		// 0-based keys bind to 1-based placeholder positions
		position := a.Index + 1
		if position < 1 || position > t.count {
			return nil, parameterError(fmt.Sprintf("position %d is out of range", position))
		}
		if bound[position-1] {
			return nil, parameterError(fmt.Sprintf("position %d bound more than once", position))
		}
		out[position-1] = a.Value
		bound[position-1] = true
	}
	return out, nil
}
