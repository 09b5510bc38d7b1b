package batch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Sternrassler/ajaxctl/pkg/record"
)

var (
	// ErrUnterminatedTag is returned for a "{{" without a matching "}}".
	ErrUnterminatedTag = errors.New("unterminated template tag")

	// ErrUnsupportedTag is returned for sections, partials and delimiter
	// changes, which record templates do not support.
	ErrUnsupportedTag = errors.New("unsupported template tag")
)

// tagPattern matches {{name}}, {{ name }} and {{{name}}}.
var tagPattern = regexp.MustCompile(`\{\{\{\s*([^{}]*?)\s*\}\}\}|\{\{\s*([^{}]*?)\s*\}\}`)

type segment struct {
	text  string
	field string
	isTag bool
}

// Template is a compiled endpoint or body template. Placeholders name record
// fields, dotted names reach into nested objects. Values are inserted as
// plain text without escaping; unknown fields render empty.
type Template struct {
	source   string
	segments []segment
}

// Compile parses a template.
func Compile(source string) (*Template, error) {
	t := &Template{source: source}

	last := 0
	for _, m := range tagPattern.FindAllStringSubmatchIndex(source, -1) {
		if err := t.addText(source[last:m[0]]); err != nil {
			return nil, err
		}
		last = m[1]

		var name string
		if m[2] >= 0 {
			name = source[m[2]:m[3]]
		} else {
			name = source[m[4]:m[5]]
		}

		switch {
		case strings.HasPrefix(name, "!"):
			continue
		case strings.HasPrefix(name, "&"):
			name = strings.TrimSpace(name[1:])
		case name != "" && strings.ContainsAny(name[:1], "#^/>=<"):
			return nil, fmt.Errorf("%w: {{%s}}", ErrUnsupportedTag, name)
		}
		t.segments = append(t.segments, segment{field: name, isTag: true})
	}
	if err := t.addText(source[last:]); err != nil {
		return nil, err
	}

	return t, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Template {
	t, err := Compile(source)
	if err != nil {
		panic(fmt.Sprintf("batch: Compile(%q): %v", source, err))
	}
	return t
}

func (t *Template) addText(text string) error {
	if text == "" {
		return nil
	}
	if strings.Contains(text, "{{") {
		return fmt.Errorf("%w in %q", ErrUnterminatedTag, t.source)
	}
	t.segments = append(t.segments, segment{text: text})
	return nil
}

// Execute renders the template against a record.
func (t *Template) Execute(r record.Record) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.isTag {
			b.WriteString(r.Text(s.field))
			continue
		}
		b.WriteString(s.text)
	}
	return b.String()
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}
