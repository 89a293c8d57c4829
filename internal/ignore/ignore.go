package ignore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/logwindow/internal/message"
)

// Kind selects how a Pattern matches a message.
type Kind int

const (
	// KindText matches when the message text contains the value.
	KindText Kind = iota
	// KindPattern matches the message text against a regular expression.
	KindPattern
	// KindFields evaluates a boolean CEL expression over the message fields.
	KindFields
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPattern:
		return "pattern"
	case KindFields:
		return "fields"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a config name onto a Kind. "regex" is accepted for
// KindPattern and "cel" for KindFields.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, nil
	case "pattern", "regex":
		return KindPattern, nil
	case "fields", "cel":
		return KindFields, nil
	}
	return 0, fmt.Errorf("ignore: unknown kind %q", s)
}

// Rule is the uncompiled form of a Pattern.
type Rule struct {
	Kind  string
	Value string
}

// Pattern is a compiled ignore rule. Exactly one of the matcher fields is
// populated, according to Kind.
type Pattern struct {
	Kind  Kind
	Value string

	re   *regexp.Regexp
	prog cel.Program
}

// NewPattern compiles value for kind.
func NewPattern(kind Kind, value string) (*Pattern, error) {
	p := &Pattern{Kind: kind, Value: value}
	switch kind {
	case KindText:
		if value == "" {
			return nil, fmt.Errorf("ignore: empty text pattern")
		}
	case KindPattern:
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("ignore: pattern %q: %w", value, err)
		}
		p.re = re
	case KindFields:
		prog, err := compileFields(value)
		if err != nil {
			return nil, fmt.Errorf("ignore: fields %q: %w", value, err)
		}
		p.prog = prog
	default:
		return nil, fmt.Errorf("ignore: unsupported kind %v", kind)
	}
	return p, nil
}

// Matches reports whether m should be dropped.
func (p *Pattern) Matches(m *message.Message) bool {
	switch p.Kind {
	case KindText:
		return strings.Contains(m.Message, p.Value)
	case KindPattern:
		return p.re.MatchString(m.Message)
	case KindFields:
		return evalFields(p.prog, m)
	}
	return false
}

// Set matches when any of its patterns does. The zero value matches nothing.
type Set struct {
	patterns []*Pattern
}

// NewSet builds a set from already compiled patterns.
func NewSet(patterns ...*Pattern) *Set {
	return &Set{patterns: patterns}
}

// Compile builds a Set from rules, failing on the first invalid one.
func Compile(rules []Rule) (*Set, error) {
	s := &Set{}
	for i, r := range rules {
		kind, err := ParseKind(r.Kind)
		if err != nil {
			return nil, fmt.Errorf("ignore rule %d: %w", i, err)
		}
		p, err := NewPattern(kind, r.Value)
		if err != nil {
			return nil, fmt.Errorf("ignore rule %d: %w", i, err)
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Matches reports whether any pattern in the set matches m.
func (s *Set) Matches(m *message.Message) bool {
	if s == nil {
		return false
	}
	for _, p := range s.patterns {
		if p.Matches(m) {
			return true
		}
	}
	return false
}
