// Package rules implements the password mutation rule engine: parsing
// line-oriented rule files and applying parsed rules to base words to
// produce candidate passwords.
package rules

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// GuardMode controls what happens to a candidate when a step's guard fails.
type GuardMode int

const (
	// GuardModeSkip skips only the guarded step; the word passes through
	// unchanged and later steps in the rule still apply.
	GuardModeSkip GuardMode = iota
	// GuardModeDrop discards the whole candidate when any guard fails.
	GuardModeDrop
)

// Guard kinds
const (
	guardLenLess = iota
	guardLenGreater
	guardLenEqual
	guardHasDigit
	guardFirstAlpha
	guardContains
)

// Guard is a predicate attached to a single mutation step, evaluated
// against the word as it stands when the step is reached.
type Guard struct {
	kind int
	n    int
	text string
}

// Step is one mutation operation: an opcode with optional arguments and
// an optional guard.
type Step struct {
	op    byte
	text  string // argument text for ^ $ s @ z Z i o and guard patterns
	text2 string // second char argument for s z Z
	n     int    // first numeric argument
	m     int    // second numeric argument
	guard *Guard
}

// Rule is an ordered list of mutation steps. Immutable once parsed.
type Rule struct {
	raw   string
	steps []Step
}

// String returns the original rule text.
func (r *Rule) String() string { return r.raw }

// ParseError reports a malformed rule. Line is 1-based when the rule came
// from a file and zero when parsed standalone.
type ParseError struct {
	Line int
	Rule string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("rule parse error at line %d, position %d: %s (rule %q)", e.Line, e.Pos, e.Msg, e.Rule)
	}
	return fmt.Sprintf("rule parse error at position %d: %s (rule %q)", e.Pos, e.Msg, e.Rule)
}

type parser struct {
	rule string
	pos  int
}

func (p *parser) errf(format string, v ...interface{}) error {
	return &ParseError{Rule: p.rule, Pos: p.pos, Msg: fmt.Sprintf(format, v...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.rule) }

func (p *parser) next() byte {
	c := p.rule[p.pos]
	p.pos++
	return c
}

// takeChar consumes one argument character.
func (p *parser) takeChar(op byte) (string, error) {
	if p.eof() {
		return "", p.errf("operation %q missing character argument", string(op))
	}
	return string(p.next()), nil
}

// takeText consumes argument text up to the next whitespace, at least one
// character. Used by ^ and $ which accept char-or-text arguments.
func (p *parser) takeText(op byte) (string, error) {
	start := p.pos
	for !p.eof() && p.rule[p.pos] != ' ' && p.rule[p.pos] != '\t' {
		p.pos++
	}
	if p.pos == start {
		return "", p.errf("operation %q missing text argument", string(op))
	}
	return p.rule[start:p.pos], nil
}

// takePos consumes one positional argument encoded as 0-9 or A-Z (10-35).
func (p *parser) takePos(op byte) (int, error) {
	if p.eof() {
		return 0, p.errf("operation %q missing numeric argument", string(op))
	}
	c := p.next()
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, nil
	}
	return 0, p.errf("operation %q has invalid numeric argument %q", string(op), string(c))
}

func (p *parser) parseGuard() (*Guard, error) {
	if p.eof() {
		return nil, p.errf("guard missing condition")
	}
	c := p.next()
	switch c {
	case '<':
		n, err := p.takePos('?')
		if err != nil {
			return nil, err
		}
		return &Guard{kind: guardLenLess, n: n}, nil
	case '>':
		n, err := p.takePos('?')
		if err != nil {
			return nil, err
		}
		return &Guard{kind: guardLenGreater, n: n}, nil
	case '=':
		n, err := p.takePos('?')
		if err != nil {
			return nil, err
		}
		return &Guard{kind: guardLenEqual, n: n}, nil
	case 'd':
		return &Guard{kind: guardHasDigit}, nil
	case 'a':
		return &Guard{kind: guardFirstAlpha}, nil
	case 'p':
		text, err := p.takeText('?')
		if err != nil {
			return nil, err
		}
		return &Guard{kind: guardContains, text: text}, nil
	}
	return nil, p.errf("unknown guard condition %q", string(c))
}

func (p *parser) parseStep() (Step, error) {
	op := p.next()
	step := Step{op: op}

	switch op {
	case ':', 'l', 'u', 'c', 'C', 't', 'r', 'd', 'f', '{', '}':
		// no arguments
	case 's', 'z', 'Z':
		a, err := p.takeChar(op)
		if err != nil {
			return step, err
		}
		b, err := p.takeChar(op)
		if err != nil {
			return step, err
		}
		step.text, step.text2 = a, b
	case '@':
		a, err := p.takeChar(op)
		if err != nil {
			return step, err
		}
		step.text = a
	case '^', '$':
		text, err := p.takeText(op)
		if err != nil {
			return step, err
		}
		step.text = text
	case '<', '>', '\'', '(', ')', 'D', 'L', 'p':
		n, err := p.takePos(op)
		if err != nil {
			return step, err
		}
		step.n = n
	case 'i', 'o':
		n, err := p.takePos(op)
		if err != nil {
			return step, err
		}
		a, err := p.takeChar(op)
		if err != nil {
			return step, err
		}
		step.n, step.text = n, a
	case 'x':
		n, err := p.takePos(op)
		if err != nil {
			return step, err
		}
		m, err := p.takePos(op)
		if err != nil {
			return step, err
		}
		step.n, step.m = n, m
	default:
		p.pos--
		return step, p.errf("unknown opcode %q", string(op))
	}

	return step, nil
}

// ParseRule parses a single rule string into an immutable Rule.
func ParseRule(text string) (*Rule, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Rule: text, Msg: "empty rule"}
	}

	p := &parser{rule: trimmed}
	rule := &Rule{raw: trimmed}

	for !p.eof() {
		if c := p.rule[p.pos]; c == ' ' || c == '\t' {
			p.pos++
			continue
		}

		var guard *Guard
		if p.rule[p.pos] == '?' {
			p.pos++
			g, err := p.parseGuard()
			if err != nil {
				return nil, err
			}
			guard = g
			// A guard must wrap exactly one following operation.
			for !p.eof() && (p.rule[p.pos] == ' ' || p.rule[p.pos] == '\t') {
				p.pos++
			}
			if p.eof() {
				return nil, p.errf("guard has no operation to wrap")
			}
		}

		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		step.guard = guard
		rule.steps = append(rule.steps, step)
	}

	if len(rule.steps) == 0 {
		return nil, &ParseError{Rule: text, Msg: "empty rule"}
	}
	return rule, nil
}

// ParseRules reads line-oriented rule text: one rule per line, lines
// starting with # are comments, blank lines are ignored. Parsing fails
// fast on the first malformed rule, reporting its line number.
func ParseRules(r io.Reader) ([]*Rule, error) {
	var parsed []*Rule

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := ParseRule(line)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Line = lineNo
			}
			return nil, err
		}
		parsed = append(parsed, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	return parsed, nil
}

// MustParse parses a rule and panics on error. Intended for tests and
// static rule tables.
func MustParse(text string) *Rule {
	rule, err := ParseRule(text)
	if err != nil {
		panic(err)
	}
	return rule
}
