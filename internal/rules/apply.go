package rules

import (
	"strings"
	"unicode"
)

// Apply runs every step of the rule against word and returns the mutated
// candidate. Guards that fail skip their step; the word passes through
// unchanged. Apply is pure and deterministic.
func (r *Rule) Apply(word string) string {
	out, _ := r.ApplyMode(word, GuardModeSkip)
	return out
}

// ApplyMode runs the rule under an explicit guard mode. Under
// GuardModeDrop a failing guard discards the candidate and ApplyMode
// returns false.
func (r *Rule) ApplyMode(word string, mode GuardMode) (string, bool) {
	w := []rune(word)

	for i := range r.steps {
		step := &r.steps[i]
		if step.guard != nil && !step.guard.match(w) {
			if mode == GuardModeDrop {
				return "", false
			}
			continue
		}
		w = step.apply(w)
	}

	return string(w), true
}

func (g *Guard) match(w []rune) bool {
	switch g.kind {
	case guardLenLess:
		return len(w) < g.n
	case guardLenGreater:
		return len(w) > g.n
	case guardLenEqual:
		return len(w) == g.n
	case guardHasDigit:
		for _, c := range w {
			if unicode.IsDigit(c) {
				return true
			}
		}
		return false
	case guardFirstAlpha:
		return len(w) > 0 && unicode.IsLetter(w[0])
	case guardContains:
		return strings.Contains(string(w), g.text)
	}
	return false
}

func (s *Step) apply(w []rune) []rune {
	switch s.op {
	case ':':
		return w
	case 'l':
		return mapRunes(w, unicode.ToLower)
	case 'u':
		return mapRunes(w, unicode.ToUpper)
	case 'c':
		return capitalize(w, true)
	case 'C':
		return capitalize(w, false)
	case 't':
		return mapRunes(w, toggleCase)
	case 'r':
		return reverse(w)
	case 'd':
		return repeat(w, 2)
	case 'p':
		return repeat(w, s.n+1)
	case 'f':
		return append(cloneRunes(w), reverse(w)...)
	case '{':
		return rotateLeft(w, 1)
	case '}':
		return rotateLeft(w, len(w)-1)
	case 's':
		return substitute(w, s.text, s.text2, substituteAll)
	case 'z':
		return substitute(w, s.text, s.text2, substituteFirst)
	case 'Z':
		return substitute(w, s.text, s.text2, substituteLast)
	case '@':
		return purge(w, []rune(s.text)[0])
	case '^':
		return append([]rune(s.text), w...)
	case '$':
		return append(cloneRunes(w), []rune(s.text)...)
	case '<', '\'':
		if s.n < len(w) {
			return w[:s.n]
		}
		return w
	case '>':
		if s.n < len(w) {
			return w[s.n:]
		}
		return nil
	case '(':
		if s.n < len(w) {
			return append(cloneRunes(w[:s.n]), w[s.n+1:]...)
		}
		return w
	case ')':
		if s.n < len(w) {
			return []rune{w[s.n]}
		}
		return w
	case 'i':
		if s.n > len(w) {
			return w
		}
		arg := []rune(s.text)
		out := make([]rune, 0, len(w)+len(arg))
		out = append(out, w[:s.n]...)
		out = append(out, arg...)
		return append(out, w[s.n:]...)
	case 'o':
		if s.n < len(w) {
			out := cloneRunes(w)
			out[s.n] = []rune(s.text)[0]
			return out
		}
		return w
	case 'D':
		if s.n >= len(w) {
			return nil
		}
		return w[:len(w)-s.n]
	case 'x':
		if s.n >= len(w) {
			return nil
		}
		end := s.n + s.m
		if end > len(w) {
			end = len(w)
		}
		return w[s.n:end]
	case 'L':
		return rotateLeft(w, s.n)
	}
	return w
}

func mapRunes(w []rune, f func(rune) rune) []rune {
	out := make([]rune, len(w))
	for i, c := range w {
		out[i] = f(c)
	}
	return out
}

func toggleCase(c rune) rune {
	if unicode.IsUpper(c) {
		return unicode.ToLower(c)
	}
	return unicode.ToUpper(c)
}

// capitalize uppercases the first rune and lowercases the rest; inverted
// when upperFirst is false.
func capitalize(w []rune, upperFirst bool) []rune {
	if len(w) == 0 {
		return w
	}
	out := make([]rune, len(w))
	for i, c := range w {
		if (i == 0) == upperFirst {
			out[i] = unicode.ToUpper(c)
		} else {
			out[i] = unicode.ToLower(c)
		}
	}
	return out
}

func reverse(w []rune) []rune {
	out := make([]rune, len(w))
	for i, c := range w {
		out[len(w)-1-i] = c
	}
	return out
}

func repeat(w []rune, times int) []rune {
	out := make([]rune, 0, len(w)*times)
	for i := 0; i < times; i++ {
		out = append(out, w...)
	}
	return out
}

func rotateLeft(w []rune, n int) []rune {
	if len(w) < 2 {
		return w
	}
	n %= len(w)
	if n == 0 {
		return w
	}
	return append(cloneRunes(w[n:]), w[:n]...)
}

const (
	substituteAll = iota
	substituteFirst
	substituteLast
)

func substitute(w []rune, from, to string, which int) []rune {
	a := []rune(from)[0]
	b := []rune(to)[0]
	out := cloneRunes(w)

	switch which {
	case substituteAll:
		for i, c := range out {
			if c == a {
				out[i] = b
			}
		}
	case substituteFirst:
		for i, c := range out {
			if c == a {
				out[i] = b
				break
			}
		}
	case substituteLast:
		for i := len(out) - 1; i >= 0; i-- {
			if out[i] == a {
				out[i] = b
				break
			}
		}
	}
	return out
}

func purge(w []rune, target rune) []rune {
	out := make([]rune, 0, len(w))
	for _, c := range w {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

func cloneRunes(w []rune) []rune {
	out := make([]rune, len(w))
	copy(out, w)
	return out
}
