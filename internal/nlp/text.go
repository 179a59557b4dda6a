// Package nlp turns a free-text analytics question into structured pieces:
// an intent, an entity set and a follow-up decision. Every stage is an
// ordered table of (phrase, result) rules evaluated by one dispatch routine.
package nlp

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text, drops punctuation and splits it into words.
// Digits, '+' and inner '-' survive so "55+" and "18-25" stay whole;
// a "-wise" suffix becomes its own word ("state-wise" → "state wise").
func Tokenize(text string) []string {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, "-wise", " wise")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" || f == "+" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// phrase is a whole-word token sequence.
type phrase []string

func newPhrase(s string) phrase {
	return phrase(strings.Fields(s))
}

func (p phrase) String() string {
	return strings.Join(p, " ")
}

// at reports whether p occurs in words starting at i.
func (p phrase) at(words []string, i int) bool {
	if i < 0 || i+len(p) > len(words) {
		return false
	}
	for j := range p {
		if words[i+j] != p[j] {
			return false
		}
	}
	return true
}

// index returns every start position of p in words.
func (p phrase) index(words []string) []int {
	var out []int
	for i := 0; i+len(p) <= len(words); i++ {
		if p.at(words, i) {
			out = append(out, i)
		}
	}
	return out
}

func (p phrase) in(words []string) bool {
	for i := 0; i+len(p) <= len(words); i++ {
		if p.at(words, i) {
			return true
		}
	}
	return false
}

// rule pairs a phrase with the value it produces.
type rule[T any] struct {
	phrase phrase
	result T
}

// firstMatch walks rules in order and returns the first whose phrase occurs in words.
func firstMatch[T any](rules []rule[T], words []string) (rule[T], bool) {
	for _, r := range rules {
		if r.phrase.in(words) {
			return r, true
		}
	}
	var zero rule[T]
	return zero, false
}

func rules[T any](result T, phrases ...string) []rule[T] {
	out := make([]rule[T], 0, len(phrases))
	for _, p := range phrases {
		out = append(out, rule[T]{phrase: newPhrase(p), result: result})
	}
	return out
}
