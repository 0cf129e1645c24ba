package gen

import "strings"

// Labels is a deterministic, unbounded sequence of type parameter names:
// A, B, ..., Z, AA, BB, ..., ZZ, AAA, ...
//
// The zero value is ready to use. Two fresh generators produce identical
// sequences.
type Labels struct {
	n int
}

// Next returns the next label. It never returns a label it has already
// returned.
func (l *Labels) Next() string {
	letter := byte('A' + l.n%26)
	reps := l.n/26 + 1
	l.n++
	return strings.Repeat(string(letter), reps)
}

// NextExcept returns the next label not present in reserved. Skipped labels
// are consumed.
func (l *Labels) NextExcept(reserved map[string]bool) string {
	for {
		label := l.Next()
		if !reserved[label] {
			return label
		}
	}
}
