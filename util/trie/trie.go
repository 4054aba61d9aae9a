// Package trie stores values under domain patterns, keyed label by label from
// the top level domain down.
//
// A pattern label "*" matches exactly one label. A leading "+" label matches
// one or more labels, so "+.example.com" matches "a.example.com" and
// "a.b.example.com" but not "example.com".
package trie

import (
	"errors"
	"strings"
)

var ErrInvalidDomain = errors.New("invalid domain pattern")

type Trie[T any] struct {
	next map[string]*Trie[T]
	data T
	set  bool
}

func New[T any]() *Trie[T] {
	return &Trie[T]{next: make(map[string]*Trie[T])}
}

func split(domain string) []string {
	return strings.Split(strings.TrimSuffix(strings.ToLower(domain), "."), ".")
}

func (t *Trie[T]) Insert(domain string, data T) error {
	labels := split(domain)
	for i, l := range labels {
		if l == "" || (l == "+" && i != 0) {
			return ErrInvalidDomain
		}
	}

	cur := t
	for i := len(labels) - 1; i >= 0; i-- {
		n, exist := cur.next[labels[i]]
		if !exist {
			n = New[T]()
			cur.next[labels[i]] = n
		}
		cur = n
	}
	cur.data = data
	cur.set = true
	return nil
}

// Search returns the value of the most specific pattern matching domain.
func (t *Trie[T]) Search(domain string) (T, bool) {
	return t.search(split(domain))
}

func (t *Trie[T]) search(labels []string) (T, bool) {
	if len(labels) == 0 {
		return t.data, t.set
	}

	last, rest := labels[len(labels)-1], labels[:len(labels)-1]
	if n, exist := t.next[last]; exist {
		if v, ok := n.search(rest); ok {
			return v, true
		}
	}
	if n, exist := t.next["*"]; exist {
		if v, ok := n.search(rest); ok {
			return v, true
		}
	}
	if n, exist := t.next["+"]; exist && n.set {
		return n.data, true
	}

	var zero T
	return zero, false
}

func (t *Trie[T]) Empty() bool {
	return len(t.next) == 0 && !t.set
}
