// Package event provides ordered callback lists with opaque removal tokens.
//
// Lists are copy-on-write: Add and Remove always install a fresh backing
// slice, so a dispatch that already started keeps iterating the snapshot it
// captured and never allocates.
package event

import (
	"fmt"
	"sync/atomic"
)

var lastToken atomic.Uint64

// Token identifies one registration. The zero Token is never issued.
type Token struct {
	id uint64
}

// Valid reports whether t was issued by a list.
func (t Token) Valid() bool {
	return t.id != 0
}

func (t Token) String() string {
	return fmt.Sprintf("token#%d", t.id)
}

func newToken() Token {
	return Token{id: lastToken.Add(1)}
}

// CallbackError reports a callback that panicked during dispatch.
type CallbackError struct {
	Token Token
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s panicked: %v", e.Token, e.Value)
}

// Reporter receives callback failures. Dispatch continues after reporting.
type Reporter func(error)

type entry[T any] struct {
	token Token
	fn    func(T)
}

// List is an ordered sequence of callbacks receiving a T.
// It is not safe for concurrent use.
type List[T any] struct {
	entries []entry[T]
}

// Add appends fn and returns its token.
func (l *List[T]) Add(fn func(T)) Token {
	tok := newToken()
	// full slice expression forces a copy so live snapshots are never written
	l.entries = append(l.entries[:len(l.entries):len(l.entries)], entry[T]{token: tok, fn: fn})
	return tok
}

// Remove detaches the callback registered under tok.
// It returns false if tok is not registered on this list.
func (l *List[T]) Remove(tok Token) bool {
	for i, e := range l.entries {
		if e.token != tok {
			continue
		}
		next := make([]entry[T], 0, len(l.entries)-1)
		next = append(next, l.entries[:i]...)
		next = append(next, l.entries[i+1:]...)
		l.entries = next
		return true
	}
	return false
}

// Has reports whether tok is registered on this list.
func (l *List[T]) Has(tok Token) bool {
	for _, e := range l.entries {
		if e.token == tok {
			return true
		}
	}
	return false
}

// Len returns the number of registered callbacks.
func (l *List[T]) Len() int {
	return len(l.entries)
}

// Dispatch invokes every callback registered at call time with v, in
// registration order. A panicking callback is recovered and handed to
// report (if non-nil); the remaining callbacks still run.
func (l *List[T]) Dispatch(v T, report Reporter) {
	snapshot := l.entries
	for _, e := range snapshot {
		invoke(e, v, report)
	}
}

func invoke[T any](e entry[T], v T, report Reporter) {
	defer func() {
		if r := recover(); r != nil && report != nil {
			report(&CallbackError{Token: e.token, Value: r})
		}
	}()
	e.fn(v)
}
