package event

// Set keeps one List per key and lets callers remove a registration by
// token alone, without remembering which key it was added under.
type Set[K comparable, T any] struct {
	lists map[K]*List[T]
	owner map[Token]K
}

// NewSet creates an empty Set.
func NewSet[K comparable, T any]() *Set[K, T] {
	return &Set[K, T]{
		lists: make(map[K]*List[T]),
		owner: make(map[Token]K),
	}
}

// Add registers fn under key.
func (s *Set[K, T]) Add(key K, fn func(T)) Token {
	l, ok := s.lists[key]
	if !ok {
		l = &List[T]{}
		s.lists[key] = l
	}
	tok := l.Add(fn)
	s.owner[tok] = key
	return tok
}

// Remove detaches the registration identified by tok.
func (s *Set[K, T]) Remove(tok Token) bool {
	key, ok := s.owner[tok]
	if !ok {
		return false
	}
	delete(s.owner, tok)

	l := s.lists[key]
	l.Remove(tok)
	if l.Len() == 0 {
		delete(s.lists, key)
	}
	return true
}

// Len returns the number of callbacks registered under key.
func (s *Set[K, T]) Len(key K) int {
	if l, ok := s.lists[key]; ok {
		return l.Len()
	}
	return 0
}

// Dispatch invokes the callbacks registered under key.
func (s *Set[K, T]) Dispatch(key K, v T, report Reporter) {
	l, ok := s.lists[key]
	if !ok {
		return
	}
	l.Dispatch(v, report)
}
