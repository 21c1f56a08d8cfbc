package collector

import "sync"

// dedupSet is a session-scoped set of issue keys safe for concurrent use.
type dedupSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newDedupSet() *dedupSet {
	return &dedupSet{keys: make(map[string]struct{})}
}

// add inserts key if absent and reports whether it was new.
func (s *dedupSet) add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}
