package domain

import "strings"

// StatusSet is a case-insensitive set of status names, resolved once from
// configuration so membership checks are map lookups rather than string scans.
type StatusSet struct {
	names map[string]struct{}
}

// NewStatusSet builds a set from status names, normalizing case and whitespace.
func NewStatusSet(names []string) StatusSet {
	set := StatusSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set.names[n] = struct{}{}
		}
	}
	return set
}

// Contains reports whether status is a member, ignoring case.
func (s StatusSet) Contains(status string) bool {
	_, ok := s.names[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// Len returns the number of members.
func (s StatusSet) Len() int {
	return len(s.names)
}
