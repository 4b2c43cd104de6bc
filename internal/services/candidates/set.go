package candidates

import "slices"

// Set is a set of lower-case host names.
type Set map[string]struct{}

func NewSet(hosts ...string) Set {
	s := make(Set, len(hosts))
	for _, h := range hosts {
		s.Add(h)
	}
	return s
}

func (s Set) Add(host string) {
	if host != "" {
		s[host] = struct{}{}
	}
}

func (s Set) Has(host string) bool {
	_, ok := s[host]
	return ok
}

// Union adds every member of other to s.
func (s Set) Union(other Set) {
	for h := range other {
		s[h] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
