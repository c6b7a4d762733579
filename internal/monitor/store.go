package monitor

// Store maps counter names to values. It is owned and mutated by the
// service control loop only, so it carries no locking. Reads on absent
// names are not errors; they are simply omitted from results.
type Store struct {
	counters map[string]int64
}

func NewStore() *Store {
	return &Store{counters: make(map[string]int64)}
}

// Set upserts one counter.
func (s *Store) Set(name string, value int64) {
	s.counters[name] = value
}

// Bump increments one counter by one, creating it at 1 if absent, and
// returns the post-bump value.
func (s *Store) Bump(name string) int64 {
	s.counters[name]++
	return s.counters[name]
}

// Get returns the requested counters that exist; absent names are
// silently omitted.
func (s *Store) Get(names []string) map[string]int64 {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		if value, ok := s.counters[name]; ok {
			out[name] = value
		}
	}
	return out
}

// DumpAll returns a copy of the full mapping.
func (s *Store) DumpAll() map[string]int64 {
	out := make(map[string]int64, len(s.counters))
	for name, value := range s.counters {
		out[name] = value
	}
	return out
}

// Names returns every counter name currently stored.
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.counters))
	for name := range s.counters {
		out = append(out, name)
	}
	return out
}

func (s *Store) Len() int {
	return len(s.counters)
}
