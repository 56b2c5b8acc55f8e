package dedup

// SeenSet is a bounded set of message identifiers used purely for dedup.
// Once capacity is exceeded the oldest entry by insertion order is evicted
// (FIFO, an approximation of LRU). The invariant it protects is "duplicates
// within a session burst are suppressed", not global exactness.
type SeenSet struct {
	capacity int
	order    []string
	ids      map[string]struct{}
}

// NewSeenSet builds a set bounded to the given capacity.
func NewSeenSet(capacity int) *SeenSet {
	return &SeenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Observe inserts id and reports whether it was newly observed. A false
// return means the id is a duplicate and the message must be discarded.
func (s *SeenSet) Observe(id string) bool {
	if _, dup := s.ids[id]; dup {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}

// Len returns the number of tracked identifiers.
func (s *SeenSet) Len() int {
	return len(s.ids)
}
