package history

import (
	"time"

	"github.com/faultstack/faultline/internal/models"
)

// Entry is the compact per-error record retained for correlation lookups.
type Entry struct {
	Seq       uint64
	ID        string
	Timestamp time.Time
	Component string
	Category  models.Category
	Severity  models.Severity
}

// Store is a bounded, sequence-numbered arena of recent error observations
// with by-component and by-category lookup lists. Capacity eviction happens
// on write; retention-window filtering happens on read. The zero Seq marks an
// empty arena slot, so sequence numbers start at 1.
//
// Store is not safe for concurrent use on its own; the Correlator owns the
// lock and is the only writer.
type Store struct {
	capacity    int
	retention   time.Duration
	next        uint64
	ring        []Entry
	byComponent map[string][]uint64
	byCategory  map[models.Category][]uint64
}

// NewStore creates a store retaining up to capacity entries for at most the
// retention duration.
func NewStore(capacity int, retention time.Duration) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &Store{
		capacity:    capacity,
		retention:   retention,
		next:        1,
		ring:        make([]Entry, capacity),
		byComponent: make(map[string][]uint64),
		byCategory:  make(map[models.Category][]uint64),
	}
}

// Retention reports the configured retention window.
func (s *Store) Retention() time.Duration {
	return s.retention
}

// Append records an entry, evicting the oldest once capacity is reached, and
// returns the assigned sequence number.
func (s *Store) Append(e Entry) uint64 {
	seq := s.next
	s.next++
	e.Seq = seq
	s.ring[seq%uint64(s.capacity)] = e

	s.byComponent[e.Component] = s.appendIndexed(s.byComponent[e.Component], seq)
	s.byCategory[e.Category] = s.appendIndexed(s.byCategory[e.Category], seq)
	return seq
}

// appendIndexed adds seq to an index list, compacting dead references once the
// list outgrows the arena. A list can never hold more than capacity live seqs.
func (s *Store) appendIndexed(list []uint64, seq uint64) []uint64 {
	list = append(list, seq)
	if len(list) > s.capacity {
		compacted := list[:0]
		for _, old := range list {
			if _, ok := s.entryAt(old); ok {
				compacted = append(compacted, old)
			}
		}
		list = compacted
	}
	return list
}

// entryAt resolves a sequence number to its entry if it has not been evicted.
func (s *Store) entryAt(seq uint64) (Entry, bool) {
	if seq == 0 || seq >= s.next {
		return Entry{}, false
	}
	e := s.ring[seq%uint64(s.capacity)]
	if e.Seq != seq {
		return Entry{}, false
	}
	return e, true
}

// ByComponent returns live entries for a component at or after since, most
// recently appended first, capped at limit when limit > 0.
func (s *Store) ByComponent(component string, since time.Time, limit int) []Entry {
	return s.collect(s.byComponent[component], since, limit)
}

// ByCategory returns live entries for a category at or after since, most
// recently appended first, capped at limit when limit > 0.
func (s *Store) ByCategory(category models.Category, since time.Time, limit int) []Entry {
	return s.collect(s.byCategory[category], since, limit)
}

func (s *Store) collect(list []uint64, since time.Time, limit int) []Entry {
	if len(list) == 0 {
		return nil
	}
	out := make([]Entry, 0, minInt(len(list), limit))
	for i := len(list) - 1; i >= 0; i-- {
		e, ok := s.entryAt(list[i])
		if !ok || e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// InWindow returns live entries at or after since regardless of identity,
// most recently appended first, capped at limit when limit > 0.
func (s *Store) InWindow(since time.Time, limit int) []Entry {
	out := make([]Entry, 0, 8)
	for seq := s.next - 1; seq >= 1; seq-- {
		e, ok := s.entryAt(seq)
		if !ok {
			break
		}
		if !e.Timestamp.Before(since) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		if s.next-seq >= uint64(s.capacity) {
			break
		}
	}
	return out
}

// CountInWindow counts live entries at or after since.
func (s *Store) CountInWindow(since time.Time) int {
	count := 0
	for seq := s.next - 1; seq >= 1; seq-- {
		e, ok := s.entryAt(seq)
		if !ok {
			break
		}
		if !e.Timestamp.Before(since) {
			count++
		}
		if s.next-seq >= uint64(s.capacity) {
			break
		}
	}
	return count
}

// Recent returns the newest live entries within retention, newest first.
func (s *Store) Recent(now time.Time, limit int) []Entry {
	return s.InWindow(now.Add(-s.retention), limit)
}

// Len reports the number of live entries in the arena.
func (s *Store) Len() int {
	n := int(s.next - 1)
	if n > s.capacity {
		return s.capacity
	}
	return n
}

// Reset drops all history.
func (s *Store) Reset() {
	s.next = 1
	s.ring = make([]Entry, s.capacity)
	s.byComponent = make(map[string][]uint64)
	s.byCategory = make(map[models.Category][]uint64)
}

func minInt(a, b int) int {
	if b > 0 && b < a {
		return b
	}
	return a
}
