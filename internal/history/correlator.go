package history

import (
	"log/slog"
	"sync"
	"time"

	"github.com/faultstack/faultline/internal/models"
)

// View is what the correlator needs to know about an entry under analysis.
// Category is the effective category, not necessarily the declared one.
type View struct {
	ID        string
	Timestamp time.Time
	Component string
	Category  models.Category
	Severity  models.Severity
}

// Params bounds correlation lookbacks.
type Params struct {
	Window           time.Duration
	ClusterWindow    time.Duration
	ClusterThreshold int
	MaxRelatedIDs    int
}

// DefaultParams returns the correlation bounds used when none are configured.
func DefaultParams() Params {
	return Params{
		Window:           5 * time.Minute,
		ClusterWindow:    time.Minute,
		ClusterThreshold: 3,
		MaxRelatedIDs:    10,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.ClusterWindow <= 0 {
		p.ClusterWindow = d.ClusterWindow
	}
	if p.ClusterThreshold < 2 {
		p.ClusterThreshold = d.ClusterThreshold
	}
	if p.MaxRelatedIDs <= 0 {
		p.MaxRelatedIDs = d.MaxRelatedIDs
	}
	return p
}

// Correlator matches incoming errors against recent history. Reading prior
// history and appending the new observation happen under one lock, so records
// only ever reference strictly earlier entries and concurrent callers cannot
// interleave inside the critical section.
type Correlator struct {
	mu     sync.Mutex
	store  *Store
	params Params
	logger *slog.Logger
}

// NewCorrelator wires a correlator over its backing store.
func NewCorrelator(store *Store, params Params, logger *slog.Logger) *Correlator {
	if store == nil {
		store = NewStore(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{store: store, params: params.withDefaults(), logger: logger}
}

// Observe correlates the entry against prior history, then records it.
func (c *Correlator) Observe(v View) []models.CorrelationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]models.CorrelationRecord, 0, 3)
	since := v.Timestamp.Add(-c.params.Window)

	if v.Component != "" {
		if prior := c.store.ByComponent(v.Component, since, c.params.MaxRelatedIDs); len(prior) > 0 {
			if related := relatedIDs(prior, v.ID); len(related) > 0 {
				records = append(records, models.CorrelationRecord{
					Kind:            models.CorrelationComponent,
					RelatedErrorIDs: related,
					Strength:        groupStrength(len(related)),
				})
			}
		}
	}

	if prior := c.store.ByCategory(v.Category, since, c.params.MaxRelatedIDs); len(prior) > 0 {
		if related := relatedIDs(prior, v.ID); len(related) > 0 {
			records = append(records, models.CorrelationRecord{
				Kind:            models.CorrelationCategory,
				RelatedErrorIDs: related,
				Strength:        groupStrength(len(related)),
			})
		}
	}

	clusterSince := v.Timestamp.Add(-c.params.ClusterWindow)
	priorCount := c.store.CountInWindow(clusterSince)
	if priorCount+1 >= c.params.ClusterThreshold {
		members := c.store.InWindow(clusterSince, c.params.MaxRelatedIDs)
		if related := relatedIDs(members, v.ID); len(related) > 0 {
			records = append(records, models.CorrelationRecord{
				Kind:            models.CorrelationTemporal,
				RelatedErrorIDs: related,
				Strength:        clusterStrength(priorCount+1, c.params.ClusterThreshold),
			})
		}
	}

	c.store.Append(Entry{
		ID:        v.ID,
		Timestamp: v.Timestamp,
		Component: v.Component,
		Category:  v.Category,
		Severity:  v.Severity,
	})
	return records
}

// Recent exposes the newest retained observations for introspection.
func (c *Correlator) Recent(limit int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Recent(time.Now().UTC(), limit)
}

// Len reports how many observations the store currently holds.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Reset drops all correlation history.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Reset()
}

// relatedIDs extracts unique entry IDs, newest first, excluding the entry
// itself. Duplicate submissions of the same ID must never self-correlate.
func relatedIDs(entries []Entry, selfID string) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID == selfID || e.ID == "" {
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		ids = append(ids, e.ID)
	}
	return ids
}

// groupStrength maps the number of related prior errors onto [0,1],
// saturating at three.
func groupStrength(n int) float64 {
	s := float64(n) / 3.0
	if s > 1 {
		s = 1
	}
	return s
}

// clusterStrength maps cluster size onto [0,1], saturating at twice the
// threshold shortfall so barely-qualifying clusters stay below 1.
func clusterStrength(total, threshold int) float64 {
	if threshold < 2 {
		threshold = 2
	}
	s := float64(total) / float64(2*(threshold-1))
	if s > 1 {
		s = 1
	}
	return s
}
