package alerts

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"tourist-overwatch/pkg/ontology"
)

var ErrAlertNotFound = errors.New("alert not found")

type AddResult int

const (
	Added AddResult = iota
	DuplicateActive
	DuplicateResolved
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case DuplicateActive:
		return "duplicate_active"
	case DuplicateResolved:
		return "duplicate_resolved"
	default:
		return "unknown"
	}
}

type record struct {
	event ontology.AlertEvent
	seq   uint64
}

// Store keeps the session's alert history. Alerts move from the active set
// to the resolved set and are never removed; ids are unique across both.
type Store struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	seq      uint64
	active   map[string]record
	resolved map[string]ontology.ResolvedAlert
	// resolution order
	history []string
}

func NewStore(clk clockwork.Clock) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clk,
		active:   make(map[string]record),
		resolved: make(map[string]ontology.ResolvedAlert),
	}
}

// AddAlert inserts ev into the active set unless its id is already known.
func (s *Store) AddAlert(ev ontology.AlertEvent) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resolved[ev.ID]; ok {
		return DuplicateResolved
	}
	if _, ok := s.active[ev.ID]; ok {
		return DuplicateActive
	}
	s.seq++
	s.active[ev.ID] = record{event: ev, seq: s.seq}
	return Added
}

// ResolveAlert moves an active alert to the resolved set and stamps the
// resolution time. Unknown and already resolved ids report ErrAlertNotFound.
func (s *Store) ResolveAlert(id string) (ontology.ResolvedAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[id]
	if !ok {
		return ontology.ResolvedAlert{}, ErrAlertNotFound
	}
	delete(s.active, id)

	resolved := ontology.ResolvedAlert{AlertEvent: rec.event, ResolvedAt: s.clock.Now()}
	s.resolved[id] = resolved
	s.history = append(s.history, id)
	return resolved, nil
}

// Active returns an active alert by id.
func (s *Store) Active(id string) (ontology.AlertEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.active[id]
	return rec.event, ok
}

func (s *Store) IsResolved(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resolved[id]
	return ok
}

// QueryActive returns matching active alerts, most recently raised first.
// Alerts raised at the same instant keep insertion order.
func (s *Store) QueryActive(filter ontology.AlertFilter) []ontology.AlertEvent {
	s.mu.RLock()
	matched := make([]record, 0, len(s.active))
	for _, rec := range s.active {
		if matches(rec.event, filter) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.event.RaisedAt.Equal(b.event.RaisedAt) {
			return a.event.RaisedAt.After(b.event.RaisedAt)
		}
		return a.seq < b.seq
	})

	out := make([]ontology.AlertEvent, len(matched))
	for i, rec := range matched {
		out[i] = rec.event
	}
	return out
}

// Resolved lists resolved alerts in resolution order.
func (s *Store) Resolved() []ontology.ResolvedAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ontology.ResolvedAlert, 0, len(s.history))
	for _, id := range s.history {
		out = append(out, s.resolved[id])
	}
	return out
}

// Stats is computed on every call.
func (s *Store) Stats() ontology.AlertStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ontology.AlertStats{
		TotalActive:         len(s.active),
		ResolvedThisSession: len(s.resolved),
	}
	for _, rec := range s.active {
		if rec.event.Severity == ontology.SeverityHigh {
			stats.HighSeverityActive++
		}
		if rec.event.Kind == ontology.KindEmergency {
			stats.EmergencyKindActive++
		}
	}
	return stats
}

func matches(ev ontology.AlertEvent, filter ontology.AlertFilter) bool {
	if filter.Kind != "" && ev.Kind != filter.Kind {
		return false
	}
	if filter.Severity != "" && ev.Severity != filter.Severity {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(ev.SubjectName), q) ||
		strings.Contains(strings.ToLower(ev.SubjectTripRef), q) ||
		strings.Contains(strings.ToLower(ev.Location), q)
}
