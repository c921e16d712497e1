// Package registry holds the tracked tourists for a process. The set is
// fixed once built; callers only read it.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"tourist-overwatch/pkg/ontology"
)

var ErrTouristNotFound = errors.New("tourist not found")

type Registry struct {
	tourists []ontology.Tourist
	byID     map[string]int
	byTrip   map[string]int
}

// New copies tourists into a registry. Duplicate ids or trip references are
// rejected since both are lookup keys.
func New(tourists []ontology.Tourist) (*Registry, error) {
	r := &Registry{
		tourists: make([]ontology.Tourist, len(tourists)),
		byID:     make(map[string]int, len(tourists)),
		byTrip:   make(map[string]int, len(tourists)),
	}
	copy(r.tourists, tourists)

	for i, t := range r.tourists {
		if t.ID == "" || t.TripReference == "" {
			return nil, errors.New("tourist id and trip reference are required")
		}
		if !t.Status.Valid() {
			return nil, fmt.Errorf("tourist %s has invalid status %q", t.ID, t.Status)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tourist id %s", t.ID)
		}
		if _, dup := r.byTrip[t.TripReference]; dup {
			return nil, fmt.Errorf("duplicate trip reference %s", t.TripReference)
		}
		r.byID[t.ID] = i
		r.byTrip[t.TripReference] = i
	}
	return r, nil
}

func (r *Registry) LookupByID(id string) (ontology.Tourist, error) {
	i, ok := r.byID[id]
	if !ok {
		return ontology.Tourist{}, ErrTouristNotFound
	}
	return r.tourists[i], nil
}

func (r *Registry) LookupByTripReference(ref string) (ontology.Tourist, error) {
	i, ok := r.byTrip[ref]
	if !ok {
		return ontology.Tourist{}, ErrTouristNotFound
	}
	return r.tourists[i], nil
}

// Resolve accepts either a tourist id or a trip reference.
func (r *Registry) Resolve(ref string) (ontology.Tourist, error) {
	if t, err := r.LookupByID(ref); err == nil {
		return t, nil
	}
	return r.LookupByTripReference(ref)
}

// All returns a fresh copy on every call.
func (r *Registry) All() []ontology.Tourist {
	out := make([]ontology.Tourist, len(r.tourists))
	copy(out, r.tourists)
	return out
}

func (r *Registry) Len() int {
	return len(r.tourists)
}

// Search matches query case-insensitively against name, trip reference,
// nationality and location name. An empty status matches any status.
func (r *Registry) Search(query string, status ontology.TouristStatus) []ontology.Tourist {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []ontology.Tourist{}
	for _, t := range r.tourists {
		if status != "" && t.Status != status {
			continue
		}
		if q != "" && !matchesTourist(t, q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesTourist(t ontology.Tourist, q string) bool {
	for _, field := range []string{t.Name, t.TripReference, t.Nationality, t.Location.Name} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (r *Registry) StatusCounts() map[ontology.TouristStatus]int {
	counts := map[ontology.TouristStatus]int{
		ontology.StatusSafe:          0,
		ontology.StatusSensitiveZone: 0,
		ontology.StatusEmergency:     0,
	}
	for _, t := range r.tourists {
		counts[t.Status]++
	}
	return counts
}
