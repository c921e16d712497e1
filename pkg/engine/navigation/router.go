package navigation

import (
	"errors"
	"fmt"
	"sync"

	"tourist-overwatch/pkg/ontology"
)

var (
	ErrUnknownView = errors.New("unknown view")
	ErrNoSelection = errors.New("tourist detail requires a selected tourist")
)

// Resolver finds a tourist by id or trip reference.
type Resolver interface {
	Resolve(ref string) (ontology.Tourist, error)
}

// Router tracks the active view and the selected tourist. Every operation
// either applies fully or leaves the state untouched.
type Router struct {
	resolver Resolver

	mu    sync.Mutex
	state ontology.NavigationState
}

func NewRouter(resolver Resolver) *Router {
	return &Router{
		resolver: resolver,
		state: ontology.NavigationState{
			ActiveView:   ontology.ViewDashboard,
			PreviousView: ontology.ViewDashboard,
		},
	}
}

func (r *Router) State() ontology.NavigationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SelectEntity opens the detail view for ref. The view active before the
// selection is remembered for Back; reselecting from the detail view keeps
// the original one.
func (r *Router) SelectEntity(ref string) (ontology.Tourist, error) {
	tourist, err := r.resolver.Resolve(ref)
	if err != nil {
		return ontology.Tourist{}, fmt.Errorf("select %q: %w", ref, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state
	if next.ActiveView != ontology.ViewEntityDetail {
		next.PreviousView = next.ActiveView
	}
	next.ActiveView = ontology.ViewEntityDetail
	next.SelectedTouristID = tourist.ID

	if err := checkInvariant(next); err != nil {
		return ontology.Tourist{}, err
	}
	r.state = next
	return tourist, nil
}

// NavigateTo switches views. The dashboard always clears the selection,
// other views keep it so the detail view can be re-entered later.
func (r *Router) NavigateTo(view ontology.View) (ontology.NavigationState, error) {
	if !view.Valid() {
		return ontology.NavigationState{}, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state
	next.ActiveView = view
	if view == ontology.ViewDashboard {
		next.SelectedTouristID = ""
	}

	if err := checkInvariant(next); err != nil {
		return r.state, err
	}
	r.state = next
	return r.state, nil
}

// Back leaves the detail view for the view it was entered from and clears
// the selection. From any other view it returns to the dashboard.
func (r *Router) Back() ontology.NavigationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state
	if next.ActiveView == ontology.ViewEntityDetail {
		next.ActiveView = next.PreviousView
	} else {
		next.ActiveView = ontology.ViewDashboard
	}
	next.SelectedTouristID = ""
	next.PreviousView = ontology.ViewDashboard

	r.state = next
	return r.state
}

func checkInvariant(s ontology.NavigationState) error {
	if s.ActiveView == ontology.ViewEntityDetail && !s.HasSelection() {
		return ErrNoSelection
	}
	return nil
}
