// Package ribbon is the single-slot notification surface. It is either hidden
// or showing exactly one alert; a newer alert replaces the current one.
package ribbon

import (
	"errors"
	"sync"

	"tourist-overwatch/pkg/ontology"
)

var (
	ErrRibbonHidden  = errors.New("ribbon is not visible")
	ErrStaleRibbon   = errors.New("ribbon alert was replaced")
	ErrUnknownAction = errors.New("unknown ribbon action")
)

// Outcome is what a terminal action closed.
type Outcome struct {
	Action   ontology.RibbonAction `json:"action"`
	Alert    ontology.AlertEvent   `json:"alert"`
	Instance uint64                `json:"instance"`
}

type Controller struct {
	mu       sync.Mutex
	current  *ontology.AlertEvent
	instance uint64
}

func NewController() *Controller {
	return &Controller{}
}

// Show surfaces ev, replacing whatever was visible.
func (c *Controller) Show(ev ontology.AlertEvent) ontology.RibbonState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instance++
	c.current = &ev
	return c.stateLocked()
}

// Act hides the ribbon for one of the four terminal actions. Instance zero
// targets whatever is showing; any other value must match the current
// instance.
func (c *Controller) Act(action ontology.RibbonAction, instance uint64) (Outcome, error) {
	if !action.Valid() {
		return Outcome{}, ErrUnknownAction
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if instance != 0 && instance != c.instance {
		return Outcome{}, ErrStaleRibbon
	}
	if c.current == nil {
		return Outcome{}, ErrRibbonHidden
	}

	out := Outcome{Action: action, Alert: *c.current, Instance: c.instance}
	c.current = nil
	return out, nil
}

func (c *Controller) State() ontology.RibbonState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() ontology.RibbonState {
	state := ontology.RibbonState{Instance: c.instance}
	if c.current != nil {
		ev := *c.current
		state.Visible = true
		state.Alert = &ev
	}
	return state
}
