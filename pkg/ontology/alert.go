package ontology

import (
	"time"
)

type AlertKind string

const (
	KindEmergency      AlertKind = "sos"
	KindRouteDeviation AlertKind = "deviation"
	KindInactivity     AlertKind = "inactivity"
)

func (k AlertKind) Valid() bool {
	switch k {
	case KindEmergency, KindRouteDeviation, KindInactivity:
		return true
	}
	return false
}

// Label is the human readable name shown on alert cards.
func (k AlertKind) Label() string {
	switch k {
	case KindEmergency:
		return "SOS Alert"
	case KindRouteDeviation:
		return "Route Deviation"
	case KindInactivity:
		return "Prolonged Inactivity"
	default:
		return "Unknown Alert"
	}
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// AlertEvent references its subject by trip reference only. The subject may
// not be known to the registry.
type AlertEvent struct {
	ID             string    `json:"id"`
	Kind           AlertKind `json:"kind"`
	SubjectName    string    `json:"tourist"`
	SubjectTripRef string    `json:"trip_ref"`
	Location       string    `json:"location"`
	Severity       Severity  `json:"severity"`
	RaisedAt       time.Time `json:"raised_at"`
}

type ResolvedAlert struct {
	AlertEvent
	ResolvedAt time.Time `json:"resolved_at"`
}

type AlertStats struct {
	TotalActive         int `json:"total_active"`
	HighSeverityActive  int `json:"high_severity_active"`
	EmergencyKindActive int `json:"emergency_kind_active"`
	ResolvedThisSession int `json:"resolved_this_session"`
}

// AlertFilter is a conjunction of optional predicates. Zero values match
// everything.
type AlertFilter struct {
	Query    string    `json:"q,omitempty"`
	Kind     AlertKind `json:"kind,omitempty" validate:"omitempty,oneof=sos deviation inactivity"`
	Severity Severity  `json:"severity,omitempty" validate:"omitempty,oneof=high medium low"`
}
