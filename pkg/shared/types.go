package shared

import (
	"time"
)

// API Response types
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Event is the journal record for anything a session accepted or emitted.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Subject   string                 `json:"subject"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	// Sequence orders a session's events in the order the engine saw them.
	Sequence  uint64                 `json:"sequence"`
}

// Health check
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Uptime    time.Duration     `json:"uptime,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Constants
const (
	// Roles offered by the login form
	RolePolice  = "police"
	RoleTourism = "tourism"

	// Notice levels
	NoticeSuccess = "success"
	NoticeWarning = "warning"

	// Event Types
	EventTypeAlertEmitted   = "alert_emitted"
	EventTypeAlertResolved  = "alert_resolved"
	EventTypeSelected       = "tourist_selected"
	EventTypeNavigated      = "navigated"
	EventTypeRibbonAction   = "ribbon_action"
	EventTypeDispatch       = "dispatch_requested"
	EventTypeSessionStarted = "session_started"
	EventTypeSessionEnded   = "session_ended"
)
