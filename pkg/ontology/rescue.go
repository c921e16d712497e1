package ontology

import (
	"time"
)

type OperationStatus string

const (
	OperationOngoing OperationStatus = "ongoing"
	OperationRescued OperationStatus = "rescued"
	OperationClosed  OperationStatus = "closed"
)

type RescueOperation struct {
	ID             string          `json:"id" db:"operation_id"`
	AlertID        string          `json:"alert_id,omitempty" db:"alert_id"`
	TouristName    string          `json:"tourist_name" db:"tourist_name"`
	TripReference  string          `json:"trip_ref,omitempty" db:"trip_ref"`
	Location       string          `json:"location" db:"location"`
	SOSTime        time.Time       `json:"sos_time" db:"sos_time"`
	UnitDispatched string          `json:"unit_dispatched" db:"unit_dispatched"`
	Status         OperationStatus `json:"status" db:"status"`
	Priority       Severity        `json:"priority" db:"priority"`
	EstimatedTime  string          `json:"estimated_time" db:"estimated_time"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type UpdateOperationRequest struct {
	ID     string          `json:"id" validate:"required"`
	Status OperationStatus `json:"status" validate:"required,oneof=ongoing rescued closed"`
}

type OperationStats struct {
	Ongoing int `json:"ongoing"`
	Rescued int `json:"rescued"`
	Closed  int `json:"closed"`
}

// DispatchRequest asks for a rescue unit for an alert. It is a side channel
// and never changes alert state.
type DispatchRequest struct {
	SessionID     string    `json:"session_id"`
	AlertID       string    `json:"alert_id"`
	TripReference string    `json:"trip_ref"`
	TouristName   string    `json:"tourist"`
	Location      string    `json:"location"`
	Severity      Severity  `json:"severity"`
	RequestedAt   time.Time `json:"requested_at"`
}
