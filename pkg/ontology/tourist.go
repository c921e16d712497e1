package ontology

type TouristStatus string

const (
	StatusSafe          TouristStatus = "safe"
	StatusSensitiveZone TouristStatus = "warning"
	StatusEmergency     TouristStatus = "sos"
)

func (s TouristStatus) Valid() bool {
	switch s {
	case StatusSafe, StatusSensitiveZone, StatusEmergency:
		return true
	}
	return false
}

// Tourist is a tracked entity. TripReference is issued once and never changes.
type Tourist struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	TripReference string        `json:"trip_ref"`
	Nationality   string        `json:"nationality"`
	Phone         string        `json:"phone"`
	Status        TouristStatus `json:"status"`
	Location      Location      `json:"location"`
	LastSeen      string        `json:"last_seen"`
}

type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}
