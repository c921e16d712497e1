package registry

import (
	"tourist-overwatch/pkg/ontology"
)

// SeedTourists is the tracked set for the Northeast India region.
func SeedTourists() []ontology.Tourist {
	return []ontology.Tourist{
		{
			ID:            "1",
			Name:          "Priya Sharma",
			TripReference: "TRIP-00123",
			Nationality:   "India",
			Phone:         "+91-98765-43210",
			Status:        ontology.StatusSafe,
			Location:      ontology.Location{Name: "Guwahati, Assam", Latitude: 26.7459, Longitude: 94.2157},
			LastSeen:      "2 minutes ago",
		},
		{
			ID:            "2",
			Name:          "James Miller",
			TripReference: "TRIP-00124",
			Nationality:   "USA",
			Phone:         "+1-555-123-4567",
			Status:        ontology.StatusEmergency,
			Location:      ontology.Location{Name: "Kaziranga National Park, Assam", Latitude: 26.6307, Longitude: 93.2229},
			LastSeen:      "30 seconds ago",
		},
		{
			ID:            "3",
			Name:          "Liu Wei",
			TripReference: "TRIP-00125",
			Nationality:   "China",
			Phone:         "+86-138-0013-8000",
			Status:        ontology.StatusSensitiveZone,
			Location:      ontology.Location{Name: "Shillong, Meghalaya", Latitude: 25.5788, Longitude: 91.8933},
			LastSeen:      "15 minutes ago",
		},
		{
			ID:            "4",
			Name:          "Sarah Johnson",
			TripReference: "TRIP-00126",
			Nationality:   "UK",
			Phone:         "+44-20-7946-0958",
			Status:        ontology.StatusSafe,
			Location:      ontology.Location{Name: "Gangtok, Sikkim", Latitude: 27.3389, Longitude: 88.6065},
			LastSeen:      "5 minutes ago",
		},
	}
}

// SeedAlerts is the feed rotation. Emma Wilson and David Chen are not
// registered, so "view details" on their alerts cannot navigate.
func SeedAlerts() []ontology.AlertEvent {
	return []ontology.AlertEvent{
		{
			ID:             "1",
			Kind:           ontology.KindEmergency,
			SubjectName:    "James Miller",
			SubjectTripRef: "TRIP-00124",
			Location:       "Kaziranga National Park, Assam",
			Severity:       ontology.SeverityHigh,
		},
		{
			ID:             "2",
			Kind:           ontology.KindRouteDeviation,
			SubjectName:    "Liu Wei",
			SubjectTripRef: "TRIP-00125",
			Location:       "Shillong, Meghalaya",
			Severity:       ontology.SeverityMedium,
		},
		{
			ID:             "3",
			Kind:           ontology.KindEmergency,
			SubjectName:    "Emma Wilson",
			SubjectTripRef: "TRIP-00127",
			Location:       "Tawang Monastery, Arunachal Pradesh",
			Severity:       ontology.SeverityHigh,
		},
		{
			ID:             "4",
			Kind:           ontology.KindInactivity,
			SubjectName:    "David Chen",
			SubjectTripRef: "TRIP-00128",
			Location:       "Imphal, Manipur",
			Severity:       ontology.SeverityMedium,
		},
	}
}
