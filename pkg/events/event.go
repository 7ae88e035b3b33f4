package events

import "time"

type EventType string

const (
	EventTypeVehicleLocationUpdate  EventType = "vehicle-location-update"
	EventTypeLocationUpdated        EventType = "location-updated"
	EventTypeVehicleArrival         EventType = "vehicle-arrival"
	EventTypeVehicleStatusUpdate    EventType = "vehicle-status-update"
	EventTypeVehicleOccupancyUpdate EventType = "vehicle-occupancy-update"

	// One-time reply on joining a route topic, not a standing topic guarantee
	EventTypeRouteVehicles EventType = "route-vehicles"
)

type Event struct {
	Type      EventType   `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Body      interface{} `json:"data"`
}

func NewEvent(eventType EventType, body interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Body:      body,
	}
}
