package transit

import "time"

// TrackingRecord is an append-only historical position for one vehicle.
// Records are immutable once written and expire out of the history store
// once older than the retention window.
type TrackingRecord struct {
	VehicleRef string `groups:"basic"`
	RouteRef   string `groups:"basic"`

	Location Location `groups:"basic"`

	Speed    float64 `groups:"basic"`
	Heading  float64 `groups:"basic"`
	Accuracy float64 `groups:"detailed"`

	Occupancy int `groups:"basic"`

	Status TrackingStatus `groups:"basic"`

	// Set when the report matched a stop within the threshold distance
	StopRef          string  `groups:"basic"`
	DistanceFromStop float64 `groups:"basic"`

	Timestamp time.Time `groups:"basic"`

	EstimatedArrival *time.Time `groups:"detailed"`
}

type TrackingStatus string

const (
	TrackingStatusMoving    TrackingStatus = "moving"
	TrackingStatusStopped   TrackingStatus = "stopped"
	TrackingStatusBoarding  TrackingStatus = "boarding"
	TrackingStatusAlighting TrackingStatus = "alighting"
)

func (s TrackingStatus) IsValid() bool {
	switch s {
	case TrackingStatusMoving, TrackingStatusStopped, TrackingStatusBoarding, TrackingStatusAlighting:
		return true
	}

	return false
}
