package transit

import "time"

// Vehicle is the authoritative live state record for one vehicle.
// It is only ever mutated through accepted location/status/occupancy
// reports, resolved last-write-wins by report timestamp.
type Vehicle struct {
	PrimaryIdentifier string `groups:"basic"`
	VehicleNumber     string `groups:"basic"`
	Type              string `groups:"basic"`

	Capacity int `groups:"basic"`

	RouteRef string `groups:"basic"`

	Location Location `groups:"basic"`

	// km/h
	Speed float64 `groups:"basic"`
	// degrees 0-360
	Heading   float64 `groups:"basic"`
	Occupancy int     `groups:"basic"`

	Status VehicleStatus `groups:"basic"`

	// Retains the last matched stop until a new match occurs
	CurrentStopRef string `groups:"basic"`
	NextStopRef    string `groups:"basic"`

	Direction Direction `groups:"basic"`

	LastUpdated time.Time `groups:"basic"`

	Active bool `groups:"detailed"`
}

type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusInactive    VehicleStatus = "inactive"
	VehicleStatusMaintenance VehicleStatus = "maintenance"
	VehicleStatusOffline     VehicleStatus = "offline"
)

func (s VehicleStatus) IsValid() bool {
	switch s {
	case VehicleStatusActive, VehicleStatusInactive, VehicleStatusMaintenance, VehicleStatusOffline:
		return true
	}

	return false
}

type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)
