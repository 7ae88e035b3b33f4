package tracker

import "time"

// IndeterminateETAMinutes marks a vehicle that is not arriving at its
// current rate (speed zero). Not an error.
const IndeterminateETAMinutes = 999

// EstimateETAMinutes converts a straight-line distance and the
// vehicle's current speed into minutes until arrival.
func EstimateETAMinutes(distanceMeters float64, speedKmH float64) float64 {
	if speedKmH == 0 {
		return IndeterminateETAMinutes
	}

	return (distanceMeters / 1000) / (speedKmH / 60)
}

type ETAEntry struct {
	VehicleRef    string `json:"vehicleRef" groups:"basic"`
	VehicleNumber string `json:"vehicleNumber" groups:"basic"`

	StopRef      string `json:"stopRef" groups:"basic"`
	StopSequence int    `json:"stopSequence" groups:"basic"`

	DistanceMeters float64 `json:"distance" groups:"basic"`
	SpeedKmH       float64 `json:"speed" groups:"basic"`

	Indeterminate    bool      `json:"indeterminate" groups:"basic"`
	EstimatedArrival time.Time `json:"estimatedArrival" groups:"basic"`
}
