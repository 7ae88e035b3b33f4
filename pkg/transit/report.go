package transit

import "time"

// LocationReport is a single observation for one vehicle at one instant,
// as submitted by a GPS device or driver app.
type LocationReport struct {
	VehicleRef string `json:"vehicleId" validate:"required"`

	// [longitude, latitude]
	Coordinates []float64 `json:"coordinates" validate:"required,len=2"`

	Speed     float64 `json:"speed" validate:"gte=0"`
	Heading   float64 `json:"heading" validate:"gte=0,lte=360"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`
	Occupancy int     `json:"occupancy" validate:"gte=0"`

	Status TrackingStatus `json:"status" validate:"omitempty,oneof=moving stopped boarding alighting"`

	Timestamp time.Time `json:"timestamp"`
}

// SetDefaults fills the optional fields the same way the ingestion
// surface advertises them.
func (r *LocationReport) SetDefaults() {
	if r.Accuracy == 0 {
		r.Accuracy = 10
	}

	if r.Status == "" {
		r.Status = TrackingStatusMoving
	}

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
}
