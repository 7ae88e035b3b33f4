package tracker

import (
	"math"
	"testing"
)

func TestEstimateETAMinutes(t *testing.T) {
	tests := []struct {
		name           string
		distanceMeters float64
		speedKmH       float64
		minutes        float64
	}{
		{"one km at 60km/h", 1000, 60, 1},
		{"half km at 30km/h", 500, 30, 1},
		{"five km at 20km/h", 5000, 20, 15},
		{"already there", 0, 40, 0},
		{"stationary vehicle", 1000, 0, IndeterminateETAMinutes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minutes := EstimateETAMinutes(tt.distanceMeters, tt.speedKmH)
			if math.Abs(minutes-tt.minutes) > 1e-9 {
				t.Errorf("EstimateETAMinutes(%f, %f) = %f, expected %f", tt.distanceMeters, tt.speedKmH, minutes, tt.minutes)
			}
		})
	}
}
