package tracker

import "github.com/transitlive/transitlive/pkg/transit"

// DefaultMatchThresholdMeters is how close a vehicle must be to a stop
// for the report to count as calling at it.
const DefaultMatchThresholdMeters = 100

// Equidistant candidates within this tolerance are tie-broken by route
// sequence, earliest wins.
const distanceTieToleranceMeters = 1e-6

type StopCandidate struct {
	Stop     transit.Stop
	Sequence int
}

type StopMatch struct {
	Stop           transit.Stop
	Sequence       int
	DistanceMeters float64
}

// NearestStop returns the closest candidate to location if and only if
// it lies within maxDistanceMeters. Pure function over its inputs.
func NearestStop(location *transit.Location, candidates []StopCandidate, maxDistanceMeters float64) (StopMatch, bool) {
	var best StopMatch
	found := false

	for _, candidate := range candidates {
		if candidate.Stop.Location == nil {
			continue
		}

		distance := location.Distance(candidate.Stop.Location)

		if !found ||
			distance < best.DistanceMeters-distanceTieToleranceMeters ||
			(distance <= best.DistanceMeters+distanceTieToleranceMeters && candidate.Sequence < best.Sequence) {
			best = StopMatch{
				Stop:           candidate.Stop,
				Sequence:       candidate.Sequence,
				DistanceMeters: distance,
			}
			found = true
		}
	}

	if !found || best.DistanceMeters > maxDistanceMeters {
		return StopMatch{}, false
	}

	return best, true
}
