package tracker

import (
	"testing"

	"github.com/transitlive/transitlive/pkg/transit"
)

func testStop(identifier string, longitude float64, latitude float64) transit.Stop {
	location := transit.NewPoint(longitude, latitude)

	return transit.Stop{
		PrimaryIdentifier: identifier,
		PrimaryName:       identifier,
		Location:          &location,
		Active:            true,
	}
}

func TestNearestStopPicksClosest(t *testing.T) {
	location := transit.NewPoint(-0.1278, 51.5074)

	candidates := []StopCandidate{
		{Stop: testStop("STOP_FAR", -0.1278, 51.5080), Sequence: 1},
		{Stop: testStop("STOP_NEAR", -0.1278, 51.5076), Sequence: 2},
		{Stop: testStop("STOP_FURTHEST", -0.1278, 51.5090), Sequence: 3},
	}

	match, matched := NearestStop(&location, candidates, DefaultMatchThresholdMeters)
	if !matched {
		t.Fatal("expected a match")
	}

	if match.Stop.PrimaryIdentifier != "STOP_NEAR" {
		t.Errorf("matched %s, expected STOP_NEAR", match.Stop.PrimaryIdentifier)
	}
	if match.Sequence != 2 {
		t.Errorf("Sequence = %d, expected 2", match.Sequence)
	}
}

func TestNearestStopEquidistantTieBreaksOnSequence(t *testing.T) {
	location := transit.NewPoint(-0.1278, 51.5074)

	// Same coordinates, so exactly equidistant. The later-sequence
	// candidate comes first to prove order of the slice does not decide.
	candidates := []StopCandidate{
		{Stop: testStop("STOP_LATE", -0.1278, 51.5078), Sequence: 5},
		{Stop: testStop("STOP_EARLY", -0.1278, 51.5078), Sequence: 2},
	}

	match, matched := NearestStop(&location, candidates, DefaultMatchThresholdMeters)
	if !matched {
		t.Fatal("expected a match")
	}

	if match.Stop.PrimaryIdentifier != "STOP_EARLY" {
		t.Errorf("matched %s, expected STOP_EARLY", match.Stop.PrimaryIdentifier)
	}
}

func TestNearestStopThresholdIsInclusive(t *testing.T) {
	location := transit.NewPoint(-0.1278, 51.5074)
	stop := testStop("STOP1", -0.1278, 51.5083)

	distance := location.Distance(stop.Location)
	candidates := []StopCandidate{{Stop: stop, Sequence: 1}}

	if _, matched := NearestStop(&location, candidates, distance); !matched {
		t.Error("expected a match exactly at the threshold")
	}

	if _, matched := NearestStop(&location, candidates, distance-0.01); matched {
		t.Error("expected no match just inside the threshold")
	}
}

func TestNearestStopSkipsCandidatesWithoutLocation(t *testing.T) {
	location := transit.NewPoint(-0.1278, 51.5074)

	candidates := []StopCandidate{
		{Stop: transit.Stop{PrimaryIdentifier: "STOP_NO_LOCATION"}, Sequence: 1},
		{Stop: testStop("STOP1", -0.1278, 51.5076), Sequence: 2},
	}

	match, matched := NearestStop(&location, candidates, DefaultMatchThresholdMeters)
	if !matched {
		t.Fatal("expected a match")
	}

	if match.Stop.PrimaryIdentifier != "STOP1" {
		t.Errorf("matched %s, expected STOP1", match.Stop.PrimaryIdentifier)
	}
}

func TestNearestStopNoCandidates(t *testing.T) {
	location := transit.NewPoint(-0.1278, 51.5074)

	if _, matched := NearestStop(&location, nil, DefaultMatchThresholdMeters); matched {
		t.Error("expected no match with no candidates")
	}
}
