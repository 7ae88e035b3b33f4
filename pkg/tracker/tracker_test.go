package tracker

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/store"
	"github.com/transitlive/transitlive/pkg/transit"
)

type fakeEntityStore struct {
	mutex sync.Mutex

	stops    map[string]transit.Stop
	routes   map[string]transit.Route
	vehicles map[string]transit.Vehicle

	nearResults []transit.Vehicle
}

func (f *fakeEntityStore) Stop(ctx context.Context, identifier string) (*transit.Stop, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	stop, ok := f.stops[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}

	return &stop, nil
}

func (f *fakeEntityStore) Route(ctx context.Context, identifier string) (*transit.Route, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	route, ok := f.routes[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}

	return &route, nil
}

func (f *fakeEntityStore) RouteStops(ctx context.Context, routeRef string) ([]transit.Stop, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	route, ok := f.routes[routeRef]
	if !ok {
		return nil, store.ErrNotFound
	}

	stops := []transit.Stop{}
	for _, routeStop := range route.Stops {
		if stop, ok := f.stops[routeStop.StopRef]; ok {
			stops = append(stops, stop)
		}
	}

	return stops, nil
}

func (f *fakeEntityStore) Vehicle(ctx context.Context, identifier string) (*transit.Vehicle, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	vehicle, ok := f.vehicles[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}

	return &vehicle, nil
}

func (f *fakeEntityStore) ActiveVehicles(ctx context.Context, routeRef string, limit int64) ([]transit.Vehicle, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	vehicles := []transit.Vehicle{}
	for _, vehicle := range f.vehicles {
		if !vehicle.Active || vehicle.Status != transit.VehicleStatusActive {
			continue
		}
		if routeRef != "" && vehicle.RouteRef != routeRef {
			continue
		}

		vehicles = append(vehicles, vehicle)
	}

	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].PrimaryIdentifier < vehicles[j].PrimaryIdentifier
	})

	return vehicles, nil
}

func (f *fakeEntityStore) VehiclesNear(ctx context.Context, location *transit.Location, radiusMeters float64, limit int64) ([]transit.Vehicle, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return append([]transit.Vehicle{}, f.nearResults...), nil
}

func (f *fakeEntityStore) UpdateVehicle(ctx context.Context, vehicle *transit.Vehicle) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.vehicles[vehicle.PrimaryIdentifier] = *vehicle

	return nil
}

type fakeHistoryStore struct {
	mutex   sync.Mutex
	records []transit.TrackingRecord
}

func (f *fakeHistoryStore) AppendBatch(ctx context.Context, records []transit.TrackingRecord) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.records = append(f.records, records...)

	return nil
}

func (f *fakeHistoryStore) VehicleHistory(ctx context.Context, vehicleRef string, since time.Time, limit int64) ([]transit.TrackingRecord, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	records := []transit.TrackingRecord{}
	for _, record := range f.records {
		if record.VehicleRef != vehicleRef || record.Timestamp.Before(since) {
			continue
		}

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (f *fakeHistoryStore) count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.records)
}

// directRecorder appends synchronously, standing in for the queue and
// its batch consumer
type directRecorder struct {
	history *fakeHistoryStore
}

func (r *directRecorder) Record(record transit.TrackingRecord) {
	r.history.AppendBatch(context.Background(), []transit.TrackingRecord{record})
}

var testBaseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func pointMetersNorth(origin transit.Location, meters float64) transit.Location {
	// A metre is roughly 1/111195 of a degree of latitude
	return transit.NewPoint(origin.Longitude(), origin.Latitude()+meters/111194.9)
}

type testFixture struct {
	tracker     *Tracker
	entities    *fakeEntityStore
	history     *fakeHistoryStore
	broadcaster *events.Broadcaster

	stopA transit.Location
	stopB transit.Location
}

func newTestFixture() *testFixture {
	stopA := transit.NewPoint(-0.1278, 51.5074)
	stopB := pointMetersNorth(stopA, 600)

	entities := &fakeEntityStore{
		stops: map[string]transit.Stop{
			"STOPA": {PrimaryIdentifier: "STOPA", PrimaryName: "Alpha Street", Location: &stopA, Active: true},
			"STOPB": {PrimaryIdentifier: "STOPB", PrimaryName: "Beta Square", Location: &stopB, Active: true},
		},
		routes: map[string]transit.Route{
			"ROUTE1": {
				PrimaryIdentifier: "ROUTE1",
				Name:              "Alpha - Beta",
				Stops: []transit.RouteStop{
					{StopRef: "STOPA", Sequence: 1, EstimatedTime: 0},
					{StopRef: "STOPB", Sequence: 2, EstimatedTime: 5},
				},
				Active: true,
			},
		},
		vehicles: map[string]transit.Vehicle{
			"BUS1": {
				PrimaryIdentifier: "BUS1",
				VehicleNumber:     "101",
				Capacity:          50,
				RouteRef:          "ROUTE1",
				Location:          pointMetersNorth(stopA, 300),
				Status:            transit.VehicleStatusActive,
				LastUpdated:       testBaseTime,
				Active:            true,
			},
		},
	}

	history := &fakeHistoryStore{}
	broadcaster := events.NewBroadcaster()

	return &testFixture{
		tracker: New(Options{
			Entities:    entities,
			History:     history,
			Recorder:    &directRecorder{history: history},
			Broadcaster: broadcaster,
		}),
		entities:    entities,
		history:     history,
		broadcaster: broadcaster,

		stopA: stopA,
		stopB: stopB,
	}
}

func (f *testFixture) observe(topic events.Topic) *events.Observer {
	observer := events.NewObserver(topic.String())
	f.broadcaster.Subscribe(observer, topic)

	return observer
}

func drainEvents(observer *events.Observer) []events.Event {
	drained := []events.Event{}
	for {
		select {
		case event := <-observer.Events():
			drained = append(drained, event)
		default:
			return drained
		}
	}
}

func reportAt(vehicleRef string, location transit.Location, timestamp time.Time) transit.LocationReport {
	return transit.LocationReport{
		VehicleRef:  vehicleRef,
		Coordinates: location.Coordinates,
		Speed:       30,
		Heading:     90,
		Occupancy:   12,
		Timestamp:   timestamp,
	}
}

func TestSubmitReportAppliesState(t *testing.T) {
	fixture := newTestFixture()
	nearB := pointMetersNorth(fixture.stopA, 590)

	ack, err := fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", nearB, testBaseTime.Add(10*time.Second)))
	require.NoError(t, err)
	require.True(t, ack.Applied)

	vehicle, err := fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)

	assert.Equal(t, nearB.Coordinates, vehicle.Location.Coordinates)
	assert.Equal(t, float64(30), vehicle.Speed)
	assert.Equal(t, 12, vehicle.Occupancy)
	assert.Equal(t, "STOPB", vehicle.CurrentStopRef)
	assert.True(t, vehicle.LastUpdated.Equal(testBaseTime.Add(10*time.Second)))

	require.Equal(t, 1, fixture.history.count())
	assert.Equal(t, "STOPB", fixture.history.records[0].StopRef)
	assert.InDelta(t, 10, fixture.history.records[0].DistanceFromStop, 2)
}

func TestSubmitReportStaleAcknowledgedNotApplied(t *testing.T) {
	fixture := newTestFixture()
	routeObserver := fixture.observe(events.RouteTopic("ROUTE1"))

	first := pointMetersNorth(fixture.stopA, 200)
	second := pointMetersNorth(fixture.stopA, 250)
	late := pointMetersNorth(fixture.stopA, 400)

	_, err := fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", first, testBaseTime.Add(10*time.Second)))
	require.NoError(t, err)

	_, err = fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", second, testBaseTime.Add(20*time.Second)))
	require.NoError(t, err)

	// Arrives out of order, older than the state it would overwrite
	ack, err := fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", late, testBaseTime.Add(15*time.Second)))
	require.NoError(t, err)
	require.False(t, ack.Applied)
	assert.True(t, ack.Vehicle.LastUpdated.Equal(testBaseTime.Add(20*time.Second)))

	vehicle, err := fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)
	assert.Equal(t, second.Coordinates, vehicle.Location.Coordinates)
	assert.True(t, vehicle.LastUpdated.Equal(testBaseTime.Add(20*time.Second)))

	// Only the applied reports were recorded and fanned out
	assert.Equal(t, 2, fixture.history.count())

	published := drainEvents(routeObserver)
	require.Len(t, published, 2)
	for _, event := range published {
		assert.Equal(t, events.EventTypeVehicleLocationUpdate, event.Type)
	}
}

func TestSubmitReportRejections(t *testing.T) {
	fixture := newTestFixture()
	fixture.entities.vehicles["BUS_PARKED"] = transit.Vehicle{
		PrimaryIdentifier: "BUS_PARKED",
		RouteRef:          "ROUTE1",
		Capacity:          50,
		Status:            transit.VehicleStatusInactive,
		Active:            false,
	}

	timestamp := testBaseTime.Add(time.Minute)

	tests := []struct {
		name   string
		report transit.LocationReport
		err    error
	}{
		{
			"missing vehicle ref",
			transit.LocationReport{Coordinates: []float64{-0.1278, 51.5074}, Timestamp: timestamp},
			ErrInvalidInput,
		},
		{
			"missing coordinate",
			transit.LocationReport{VehicleRef: "BUS1", Coordinates: []float64{-0.1278}, Timestamp: timestamp},
			ErrInvalidInput,
		},
		{
			"heading out of range",
			transit.LocationReport{VehicleRef: "BUS1", Coordinates: []float64{-0.1278, 51.5074}, Heading: 400, Timestamp: timestamp},
			ErrInvalidInput,
		},
		{
			"longitude out of range",
			transit.LocationReport{VehicleRef: "BUS1", Coordinates: []float64{200, 51.5074}, Timestamp: timestamp},
			ErrInvalidLocation,
		},
		{
			"unknown vehicle",
			reportAt("BUS_GHOST", fixture.stopA, timestamp),
			ErrVehicleNotFound,
		},
		{
			"deactivated vehicle",
			reportAt("BUS_PARKED", fixture.stopA, timestamp),
			ErrVehicleNotFound,
		},
		{
			"occupancy over capacity",
			transit.LocationReport{VehicleRef: "BUS1", Coordinates: []float64{-0.1278, 51.5074}, Occupancy: 51, Timestamp: timestamp},
			ErrInvalidOccupancy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := fixture.tracker.SubmitReport(context.Background(), tt.report)
			require.ErrorIs(t, err, tt.err)
			assert.Nil(t, ack)
		})
	}

	// Nothing was recorded or mutated along the way
	assert.Equal(t, 0, fixture.history.count())

	vehicle, err := fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)
	assert.True(t, vehicle.LastUpdated.Equal(testBaseTime))
}

func TestSubmitReportCurrentStopIsSticky(t *testing.T) {
	fixture := newTestFixture()
	stopAObserver := fixture.observe(events.StopTopic("STOPA"))
	stopBObserver := fixture.observe(events.StopTopic("STOPB"))

	nearA := pointMetersNorth(fixture.stopA, 5)
	betweenStops := pointMetersNorth(fixture.stopA, 300)
	nearB := pointMetersNorth(fixture.stopA, 590)

	// Calling at the first stop announces an arrival
	_, err := fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", nearA, testBaseTime.Add(10*time.Second)))
	require.NoError(t, err)

	arrivals := drainEvents(stopAObserver)
	require.Len(t, arrivals, 1)
	assert.Equal(t, events.EventTypeVehicleArrival, arrivals[0].Type)

	notice, ok := arrivals[0].Body.(ArrivalNotice)
	require.True(t, ok)
	assert.Equal(t, "STOPA", notice.Stop.PrimaryIdentifier)
	assert.Equal(t, "BUS1", notice.Vehicle.PrimaryIdentifier)
	assert.InDelta(t, 5, notice.DistanceMeters, 1)

	// Lingering at the same stop does not announce it again
	_, err = fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", nearA, testBaseTime.Add(20*time.Second)))
	require.NoError(t, err)
	assert.Empty(t, drainEvents(stopAObserver))

	// Out of range of every stop, the last matched stop is retained
	_, err = fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", betweenStops, testBaseTime.Add(30*time.Second)))
	require.NoError(t, err)

	vehicle, err := fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)
	assert.Equal(t, "STOPA", vehicle.CurrentStopRef)
	assert.Empty(t, drainEvents(stopAObserver))
	assert.Empty(t, drainEvents(stopBObserver))

	// Reaching the next stop replaces it and announces on that stop only
	_, err = fixture.tracker.SubmitReport(context.Background(), reportAt("BUS1", nearB, testBaseTime.Add(40*time.Second)))
	require.NoError(t, err)

	vehicle, err = fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)
	assert.Equal(t, "STOPB", vehicle.CurrentStopRef)

	assert.Empty(t, drainEvents(stopAObserver))
	require.Len(t, drainEvents(stopBObserver), 1)
}

func TestSubmitReportCatalogFailureDegradesToNoMatch(t *testing.T) {
	fixture := newTestFixture()
	fixture.entities.vehicles["BUS2"] = transit.Vehicle{
		PrimaryIdentifier: "BUS2",
		Capacity:          50,
		RouteRef:          "ROUTE_MISSING",
		Status:            transit.VehicleStatusActive,
		LastUpdated:       testBaseTime,
		Active:            true,
	}

	ack, err := fixture.tracker.SubmitReport(context.Background(), reportAt("BUS2", fixture.stopA, testBaseTime.Add(10*time.Second)))
	require.NoError(t, err)
	require.True(t, ack.Applied)
	assert.Empty(t, ack.Vehicle.CurrentStopRef)
}

func TestUpdateStatus(t *testing.T) {
	fixture := newTestFixture()
	routeObserver := fixture.observe(events.RouteTopic("ROUTE1"))

	_, err := fixture.tracker.UpdateStatus(context.Background(), "BUS1", "flying")
	require.ErrorIs(t, err, ErrInvalidStatus)

	vehicle, err := fixture.tracker.UpdateStatus(context.Background(), "BUS1", transit.VehicleStatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, transit.VehicleStatusMaintenance, vehicle.Status)

	stored, err := fixture.entities.Vehicle(context.Background(), "BUS1")
	require.NoError(t, err)
	assert.Equal(t, transit.VehicleStatusMaintenance, stored.Status)

	published := drainEvents(routeObserver)
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeVehicleStatusUpdate, published[0].Type)
}

func TestUpdateOccupancy(t *testing.T) {
	fixture := newTestFixture()
	routeObserver := fixture.observe(events.RouteTopic("ROUTE1"))

	_, err := fixture.tracker.UpdateOccupancy(context.Background(), "BUS1", -1)
	require.ErrorIs(t, err, ErrInvalidOccupancy)

	_, err = fixture.tracker.UpdateOccupancy(context.Background(), "BUS1", 51)
	require.ErrorIs(t, err, ErrInvalidOccupancy)

	vehicle, err := fixture.tracker.UpdateOccupancy(context.Background(), "BUS1", 35)
	require.NoError(t, err)
	assert.Equal(t, 35, vehicle.Occupancy)

	published := drainEvents(routeObserver)
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeVehicleOccupancyUpdate, published[0].Type)
}

func TestVehicleHistoryClampsToRetention(t *testing.T) {
	fixture := newTestFixture()

	fixture.history.AppendBatch(context.Background(), []transit.TrackingRecord{
		{VehicleRef: "BUS1", Timestamp: time.Now().Add(-40 * 24 * time.Hour)},
		{VehicleRef: "BUS1", Timestamp: time.Now().Add(-time.Hour)},
		{VehicleRef: "BUS2", Timestamp: time.Now().Add(-time.Hour)},
	})

	// The window reaches past the retention period, the reclaimable
	// record stays invisible
	records, err := fixture.tracker.VehicleHistory(context.Background(), "BUS1", 60*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "BUS1", records[0].VehicleRef)

	records, err = fixture.tracker.VehicleHistory(context.Background(), "BUS1", 30*time.Minute, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestVehiclesNearbySortedByDistance(t *testing.T) {
	fixture := newTestFixture()

	fixture.entities.nearResults = []transit.Vehicle{
		{PrimaryIdentifier: "BUS_FAR", Location: pointMetersNorth(fixture.stopA, 500), Active: true},
		{PrimaryIdentifier: "BUS_NO_LOCATION", Active: true},
		{PrimaryIdentifier: "BUS_NEAR", Location: pointMetersNorth(fixture.stopA, 100), Active: true},
	}

	nearby, err := fixture.tracker.VehiclesNearby(context.Background(), fixture.stopA, 2000, 10)
	require.NoError(t, err)
	require.Len(t, nearby, 2)

	assert.Equal(t, "BUS_NEAR", nearby[0].PrimaryIdentifier)
	assert.Equal(t, "BUS_FAR", nearby[1].PrimaryIdentifier)
	assert.InDelta(t, 100, nearby[0].DistanceMeters, 1)
	assert.InDelta(t, 500, nearby[1].DistanceMeters, 1)

	_, err = fixture.tracker.VehiclesNearby(context.Background(), transit.NewPoint(200, 51.5074), 2000, 10)
	require.ErrorIs(t, err, ErrInvalidLocation)
}

func TestRouteETA(t *testing.T) {
	fixture := newTestFixture()

	moving := fixture.entities.vehicles["BUS1"]
	moving.Location = fixture.stopA
	moving.Speed = 30
	fixture.entities.vehicles["BUS1"] = moving

	fixture.entities.vehicles["BUS2"] = transit.Vehicle{
		PrimaryIdentifier: "BUS2",
		RouteRef:          "ROUTE1",
		Location:          fixture.stopA,
		Speed:             0,
		Status:            transit.VehicleStatusActive,
		Active:            true,
	}

	etaTable, err := fixture.tracker.RouteETA(context.Background(), "ROUTE1", "")
	require.NoError(t, err)
	require.Len(t, etaTable, 4)

	byVehicle := map[string][]ETAEntry{}
	for _, entry := range etaTable {
		byVehicle[entry.VehicleRef] = append(byVehicle[entry.VehicleRef], entry)
	}

	// Per-vehicle entries follow the route's stop order
	require.Len(t, byVehicle["BUS1"], 2)
	assert.Equal(t, "STOPA", byVehicle["BUS1"][0].StopRef)
	assert.Equal(t, "STOPB", byVehicle["BUS1"][1].StopRef)
	assert.Equal(t, 2, byVehicle["BUS1"][1].StopSequence)

	toStopB := byVehicle["BUS1"][1]
	assert.False(t, toStopB.Indeterminate)
	assert.InDelta(t, 600, toStopB.DistanceMeters, 2)
	// 600m at 30km/h is 1.2 minutes out
	assert.WithinDuration(t, time.Now().Add(72*time.Second), toStopB.EstimatedArrival, 5*time.Second)

	for _, entry := range byVehicle["BUS2"] {
		assert.True(t, entry.Indeterminate)
		assert.WithinDuration(t, time.Now().Add(IndeterminateETAMinutes*time.Minute), entry.EstimatedArrival, 5*time.Second)
	}

	etaTable, err = fixture.tracker.RouteETA(context.Background(), "ROUTE1", "STOPB")
	require.NoError(t, err)
	require.Len(t, etaTable, 2)
	for _, entry := range etaTable {
		assert.Equal(t, "STOPB", entry.StopRef)
	}

	_, err = fixture.tracker.RouteETA(context.Background(), "ROUTE_MISSING", "")
	require.ErrorIs(t, err, ErrRouteNotFound)
}

func TestRouteVehiclesEvent(t *testing.T) {
	fixture := newTestFixture()

	event, err := fixture.tracker.RouteVehiclesEvent(context.Background(), "ROUTE1")
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeRouteVehicles, event.Type)

	vehicles, ok := event.Body.([]transit.Vehicle)
	require.True(t, ok)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "BUS1", vehicles[0].PrimaryIdentifier)
}
