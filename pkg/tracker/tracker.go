package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/transitlive/transitlive/pkg/events"
	"github.com/transitlive/transitlive/pkg/store"
	"github.com/transitlive/transitlive/pkg/transit"
	"github.com/transitlive/transitlive/pkg/util"
)

const DefaultHistoryRetention = 30 * 24 * time.Hour

const etaWorkerLimit = 50

// Tracker is the facade over the realtime pipeline: report ingestion,
// nearest-stop matching, state mutation, history recording and event
// fan-out, plus the read paths over the resulting state.
type Tracker struct {
	entities    store.EntityStore
	history     store.HistoryStore
	recorder    HistoryRecorder
	broadcaster *events.Broadcaster
	catalog     StopCatalog

	matchThresholdMeters float64
	historyRetention     time.Duration

	validate *validator.Validate

	// Per-vehicle mutual exclusion for the stale-write guard and the
	// read-modify-write state transition. Reports for different
	// vehicles proceed in parallel.
	vehicleMutexes sync.Map
}

type Options struct {
	Entities    store.EntityStore
	History     store.HistoryStore
	Recorder    HistoryRecorder
	Broadcaster *events.Broadcaster

	// Defaults to an uncached catalog over Entities
	Catalog StopCatalog

	MatchThresholdMeters float64
	HistoryRetention     time.Duration
}

func New(opts Options) *Tracker {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = NewEntityStopCatalog(opts.Entities)
	}

	matchThreshold := opts.MatchThresholdMeters
	if matchThreshold == 0 {
		matchThreshold = DefaultMatchThresholdMeters
	}

	historyRetention := opts.HistoryRetention
	if historyRetention == 0 {
		historyRetention = DefaultHistoryRetention
	}

	return &Tracker{
		entities:    opts.Entities,
		history:     opts.History,
		recorder:    opts.Recorder,
		broadcaster: opts.Broadcaster,
		catalog:     catalog,

		matchThresholdMeters: matchThreshold,
		historyRetention:     historyRetention,

		validate: validator.New(),
	}
}

func (t *Tracker) vehicleMutex(vehicleRef string) *sync.Mutex {
	mutex, _ := t.vehicleMutexes.LoadOrStore(vehicleRef, &sync.Mutex{})
	return mutex.(*sync.Mutex)
}

// ReportAck is returned to the report source. A stale report is
// acknowledged with Applied false and the currently recorded state.
type ReportAck struct {
	Applied bool            `json:"applied"`
	Vehicle transit.Vehicle `json:"vehicle"`
}

type ArrivalNotice struct {
	Vehicle        transit.Vehicle `json:"vehicle"`
	Stop           transit.Stop    `json:"stop"`
	DistanceMeters float64         `json:"distance"`
}

// SubmitReport is the single write entry point. Accepted reports are
// committed to the vehicle's live state, queued for history and fanned
// out to subscribers; the acknowledgment never waits on either.
func (t *Tracker) SubmitReport(ctx context.Context, report transit.LocationReport) (*ReportAck, error) {
	report.SetDefaults()

	if err := t.validate.Struct(report); err != nil {
		auditReportOutcome(report.VehicleRef, "", auditOutcomeRejected, "VALIDATION")
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	location := transit.NewPoint(report.Coordinates[0], report.Coordinates[1])
	if err := location.Validate(); err != nil {
		auditReportOutcome(report.VehicleRef, "", auditOutcomeRejected, "LOCATION")
		return nil, fmt.Errorf("%w: %s", ErrInvalidLocation, err)
	}

	// Resolve the candidate stop set before taking the vehicle lock so
	// the lock is never held across a catalog lookup
	vehicle, err := t.loadVehicle(ctx, report.VehicleRef)
	if err != nil {
		auditReportOutcome(report.VehicleRef, "", auditOutcomeRejected, "NOT_FOUND")
		return nil, err
	}

	candidates, err := t.catalog.RouteStops(ctx, vehicle.RouteRef)
	if err != nil {
		// A failed candidate lookup degrades to no-match, it never
		// rejects the report
		log.Error().Err(err).Str("route", vehicle.RouteRef).Msg("Failed to resolve route stops")
		candidates = nil
	}

	mutex := t.vehicleMutex(report.VehicleRef)
	mutex.Lock()

	vehicle, err = t.loadVehicle(ctx, report.VehicleRef)
	if err != nil {
		mutex.Unlock()
		auditReportOutcome(report.VehicleRef, "", auditOutcomeRejected, "NOT_FOUND")
		return nil, err
	}

	if report.Occupancy > vehicle.Capacity {
		mutex.Unlock()
		auditReportOutcome(report.VehicleRef, vehicle.RouteRef, auditOutcomeRejected, "OCCUPANCY")
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidOccupancy, report.Occupancy, vehicle.Capacity)
	}

	// Stale-write guard: never overwrite newer state with an older
	// report. Acknowledged as if successful, nothing else happens.
	if report.Timestamp.Before(vehicle.LastUpdated) {
		snapshot := *vehicle
		mutex.Unlock()

		auditReportOutcome(report.VehicleRef, vehicle.RouteRef, auditOutcomeStale, "")
		return &ReportAck{Applied: false, Vehicle: snapshot}, nil
	}

	match, matched := NearestStop(&location, candidates, t.matchThresholdMeters)

	newArrival := matched && match.Stop.PrimaryIdentifier != vehicle.CurrentStopRef

	vehicle.Location = location
	vehicle.Speed = report.Speed
	vehicle.Heading = report.Heading
	vehicle.Occupancy = report.Occupancy
	vehicle.LastUpdated = report.Timestamp
	if matched {
		// CurrentStopRef is sticky: it keeps the last matched stop
		// until a new match occurs
		vehicle.CurrentStopRef = match.Stop.PrimaryIdentifier
	}

	if err := t.entities.UpdateVehicle(ctx, vehicle); err != nil {
		mutex.Unlock()
		return nil, err
	}

	snapshot := *vehicle
	mutex.Unlock()

	record := transit.TrackingRecord{
		VehicleRef: snapshot.PrimaryIdentifier,
		RouteRef:   snapshot.RouteRef,
		Location:   snapshot.Location,
		Speed:      report.Speed,
		Heading:    report.Heading,
		Accuracy:   report.Accuracy,
		Occupancy:  report.Occupancy,
		Status:     report.Status,
		Timestamp:  report.Timestamp,
	}
	if matched {
		record.StopRef = match.Stop.PrimaryIdentifier
		record.DistanceFromStop = match.DistanceMeters
	}

	t.recorder.Record(record)

	t.broadcaster.Publish(events.RouteTopic(snapshot.RouteRef), events.EventTypeVehicleLocationUpdate, snapshot)
	t.broadcaster.Publish(events.VehicleTopic(snapshot.PrimaryIdentifier), events.EventTypeLocationUpdated, snapshot)

	if newArrival {
		t.broadcaster.Publish(events.StopTopic(match.Stop.PrimaryIdentifier), events.EventTypeVehicleArrival, ArrivalNotice{
			Vehicle:        snapshot,
			Stop:           match.Stop,
			DistanceMeters: match.DistanceMeters,
		})
	}

	auditReportOutcome(snapshot.PrimaryIdentifier, snapshot.RouteRef, auditOutcomeAccepted, "")

	return &ReportAck{Applied: true, Vehicle: snapshot}, nil
}

func (t *Tracker) loadVehicle(ctx context.Context, vehicleRef string) (*transit.Vehicle, error) {
	vehicle, err := t.entities.Vehicle(ctx, vehicleRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVehicleNotFound
	} else if err != nil {
		return nil, err
	}

	if !vehicle.Active {
		return nil, ErrVehicleNotFound
	}

	return vehicle, nil
}

// UpdateStatus applies an operating status report
func (t *Tracker) UpdateStatus(ctx context.Context, vehicleRef string, status transit.VehicleStatus) (*transit.Vehicle, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	mutex := t.vehicleMutex(vehicleRef)
	mutex.Lock()

	vehicle, err := t.loadVehicle(ctx, vehicleRef)
	if err != nil {
		mutex.Unlock()
		return nil, err
	}

	vehicle.Status = status
	vehicle.LastUpdated = time.Now()

	if err := t.entities.UpdateVehicle(ctx, vehicle); err != nil {
		mutex.Unlock()
		return nil, err
	}

	snapshot := *vehicle
	mutex.Unlock()

	t.broadcaster.Publish(events.RouteTopic(snapshot.RouteRef), events.EventTypeVehicleStatusUpdate, snapshot)
	t.broadcaster.Publish(events.VehicleTopic(snapshot.PrimaryIdentifier), events.EventTypeVehicleStatusUpdate, snapshot)

	return &snapshot, nil
}

// UpdateOccupancy applies an occupancy report
func (t *Tracker) UpdateOccupancy(ctx context.Context, vehicleRef string, occupancy int) (*transit.Vehicle, error) {
	if occupancy < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOccupancy, occupancy)
	}

	mutex := t.vehicleMutex(vehicleRef)
	mutex.Lock()

	vehicle, err := t.loadVehicle(ctx, vehicleRef)
	if err != nil {
		mutex.Unlock()
		return nil, err
	}

	if occupancy > vehicle.Capacity {
		mutex.Unlock()
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidOccupancy, occupancy, vehicle.Capacity)
	}

	vehicle.Occupancy = occupancy
	vehicle.LastUpdated = time.Now()

	if err := t.entities.UpdateVehicle(ctx, vehicle); err != nil {
		mutex.Unlock()
		return nil, err
	}

	snapshot := *vehicle
	mutex.Unlock()

	t.broadcaster.Publish(events.RouteTopic(snapshot.RouteRef), events.EventTypeVehicleOccupancyUpdate, snapshot)
	t.broadcaster.Publish(events.VehicleTopic(snapshot.PrimaryIdentifier), events.EventTypeVehicleOccupancyUpdate, snapshot)

	return &snapshot, nil
}

// ActiveVehicles returns the current snapshot of all active vehicles,
// optionally filtered by route
func (t *Tracker) ActiveVehicles(ctx context.Context, routeRef string, limit int64) ([]transit.Vehicle, error) {
	return t.entities.ActiveVehicles(ctx, routeRef, limit)
}

type NearbyVehicle struct {
	transit.Vehicle `groups:"basic"`

	DistanceMeters float64 `json:"distance" groups:"basic"`
}

// VehiclesNearby returns active vehicles within radiusMeters of
// location, nearest first
func (t *Tracker) VehiclesNearby(ctx context.Context, location transit.Location, radiusMeters float64, limit int64) ([]NearbyVehicle, error) {
	if err := location.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLocation, err)
	}

	vehicles, err := t.entities.VehiclesNear(ctx, &location, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	util.InPlaceFilter(&vehicles, func(vehicle transit.Vehicle) bool {
		return len(vehicle.Location.Coordinates) == 2
	})

	nearby := make([]NearbyVehicle, 0, len(vehicles))
	for _, vehicle := range vehicles {
		nearby = append(nearby, NearbyVehicle{
			Vehicle:        vehicle,
			DistanceMeters: location.Distance(&vehicle.Location),
		})
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})

	return nearby, nil
}

// VehicleHistory returns the vehicle's tracking records over the given
// window, newest first. The window never reaches past the history
// retention period, records older than that are invisible even if the
// store has not reclaimed them yet.
func (t *Tracker) VehicleHistory(ctx context.Context, vehicleRef string, window time.Duration, limit int64) ([]transit.TrackingRecord, error) {
	since := time.Now().Add(-window)

	if retentionFloor := time.Now().Add(-t.historyRetention); since.Before(retentionFloor) {
		since = retentionFloor
	}

	return t.history.VehicleHistory(ctx, vehicleRef, since, limit)
}

// RouteETA computes the ETA table of every active vehicle on the route
// against the route's stops (or a single stop if stopRef is set).
// Entries per vehicle follow the route's stop order, not distance.
func (t *Tracker) RouteETA(ctx context.Context, routeRef string, stopRef string) ([]ETAEntry, error) {
	candidates, err := t.catalog.RouteStops(ctx, routeRef)
	if err != nil {
		return nil, err
	}

	if stopRef != "" {
		util.InPlaceFilter(&candidates, func(candidate StopCandidate) bool {
			return candidate.Stop.PrimaryIdentifier == stopRef
		})
	}

	vehicles, err := t.entities.ActiveVehicles(ctx, routeRef, 0)
	if err != nil {
		return nil, err
	}

	util.InPlaceFilter(&vehicles, func(vehicle transit.Vehicle) bool {
		return len(vehicle.Location.Coordinates) == 2
	})

	currentTime := time.Now()

	p := pool.NewWithResults[[]ETAEntry]()
	p.WithMaxGoroutines(etaWorkerLimit)

	for _, vehicle := range vehicles {
		p.Go(func() []ETAEntry {
			entries := make([]ETAEntry, 0, len(candidates))

			for _, candidate := range candidates {
				if candidate.Stop.Location == nil {
					continue
				}

				distance := vehicle.Location.Distance(candidate.Stop.Location)
				etaMinutes := EstimateETAMinutes(distance, vehicle.Speed)

				entries = append(entries, ETAEntry{
					VehicleRef:    vehicle.PrimaryIdentifier,
					VehicleNumber: vehicle.VehicleNumber,

					StopRef:      candidate.Stop.PrimaryIdentifier,
					StopSequence: candidate.Sequence,

					DistanceMeters: distance,
					SpeedKmH:       vehicle.Speed,

					Indeterminate:    vehicle.Speed == 0,
					EstimatedArrival: currentTime.Add(time.Duration(etaMinutes * float64(time.Minute))),
				})
			}

			return entries
		})
	}

	etaTable := []ETAEntry{}
	for _, entries := range p.Wait() {
		etaTable = append(etaTable, entries...)
	}

	return etaTable, nil
}

// RouteVehiclesEvent builds the one-time join reply for an observer
// subscribing to a route topic
func (t *Tracker) RouteVehiclesEvent(ctx context.Context, routeRef string) (events.Event, error) {
	vehicles, err := t.entities.ActiveVehicles(ctx, routeRef, 0)
	if err != nil {
		return events.Event{}, err
	}

	return events.NewEvent(events.EventTypeRouteVehicles, vehicles), nil
}
