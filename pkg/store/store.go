package store

import (
	"context"
	"errors"
	"time"

	"github.com/transitlive/transitlive/pkg/transit"
)

var ErrNotFound = errors.New("record not found")

// EntityStore is the read/write boundary over Stop, Route & Vehicle
// records. Stops and Routes are read-only to the tracking core.
type EntityStore interface {
	Stop(ctx context.Context, identifier string) (*transit.Stop, error)
	Route(ctx context.Context, identifier string) (*transit.Route, error)
	RouteStops(ctx context.Context, routeRef string) ([]transit.Stop, error)

	Vehicle(ctx context.Context, identifier string) (*transit.Vehicle, error)
	ActiveVehicles(ctx context.Context, routeRef string, limit int64) ([]transit.Vehicle, error)
	VehiclesNear(ctx context.Context, location *transit.Location, radiusMeters float64, limit int64) ([]transit.Vehicle, error)

	UpdateVehicle(ctx context.Context, vehicle *transit.Vehicle) error
}

// HistoryStore is the append-only, time-indexed tracking record store.
// Retention is enforced by the store itself.
type HistoryStore interface {
	AppendBatch(ctx context.Context, records []transit.TrackingRecord) error
	VehicleHistory(ctx context.Context, vehicleRef string, since time.Time, limit int64) ([]transit.TrackingRecord, error)
}
