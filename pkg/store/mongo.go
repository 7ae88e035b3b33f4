package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/database"
	"github.com/transitlive/transitlive/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEntityStore implements EntityStore over the shared MongoDB instance
type MongoEntityStore struct{}

func NewMongoEntityStore() *MongoEntityStore {
	return &MongoEntityStore{}
}

func (s *MongoEntityStore) Stop(ctx context.Context, identifier string) (*transit.Stop, error) {
	stopsCollection := database.GetCollection("stops")

	var stop *transit.Stop
	err := stopsCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&stop)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return stop, nil
}

func (s *MongoEntityStore) Route(ctx context.Context, identifier string) (*transit.Route, error) {
	routesCollection := database.GetCollection("routes")

	var route *transit.Route
	err := routesCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&route)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return route, nil
}

// RouteStops returns the active stops of a route in sequence order
func (s *MongoEntityStore) RouteStops(ctx context.Context, routeRef string) ([]transit.Stop, error) {
	route, err := s.Route(ctx, routeRef)
	if err != nil {
		return nil, err
	}

	stopRefs := bson.A{}
	for _, routeStop := range route.Stops {
		stopRefs = append(stopRefs, routeStop.StopRef)
	}

	stopsCollection := database.GetCollection("stops")
	cursor, err := stopsCollection.Find(ctx, bson.M{
		"primaryidentifier": bson.M{"$in": stopRefs},
		"active":            true,
	})
	if err != nil {
		return nil, err
	}

	stopsByRef := map[string]transit.Stop{}
	for cursor.Next(ctx) {
		var stop transit.Stop
		if err := cursor.Decode(&stop); err != nil {
			log.Error().Err(err).Msg("Failed to decode Stop")
			continue
		}

		stopsByRef[stop.PrimaryIdentifier] = stop
	}

	stops := []transit.Stop{}
	for _, routeStop := range route.Stops {
		if stop, ok := stopsByRef[routeStop.StopRef]; ok {
			stops = append(stops, stop)
		}
	}

	return stops, nil
}

func (s *MongoEntityStore) Vehicle(ctx context.Context, identifier string) (*transit.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	var vehicle *transit.Vehicle
	err := vehiclesCollection.FindOne(ctx, bson.M{"primaryidentifier": identifier}).Decode(&vehicle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return vehicle, nil
}

func (s *MongoEntityStore) ActiveVehicles(ctx context.Context, routeRef string, limit int64) ([]transit.Vehicle, error) {
	query := bson.M{
		"status": transit.VehicleStatusActive,
		"active": true,
	}
	if routeRef != "" {
		query["routeref"] = routeRef
	}

	return s.findVehicles(ctx, query, limit)
}

// VehiclesNear returns active vehicles within radiusMeters of location,
// nearest first ($near returns documents sorted by distance)
func (s *MongoEntityStore) VehiclesNear(ctx context.Context, location *transit.Location, radiusMeters float64, limit int64) ([]transit.Vehicle, error) {
	query := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": location.Coordinates,
				},
				"$maxDistance": radiusMeters,
			},
		},
		"status": transit.VehicleStatusActive,
		"active": true,
	}

	return s.findVehicles(ctx, query, limit)
}

func (s *MongoEntityStore) findVehicles(ctx context.Context, query bson.M, limit int64) ([]transit.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	findOptions := options.Find()
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := vehiclesCollection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}

	vehicles := []transit.Vehicle{}
	for cursor.Next(ctx) {
		var vehicle transit.Vehicle
		if err := cursor.Decode(&vehicle); err != nil {
			log.Error().Err(err).Msg("Failed to decode Vehicle")
			continue
		}

		vehicles = append(vehicles, vehicle)
	}

	return vehicles, nil
}

func (s *MongoEntityStore) UpdateVehicle(ctx context.Context, vehicle *transit.Vehicle) error {
	vehiclesCollection := database.GetCollection("vehicles")

	_, err := vehiclesCollection.ReplaceOne(ctx,
		bson.M{"primaryidentifier": vehicle.PrimaryIdentifier}, vehicle)

	return err
}

// MongoHistoryStore implements HistoryStore over the tracking_history
// collection. The TTL index on timestamp reclaims expired records.
type MongoHistoryStore struct{}

func NewMongoHistoryStore() *MongoHistoryStore {
	return &MongoHistoryStore{}
}

func (s *MongoHistoryStore) AppendBatch(ctx context.Context, records []transit.TrackingRecord) error {
	if len(records) == 0 {
		return nil
	}

	trackingHistoryCollection := database.GetCollection("tracking_history")

	var operations []mongo.WriteModel
	for _, record := range records {
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(record))
	}

	_, err := trackingHistoryCollection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))

	return err
}

func (s *MongoHistoryStore) VehicleHistory(ctx context.Context, vehicleRef string, since time.Time, limit int64) ([]transit.TrackingRecord, error) {
	trackingHistoryCollection := database.GetCollection("tracking_history")

	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := trackingHistoryCollection.Find(ctx, bson.M{
		"vehicleref": vehicleRef,
		"timestamp":  bson.M{"$gte": since},
	}, findOptions)
	if err != nil {
		return nil, err
	}

	records := []transit.TrackingRecord{}
	for cursor.Next(ctx) {
		var record transit.TrackingRecord
		if err := cursor.Decode(&record); err != nil {
			log.Error().Err(err).Msg("Failed to decode TrackingRecord")
			continue
		}

		records = append(records, record)
	}

	return records, nil
}
