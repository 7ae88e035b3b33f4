package database

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/transitlive/transitlive/pkg/util"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultHistoryRetentionDays = 30

// HistoryRetentionSeconds is the TTL applied to tracking history records.
// The store reclaims anything older; queries also clamp to this window so
// expired but not yet reclaimed records stay invisible.
func HistoryRetentionSeconds() int32 {
	days := defaultHistoryRetentionDays

	env := util.GetEnvironmentVariables()
	if env["TRANSITLIVE_HISTORY_RETENTION_DAYS"] != "" {
		if n, err := strconv.Atoi(env["TRANSITLIVE_HISTORY_RETENTION_DAYS"]); err == nil && n > 0 {
			days = n
		}
	}

	return int32(days * 24 * 3600)
}

func createIndexes() {
	createStopsIndexes()
	createRoutesIndexes()
	createVehiclesIndexes()
	createTrackingHistoryIndexes()
}

func createStopsIndexes() {
	stopsCollection := GetCollection("stops")
	stopsIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "routerefs", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := stopsCollection.Indexes().CreateMany(context.Background(), stopsIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createRoutesIndexes() {
	routesCollection := GetCollection("routes")
	routesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "stops.stopref", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := routesCollection.Indexes().CreateMany(context.Background(), routesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createVehiclesIndexes() {
	vehiclesCollection := GetCollection("vehicles")
	vehiclesIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "vehiclenumber", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{
				{Key: "routeref", Value: 1},
				{Key: "status", Value: 1},
			},
		},
	}

	opts := options.CreateIndexes()
	_, err := vehiclesCollection.Indexes().CreateMany(context.Background(), vehiclesIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createTrackingHistoryIndexes() {
	trackingHistoryCollection := GetCollection("tracking_history")
	_, err := trackingHistoryCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "routeref", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(HistoryRetentionSeconds()),
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
