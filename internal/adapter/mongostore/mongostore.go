// Package mongostore persists the status singleton and the queryable point
// forecasts in MongoDB. The status collection holds exactly one document;
// the forecasts collection holds one document per grid point keyed by its
// coordinate ID.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/weatherforhumans/thermal-etl/internal/config"
)

// Store wraps one MongoDB connection and exposes the status and forecast
// collections through their adapter types.
type Store struct {
	client    *mongo.Client
	status    *StatusStore
	forecasts *ForecastStore
}

// New connects to MongoDB and verifies the connection before returning.
func New(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:    client,
		status:    &StatusStore{coll: db.Collection(cfg.StatusCollection)},
		forecasts: &ForecastStore{coll: db.Collection(cfg.ForecastsCollection)},
	}, nil
}

// Status returns the status singleton adapter.
func (s *Store) Status() *StatusStore {
	return s.status
}

// Forecasts returns the point-forecast adapter.
func (s *Store) Forecasts() *ForecastStore {
	return s.forecasts
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
