package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// statusID is the fixed _id of the singleton status document.
const statusID = "status"

// statusDoc mirrors the document layout readers of the status collection
// depend on. Field names are part of the external contract.
type statusDoc struct {
	ID                           string            `bson:"_id"`
	IsUpdating                   bool              `bson:"isUpdating"`
	LatestSuccessfulUpdateSource string            `bson:"latestSuccessfulUpdateSource,omitempty"`
	LastChartDate                *time.Time        `bson:"lastChartDate,omitempty"`
	GlobalCharts                 map[string]string `bson:"globalCharts,omitempty"`
	UpdateHolderID               string            `bson:"updateHolderId,omitempty"`
	UpdateAcquiredAt             *time.Time        `bson:"updateAcquiredAt,omitempty"`
}

// StatusStore implements guard.StatusStore on the status collection.
type StatusStore struct {
	coll *mongo.Collection
}

// Fetch reads the status singleton. A missing document is the pristine
// pre-first-run state, not an error.
func (s *StatusStore) Fetch(ctx context.Context) (domain.StatusRecord, error) {
	var doc statusDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": statusID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.StatusRecord{}, nil
	}
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("fetch status: %w", err)
	}
	return domain.StatusRecord{
		IsUpdating:         doc.IsUpdating,
		LastSourceEndpoint: doc.LatestSuccessfulUpdateSource,
		LastChartDate:      doc.LastChartDate,
		Charts:             doc.GlobalCharts,
		HolderID:           doc.UpdateHolderID,
		AcquiredAt:         doc.UpdateAcquiredAt,
	}, nil
}

// AcquireUpdating flips isUpdating false→true in a single conditional
// update. The filter only matches when the flag is not already set; with
// upsert enabled, losing the race surfaces as a duplicate-key insert on
// _id, which maps to (false, nil).
func (s *StatusStore) AcquireUpdating(ctx context.Context, holderID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":        statusID,
		"isUpdating": bson.M{"$ne": true},
	}
	update := bson.M{"$set": bson.M{
		"isUpdating":       true,
		"updateHolderId":   holderID,
		"updateAcquiredAt": at,
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire updating flag: %w", err)
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

// ReleaseUpdating clears the flag and the lease fields unconditionally.
func (s *StatusStore) ReleaseUpdating(ctx context.Context) error {
	update := bson.M{
		"$set":   bson.M{"isUpdating": false},
		"$unset": bson.M{"updateHolderId": "", "updateAcquiredAt": ""},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": statusID}, update); err != nil {
		return fmt.Errorf("release updating flag: %w", err)
	}
	return nil
}

// SetLastSource records the endpoint the published dataset derives from.
func (s *StatusStore) SetLastSource(ctx context.Context, endpoint string) error {
	update := bson.M{"$set": bson.M{"latestSuccessfulUpdateSource": endpoint}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": statusID}, update); err != nil {
		return fmt.Errorf("set last source: %w", err)
	}
	return nil
}

// SetChart records a published chart reference and advances lastChartDate
// monotonically via $max.
func (s *StatusStore) SetChart(ctx context.Context, date, version string, chartDate time.Time) error {
	update := bson.M{
		"$set": bson.M{"globalCharts." + date: version},
		"$max": bson.M{"lastChartDate": chartDate},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": statusID}, update); err != nil {
		return fmt.Errorf("set chart %s: %w", date, err)
	}
	return nil
}

// RemoveChart drops a chart reference.
func (s *StatusStore) RemoveChart(ctx context.Context, date string) error {
	update := bson.M{"$unset": bson.M{"globalCharts." + date: ""}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": statusID}, update); err != nil {
		return fmt.Errorf("remove chart %s: %w", date, err)
	}
	return nil
}
