package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// forecastDoc is one queryable point forecast. The _id is the coordinate
// ID ("lat,lon" at two decimals), so republishing a point replaces it.
type forecastDoc struct {
	ID               string    `bson:"_id"`
	ForecastStart    time.Time `bson:"forecastStart"`
	TempTimesEncoded []int32   `bson:"tempTimesEncoded"`
}

// ForecastStore implements pipeline.ForecastWriter with unordered bulk
// replace-upserts, one model per record.
type ForecastStore struct {
	coll *mongo.Collection
}

// WriteChunk upserts one chunk of records in a single bulk call. Unordered
// execution lets the server parallelize; each record is independent.
func (f *ForecastStore) WriteChunk(ctx context.Context, records []domain.PointForecast) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		doc := forecastDoc{
			ID:               r.Coordinate.ID(),
			ForecastStart:    r.ForecastStart,
			TempTimesEncoded: r.Encoded,
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if _, err := f.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk write %d forecasts: %w", len(records), err)
	}
	return nil
}
