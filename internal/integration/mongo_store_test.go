//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weatherforhumans/thermal-etl/internal/adapter/mongostore"
	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

func startMongo(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err, "start mongodb container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate mongodb container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func newStore(ctx context.Context, t *testing.T, uri string) *mongostore.Store {
	t.Helper()
	store, err := mongostore.New(ctx, config.MongoConfig{
		URI:                 uri,
		Database:            "thermal_test",
		StatusCollection:    "status",
		ForecastsCollection: "forecasts",
		Timeout:             30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func TestStatusStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	store := newStore(ctx, t, startMongo(ctx, t))
	status := store.Status()

	// Pristine state: no document yet.
	record, err := status.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, record.IsUpdating)
	assert.Empty(t, record.LastSourceEndpoint)

	// First acquire wins and upserts the singleton.
	at := time.Now().UTC().Truncate(time.Millisecond)
	won, err := status.AcquireUpdating(ctx, "holder-1", at)
	require.NoError(t, err)
	assert.True(t, won)

	record, err = status.Fetch(ctx)
	require.NoError(t, err)
	assert.True(t, record.IsUpdating)
	assert.Equal(t, "holder-1", record.HolderID)
	require.NotNil(t, record.AcquiredAt)

	// Second acquire loses the conditional update.
	won, err = status.AcquireUpdating(ctx, "holder-2", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)

	// Release clears the flag and the lease fields.
	require.NoError(t, status.ReleaseUpdating(ctx))
	record, err = status.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, record.IsUpdating)
	assert.Empty(t, record.HolderID)
	assert.Nil(t, record.AcquiredAt)

	// Reacquire succeeds after release.
	won, err = status.AcquireUpdating(ctx, "holder-3", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won)
	require.NoError(t, status.ReleaseUpdating(ctx))
}

func TestStatusStore_ConcurrentAcquire(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	uri := startMongo(ctx, t)
	store := newStore(ctx, t, uri)
	status := store.Status()

	const racers = 10
	wins := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			won, err := status.AcquireUpdating(ctx, "racer", time.Now().UTC())
			if err != nil {
				wins <- false
				return
			}
			wins <- won
		}(i)
	}

	winners := 0
	for i := 0; i < racers; i++ {
		if <-wins {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one racer must observe the false→true transition")
}

func TestStatusStore_ChartMarkers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	store := newStore(ctx, t, startMongo(ctx, t))
	status := store.Status()

	require.NoError(t, status.SetLastSource(ctx, "https://example.com/gfs20260831/run_06z"))

	day1 := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, status.SetChart(ctx, "2026-08-29", "2026-08-31_06z", day1))
	require.NoError(t, status.SetChart(ctx, "2026-08-30", "2026-08-31_06z", day2))
	// Re-marking an older day must not move lastChartDate backwards.
	require.NoError(t, status.SetChart(ctx, "2026-08-29", "2026-08-31_12z", day1))

	record, err := status.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/gfs20260831/run_06z", record.LastSourceEndpoint)
	assert.Equal(t, "2026-08-31_12z", record.Charts["2026-08-29"])
	assert.Equal(t, "2026-08-31_06z", record.Charts["2026-08-30"])
	require.NotNil(t, record.LastChartDate)
	assert.True(t, record.LastChartDate.Equal(day2))

	require.NoError(t, status.RemoveChart(ctx, "2026-08-29"))
	record, err = status.Fetch(ctx)
	require.NoError(t, err)
	assert.NotContains(t, record.Charts, "2026-08-29")
	assert.Contains(t, record.Charts, "2026-08-30")
}

func TestForecastStore_WriteChunk(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	uri := startMongo(ctx, t)
	store := newStore(ctx, t, uri)

	start := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	records := []domain.PointForecast{
		{Coordinate: domain.Coordinate{Lat: 30.0, Lon: 262.5}, ForecastStart: start, Encoded: []int32{100, 200}},
		{Coordinate: domain.Coordinate{Lat: 30.25, Lon: 262.5}, ForecastStart: start, Encoded: []int32{300}},
	}
	require.NoError(t, store.Forecasts().WriteChunk(ctx, records))

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	coll := client.Database("thermal_test").Collection("forecasts")

	count, err := coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	var doc struct {
		ID               string    `bson:"_id"`
		ForecastStart    time.Time `bson:"forecastStart"`
		TempTimesEncoded []int32   `bson:"tempTimesEncoded"`
	}
	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": "30.00,262.50"}).Decode(&doc))
	assert.Equal(t, []int32{100, 200}, doc.TempTimesEncoded)
	assert.True(t, doc.ForecastStart.Equal(start))

	// Republishing the same point replaces its document instead of
	// accumulating duplicates.
	records[0].Encoded = []int32{111}
	require.NoError(t, store.Forecasts().WriteChunk(ctx, records[:1]))

	count, err = coll.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, coll.FindOne(ctx, bson.M{"_id": "30.00,262.50"}).Decode(&doc))
	assert.Equal(t, []int32{111}, doc.TempTimesEncoded)
}
