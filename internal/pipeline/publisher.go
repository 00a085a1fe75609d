package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
	"github.com/weatherforhumans/thermal-etl/internal/observability"
)

// ForecastWriter bulk-writes one chunk of point forecasts to the queryable store.
type ForecastWriter interface {
	WriteChunk(ctx context.Context, records []domain.PointForecast) error
}

// Publisher encodes the merged dataset, drops masked points, and writes the
// remainder in fixed-size chunks. Chunked writes keep individual bulk calls
// small enough to survive connection churn on the job platform.
type Publisher struct {
	writer    ForecastWriter
	chunkSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewPublisher creates a Publisher writing chunks of chunkSize records.
func NewPublisher(writer ForecastWriter, chunkSize int, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		writer:    writer,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Publish writes all near-land records. A chunk failure aborts the sequence
// and reports the failed chunk index via PartialPublishError: chunks before
// it were written, chunks from it onward were not, so a retry can resume
// without skipping or duplicating anything.
func (p *Publisher) Publish(ctx context.Context, ds *domain.Dataset, mask *domain.LandMask) (int, error) {
	start, ok := ds.Start()
	if !ok {
		p.logger.Warn("publish skipped: dataset is empty")
		return 0, nil
	}
	if !mask.Grid().Equal(ds.Grid) {
		return 0, fmt.Errorf("land mask grid does not match dataset grid")
	}

	records, err := encodeMasked(ds, mask, start)
	if err != nil {
		return 0, err
	}

	chunks := chunkRecords(records, p.chunkSize)
	t0 := time.Now()
	for i, chunk := range chunks {
		if err := p.writer.WriteChunk(ctx, chunk); err != nil {
			return 0, &domain.PartialPublishError{FailedChunk: i, TotalChunks: len(chunks), Err: err}
		}
		p.metrics.ChunksWritten.Inc()
	}

	p.metrics.RecordsPublished.Add(float64(len(records)))
	p.logger.Info("published forecasts",
		"records", len(records),
		"chunks", len(chunks),
		"duration", time.Since(t0),
	)
	return len(records), nil
}

// encodeMasked encodes every near-land cell against the dataset start.
func encodeMasked(ds *domain.Dataset, mask *domain.LandMask, start time.Time) ([]domain.PointForecast, error) {
	records := make([]domain.PointForecast, 0, ds.Grid.NumPoints())
	for i, cell := range ds.Cells {
		if !mask.NearLand(i) || len(cell) == 0 {
			continue
		}
		encoded, err := domain.EncodeCell(cell, start)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.PointForecast{
			Coordinate:    ds.Grid.Point(i),
			ForecastStart: start,
			Encoded:       encoded,
		})
	}
	return records, nil
}

// chunkRecords splits records into consecutive chunks of at most size
// records. Every record lands in exactly one chunk.
func chunkRecords(records []domain.PointForecast, size int) [][]domain.PointForecast {
	if len(records) == 0 {
		return nil
	}
	chunks := make([][]domain.PointForecast, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
