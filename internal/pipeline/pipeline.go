// Package pipeline orchestrates one incremental update run: guard
// acquisition, source discovery, staged parameter computation, merge with
// the prior snapshot, chunked publish, snapshot persistence, and daily
// chart rendering. The run is sequential; cross-run overlap is handled
// entirely by the update guard.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
	"github.com/weatherforhumans/thermal-etl/internal/guard"
	"github.com/weatherforhumans/thermal-etl/internal/observability"
)

// Derived parameters computed per run, one staged pass each.
const (
	ParamUTCI = "utci"
	ParamWBGT = "wbgt"
)

// SourceLocator discovers the endpoint of the latest upstream model run.
// It returns a domain.StructuralMismatchError when the directory listing
// lacks the expected run links.
type SourceLocator interface {
	LatestSource(ctx context.Context) (string, error)
}

// SnapshotStore persists the full merged dataset between runs.
// Load returns (nil, nil) when no snapshot exists yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Dataset, error)
	Save(ctx context.Context, ds *domain.Dataset) error
}

// ChartRenderer turns one (day, extremum) aggregation into a rendered image.
type ChartRenderer interface {
	Render(ctx context.Context, g domain.Grid, values []float64, day time.Time, ex domain.Extremum) ([]byte, error)
}

// ChartUploader publishes a rendered chart artifact, overwriting any
// previous artifact for the same (day, extremum).
type ChartUploader interface {
	Upload(ctx context.Context, day time.Time, ex domain.Extremum, sourceVersion string, image []byte) error
}

// Alerter sends a fire-and-forget out-of-band notification. Implementations
// log their own delivery failures.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// RefreshNotifier announces a completed refresh to downstream consumers.
type RefreshNotifier interface {
	NotifyRefreshed(ctx context.Context, event domain.RefreshEvent) error
}

// Pipeline wires the run's collaborators together.
type Pipeline struct {
	guard      *guard.Guard
	locator    SourceLocator
	calculator *Calculator
	publisher  *Publisher
	snapshots  SnapshotStore
	renderer   ChartRenderer
	uploader   ChartUploader
	alerter    Alerter
	notifier   RefreshNotifier // optional
	mask       *domain.LandMask

	// sourceOverride skips discovery and forces a specific snapshot,
	// mirroring the DATA_SOURCE_URL escape hatch for backfills.
	sourceOverride string

	logger  *slog.Logger
	metrics *observability.Metrics
}

// Deps collects the pipeline's collaborators. Notifier may be nil.
type Deps struct {
	Guard          *guard.Guard
	Locator        SourceLocator
	Calculator     *Calculator
	Publisher      *Publisher
	Snapshots      SnapshotStore
	Renderer       ChartRenderer
	Uploader       ChartUploader
	Alerter        Alerter
	Notifier       RefreshNotifier
	Mask           *domain.LandMask
	SourceOverride string
}

// New creates a Pipeline.
func New(deps Deps, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		guard:          deps.Guard,
		locator:        deps.Locator,
		calculator:     deps.Calculator,
		publisher:      deps.Publisher,
		snapshots:      deps.Snapshots,
		renderer:       deps.Renderer,
		uploader:       deps.Uploader,
		alerter:        deps.Alerter,
		notifier:       deps.Notifier,
		mask:           deps.Mask,
		sourceOverride: deps.SourceOverride,
		logger:         logger,
		metrics:        metrics,
	}
}

// Run executes one update. It returns domain.ErrAlreadyRunning or
// domain.ErrSourceUnchanged for the two no-work outcomes; callers treat
// both as success. Whenever the guard is acquired it is released before
// Run returns, on every path.
func (p *Pipeline) Run(ctx context.Context) error {
	status, err := p.guard.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if status.IsUpdating {
		p.logger.Info("update already in progress, exiting",
			"holder_id", status.HolderID)
		return domain.ErrAlreadyRunning
	}

	source := p.sourceOverride
	if source == "" {
		source, err = p.discoverSource(ctx, status.LastSourceEndpoint)
		if err != nil {
			return err
		}
	} else {
		p.logger.Info("using source override", "source", source)
	}

	lease, err := p.guard.TryAcquire(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			p.logger.Info("lost acquire race, exiting")
		}
		return err
	}

	runErr := p.update(ctx, lease, source)
	// Release must happen even if the surrounding context was cancelled.
	releaseErr := lease.Release(context.WithoutCancel(ctx))

	if runErr != nil {
		return runErr
	}
	if releaseErr != nil {
		return releaseErr
	}
	p.logger.Info("update completed", "source", source)
	return nil
}

// discoverSource finds the latest upstream run and short-circuits when it is
// the one already published. A structural mismatch is escalated through the
// alert channel exactly once and is not retried here.
func (p *Pipeline) discoverSource(ctx context.Context, lastSource string) (string, error) {
	source, err := p.locator.LatestSource(ctx)
	if err != nil {
		var mismatch *domain.StructuralMismatchError
		if errors.As(err, &mismatch) {
			p.metrics.AlertsSent.Inc()
			p.alerter.Alert(ctx, "ETL error: "+mismatch.Error())
		}
		return "", fmt.Errorf("discover latest source: %w", err)
	}
	if source == lastSource {
		p.logger.Info("already using latest source", "source", source)
		return "", domain.ErrSourceUnchanged
	}
	p.logger.Info("new source found", "previous", lastSource, "source", source)
	return source, nil
}

// update performs the guarded phase sequence. The caller owns the lease and
// its release.
func (p *Pipeline) update(ctx context.Context, lease *guard.Lease, source string) error {
	// One staged pass per parameter; failed parameters could be recomputed
	// independently, completed ones are unaffected.
	grids := make(map[string]*domain.ParamGrid, 2)
	for _, name := range []string{ParamUTCI, ParamWBGT} {
		grid, err := p.calculator.ComputeParameter(ctx, name, source)
		if err != nil {
			return fmt.Errorf("compute %s: %w", name, err)
		}
		grids[name] = grid
	}

	incoming, err := domain.CombineParams(grids[ParamUTCI], grids[ParamWBGT])
	if err != nil {
		return err
	}
	firstIncoming, ok := incoming.Start()
	if !ok {
		return fmt.Errorf("computed dataset from %s is empty", source)
	}

	previous, err := p.loadPrevious(ctx)
	if err != nil {
		return err
	}

	window := domain.ComputeRetention(firstIncoming)
	merged, err := p.merge(previous, incoming, window.EarliestRetained)
	if err != nil {
		return err
	}

	count, err := p.publish(ctx, merged)
	if err != nil {
		return err
	}

	if err := lease.MarkSource(ctx, source); err != nil {
		return fmt.Errorf("mark source: %w", err)
	}

	if err := p.saveSnapshot(ctx, merged); err != nil {
		return err
	}

	if err := p.renderCharts(ctx, lease, merged, window, domain.SourceVersion(source)); err != nil {
		return err
	}

	p.notifyRefreshed(ctx, source, count)
	return nil
}

func (p *Pipeline) loadPrevious(ctx context.Context) (*domain.Dataset, error) {
	t0 := time.Now()
	previous, err := p.snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	if previous == nil {
		p.logger.Info("no previous snapshot, starting fresh")
		return nil, nil
	}
	p.observePhase("load_snapshot", t0)
	return previous, nil
}

func (p *Pipeline) merge(previous, incoming *domain.Dataset, earliestRetained time.Time) (*domain.Dataset, error) {
	t0 := time.Now()
	merged, err := domain.Merge(previous, incoming, earliestRetained)
	if err != nil {
		// A merge invariant violation means the prior state is corrupted;
		// abort without publishing anything.
		return nil, fmt.Errorf("merge: %w", err)
	}
	p.observePhase("merge", t0)
	p.logger.Info("merged datasets", "earliest_retained", earliestRetained)
	return merged, nil
}

func (p *Pipeline) publish(ctx context.Context, merged *domain.Dataset) (int, error) {
	t0 := time.Now()
	count, err := p.publisher.Publish(ctx, merged, p.mask)
	if err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	p.observePhase("publish", t0)
	return count, nil
}

func (p *Pipeline) saveSnapshot(ctx context.Context, merged *domain.Dataset) error {
	t0 := time.Now()
	if err := p.snapshots.Save(ctx, merged); err != nil {
		// The queryable records already published remain the most recent
		// visible state; only the next run's baseline is lost.
		return fmt.Errorf("save snapshot: %w", err)
	}
	p.observePhase("save_snapshot", t0)
	return nil
}

// renderCharts prunes unreachable chart references, then renders and uploads
// each complete solar-aligned day once per extremum. Per-image state is
// discarded between iterations, keeping memory flat in the number of days.
func (p *Pipeline) renderCharts(ctx context.Context, lease *guard.Lease, merged *domain.Dataset, window domain.RetentionWindow, version string) error {
	t0 := time.Now()

	status, err := p.guard.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status for chart pruning: %w", err)
	}
	for _, date := range status.StaleCharts(window.EarliestChartDate) {
		if err := lease.RemoveChart(ctx, date); err != nil {
			return fmt.Errorf("prune chart %s: %w", date, err)
		}
		p.logger.Info("pruned stale chart reference", "date", date)
	}

	for _, day := range domain.CompleteDays(merged) {
		for _, ex := range domain.Extremums {
			if err := p.renderOne(ctx, lease, merged, day, ex, version); err != nil {
				return err
			}
		}
	}

	p.observePhase("charts", t0)
	return nil
}

func (p *Pipeline) renderOne(ctx context.Context, lease *guard.Lease, merged *domain.Dataset, day time.Time, ex domain.Extremum, version string) error {
	values := domain.DayExtremes(merged, day, ex)
	image, err := p.renderer.Render(ctx, merged.Grid, values, day, ex)
	if err != nil {
		return fmt.Errorf("render %s %s: %w", day.Format(domain.ChartDateFormat), ex, err)
	}

	if err := p.uploader.Upload(ctx, day, ex, version, image); err != nil {
		// Matches reader expectations: a missing upload just leaves the
		// previous chart in place, so log and move on.
		p.logger.Error("chart upload failed",
			"date", day.Format(domain.ChartDateFormat), "extremum", ex, "error", err)
		return nil
	}

	if err := lease.MarkChart(ctx, day, version); err != nil {
		return fmt.Errorf("mark chart %s: %w", day.Format(domain.ChartDateFormat), err)
	}
	p.metrics.ChartsRendered.Inc()
	p.logger.Info("chart published", "date", day.Format(domain.ChartDateFormat), "extremum", ex)
	return nil
}

// notifyRefreshed is best-effort: downstream consumers poll the status
// record anyway, the event just makes them faster.
func (p *Pipeline) notifyRefreshed(ctx context.Context, source string, count int) {
	if p.notifier == nil {
		return
	}
	event := domain.RefreshEvent{
		SourceEndpoint: source,
		SourceVersion:  domain.SourceVersion(source),
		RecordCount:    count,
		CompletedAt:    time.Now().UTC(),
	}
	if err := p.notifier.NotifyRefreshed(ctx, event); err != nil {
		p.logger.Warn("refresh notification failed", "error", err)
	}
}

func (p *Pipeline) observePhase(phase string, since time.Time) {
	p.metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(since).Seconds())
}
