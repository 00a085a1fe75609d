// Package guard implements cross-run mutual exclusion over the persisted
// status record. Acquisition is a single conditional read-modify-write
// against the backing store, never a read followed by a write, so two
// replicas racing on the same schedule cannot both enter an update.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// StatusStore is the persistence contract for the singleton status record.
// AcquireUpdating must be atomic compare-and-swap on the IsUpdating flag:
// it flips false→true and reports whether this caller won.
type StatusStore interface {
	Fetch(ctx context.Context) (domain.StatusRecord, error)
	AcquireUpdating(ctx context.Context, holderID string, at time.Time) (bool, error)
	ReleaseUpdating(ctx context.Context) error
	SetLastSource(ctx context.Context, endpoint string) error
	SetChart(ctx context.Context, date, version string, chartDate time.Time) error
	RemoveChart(ctx context.Context, date string) error
}

// Guard gates pipeline runs on the shared status record.
type Guard struct {
	store  StatusStore
	logger *slog.Logger
	clock  clockwork.Clock
}

// New creates a guard over the given store.
func New(store StatusStore, logger *slog.Logger) *Guard {
	return &Guard{store: store, logger: logger, clock: clockwork.NewRealClock()}
}

// NewWithClock is New with an injected time source for tests.
func NewWithClock(store StatusStore, logger *slog.Logger, clock clockwork.Clock) *Guard {
	return &Guard{store: store, logger: logger, clock: clock}
}

// Status reads the current status record.
func (g *Guard) Status(ctx context.Context) (domain.StatusRecord, error) {
	return g.store.Fetch(ctx)
}

// TryAcquire attempts the false→true transition on IsUpdating. It returns
// domain.ErrAlreadyRunning when another holder owns the update. On success
// the returned lease owns the flag; Release must run on every exit path.
func (g *Guard) TryAcquire(ctx context.Context) (*Lease, error) {
	holderID := uuid.NewString()
	won, err := g.store.AcquireUpdating(ctx, holderID, g.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("acquire update guard: %w", err)
	}
	if !won {
		return nil, domain.ErrAlreadyRunning
	}
	g.logger.Info("update guard acquired", "holder_id", holderID)
	return &Lease{guard: g, holderID: holderID}, nil
}

// Lease represents ownership of the update guard for one run. Phase markers
// update reader-visible progress without releasing the flag.
type Lease struct {
	guard    *Guard
	holderID string
	released atomic.Bool
}

// HolderID identifies this lease in the status record.
func (l *Lease) HolderID() string {
	return l.holderID
}

// MarkSource records the endpoint the published dataset now derives from.
func (l *Lease) MarkSource(ctx context.Context, endpoint string) error {
	return l.guard.store.SetLastSource(ctx, endpoint)
}

// MarkChart records that a chart for the given day was published from the
// given source version.
func (l *Lease) MarkChart(ctx context.Context, day time.Time, version string) error {
	return l.guard.store.SetChart(ctx, day.Format(domain.ChartDateFormat), version, day)
}

// RemoveChart drops a chart reference no reader can reach anymore.
func (l *Lease) RemoveChart(ctx context.Context, date string) error {
	return l.guard.store.RemoveChart(ctx, date)
}

// Release unconditionally clears IsUpdating. It is idempotent and safe to
// defer alongside an explicit call. A release failure leaves the lock stuck
// and requires operational intervention, so it is returned to the caller.
func (l *Lease) Release(ctx context.Context) error {
	if !l.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.guard.store.ReleaseUpdating(ctx); err != nil {
		l.guard.logger.Error("update guard release failed; lock requires manual reset",
			"holder_id", l.holderID, "error", err)
		return fmt.Errorf("release update guard: %w", err)
	}
	l.guard.logger.Info("update guard released", "holder_id", l.holderID)
	return nil
}
