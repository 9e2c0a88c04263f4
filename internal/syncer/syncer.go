// Package syncer pushes locally stored results into the shared inventory
// database. Sync is best-effort: a failure marks the local row failed and is
// reported, but never propagates to whoever triggered the grading.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DaveyBK/c-test-intake-app/internal/model"
)

type Clock func() time.Time

// Local is the slice of the local result store the syncer needs.
type Local interface {
	GetResult(id int64) (model.CTestResult, error)
	ListUnsynced() ([]model.CTestResult, error)
	MarkSynced(id int64, at time.Time) error
	MarkSyncFailed(id int64) error
}

// Inventory is the slice of the shared store bridge the syncer needs.
// A nil Inventory means the bridge never came up.
type Inventory interface {
	IsAvailable(ctx context.Context) bool
	SaveResult(ctx context.Context, r model.CTestResult) (int64, error)
}

type Syncer struct {
	Local     Local
	Inventory Inventory
	Now       Clock
}

func New(local Local, inv Inventory, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{Local: local, Inventory: inv, Now: now}
}

// SyncResult mirrors one local result into the shared store and records the
// outcome on the local row. The returned error describes why the mirror
// failed; the local row is already marked failed by then.
func (s *Syncer) SyncResult(ctx context.Context, id int64) error {
	r, err := s.Local.GetResult(id)
	if err != nil {
		return err
	}
	if r.SyncStatus == model.SyncSynced {
		return nil
	}

	if s.Inventory == nil || !s.Inventory.IsAvailable(ctx) {
		_ = s.Local.MarkSyncFailed(id)
		return fmt.Errorf("result %d: shared store unavailable", id)
	}

	if _, err := s.Inventory.SaveResult(ctx, r); err != nil {
		_ = s.Local.MarkSyncFailed(id)
		return fmt.Errorf("result %d: %w", id, err)
	}
	return s.Local.MarkSynced(id, s.Now())
}

// SyncPending runs one pass over every local result that is not yet synced.
// It returns how many rows synced and how many failed; individual failures
// are logged and do not stop the pass.
func (s *Syncer) SyncPending(ctx context.Context) (synced, failed int, err error) {
	pending, err := s.Local.ListUnsynced()
	if err != nil {
		return 0, 0, err
	}
	for _, r := range pending {
		if err := s.SyncResult(ctx, r.ID); err != nil {
			slog.Warn("sync failed", "result_id", r.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
