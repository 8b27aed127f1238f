// Package worker keeps the local snapshot copy fresh.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"findash/internal/amqp"
)

// Downloader fetches the latest snapshot files to local disk.
type Downloader interface {
	Download(ctx context.Context) error
}

// Invalidator drops cached data after a download.
type Invalidator interface {
	Invalidate()
}

// Consumer delivers snapshot update notifications.
type Consumer interface {
	ConsumeSnapshotUpdated(ctx context.Context, handler func(context.Context, *amqp.SnapshotUpdatedMessage) error) error
}

// RefreshWorker downloads the snapshot on a fixed interval and whenever an
// update notification arrives.
type RefreshWorker struct {
	downloader   Downloader
	invalidators []Invalidator
	interval     time.Duration

	mu          sync.Mutex
	lastRefresh time.Time
	lastErr     error
}

func NewRefreshWorker(d Downloader, interval time.Duration, invalidators ...Invalidator) *RefreshWorker {
	return &RefreshWorker{downloader: d, interval: interval, invalidators: invalidators}
}

// Refresh downloads once and invalidates on success. Concurrent calls are
// serialized.
func (w *RefreshWorker) Refresh(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	if err := w.downloader.Download(ctx); err != nil {
		w.lastErr = err
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	for _, inv := range w.invalidators {
		inv.Invalidate()
	}
	w.lastRefresh, w.lastErr = time.Now(), nil
	slog.InfoContext(ctx, "Snapshot refreshed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Status reports the time of the last successful refresh and the error of
// the last attempt, if it failed.
func (w *RefreshWorker) Status() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRefresh, w.lastErr
}

// HandleSnapshotUpdated refreshes in response to a notification.
func (w *RefreshWorker) HandleSnapshotUpdated(ctx context.Context, msg *amqp.SnapshotUpdatedMessage) error {
	slog.InfoContext(ctx, "Snapshot update notification", "id", msg.ID, "object", msg.Object, "updated_at", msg.UpdatedAt)
	return w.Refresh(ctx)
}

// Run refreshes immediately, then on every tick until ctx is done. When
// consumer is not nil notifications are handled alongside the ticker.
func (w *RefreshWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Refresh(gctx); err != nil {
			slog.ErrorContext(gctx, "Initial refresh failed", "error", err)
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.Refresh(gctx); err != nil {
					slog.ErrorContext(gctx, "Periodic refresh failed", "error", err)
				}
			}
		}
	})

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeSnapshotUpdated(gctx, w.HandleSnapshotUpdated)
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume snapshot updates: %w", err)
		})
	}

	return g.Wait()
}
