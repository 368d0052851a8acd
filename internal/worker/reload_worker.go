// Package worker runs background dataset reloads for the server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulse/internal/amqp"
	"pulse/internal/dataset"
	plog "pulse/internal/log"
)

// Reloader is the part of dataset.Store the worker drives.
type Reloader interface {
	Current() *dataset.Snapshot
	Reload(ctx context.Context, force bool) (*dataset.Snapshot, bool, error)
}

// ReloadWorker turns reload messages and ticks into store reloads.
type ReloadWorker struct {
	store  Reloader
	logger *slog.Logger
}

func NewReloadWorker(store Reloader, logger *slog.Logger) *ReloadWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadWorker{
		store:  store,
		logger: logger.With(plog.FieldComponent, plog.ComponentWorker),
	}
}

// HandleReloadMessage forces a reload unless the published snapshot already
// comes from the run the message announces.
func (w *ReloadWorker) HandleReloadMessage(ctx context.Context, msg *amqp.ReloadMessage) error {
	if msg.RunID != "" && w.store.Current().Report.RunID == msg.RunID {
		w.logger.InfoContext(ctx, "Snapshot already serves run, skipping reload", plog.FieldRunID, msg.RunID)
		return nil
	}

	snap, _, err := w.store.Reload(ctx, true)
	if err != nil {
		return fmt.Errorf("reload for run %s: %w", msg.RunID, err)
	}
	w.logger.InfoContext(ctx, "Reloaded dataset from message",
		plog.NewFields().
			WithOperation(plog.OpReload).
			WithSnapshot(snap.Report.RunID, snap.Version, len(snap.Records)).
			ToSlice()...)
	return nil
}

// RunPeriodic checks the source every interval and reloads when its
// fingerprint changed. It returns when ctx is cancelled.
func (w *ReloadWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, changed, err := w.store.Reload(ctx, false)
			if err != nil {
				w.logger.ErrorContext(ctx, "Periodic reload failed", plog.FieldError, err)
				continue
			}
			if changed {
				w.logger.InfoContext(ctx, "Source changed, snapshot replaced", plog.FieldVersion, snap.Version)
			}
		}
	}
}
