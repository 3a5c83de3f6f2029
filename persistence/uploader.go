package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/besscontroller/supabase"
)

const (
	snapshotTableName = "power_snapshots"
	maxUploadAttempts = 5
	uploadBatchMax    = 200
)

// Uploader periodically drains the local Store to a hosted supabase
// table, in a batched best-effort upload style
// upload routine: a batch that fails to upload is left in the local
// buffer with its attempt count bumped, and is retried on the next tick
// behind whatever is still fresh.
type Uploader struct {
	store  *Store
	client *supabase.Client
	logger *slog.Logger
}

// NewUploader creates an Uploader that drains store to the hosted table
// reachable through client.
func NewUploader(store *Store, client *supabase.Client) *Uploader {
	return &Uploader{
		store:  store,
		client: client,
		logger: slog.Default().With("component", "persistence_uploader"),
	}
}

// Run drains the local buffer to the remote table every period, until ctx
// is cancelled.
func (u *Uploader) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := u.uploadPending(ctx)
			if err != nil {
				u.logger.Warn("upload pass failed", "error", err)
				continue
			}
			if n > 0 {
				u.logger.Info("uploaded buffered snapshots", "count", n)
			}
		}
	}
}

func (u *Uploader) uploadPending(ctx context.Context) (int, error) {
	rows, err := u.store.Pending(ctx, uploadBatchMax)
	if err != nil {
		return 0, fmt.Errorf("read pending rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := u.client.UploadReadings(snapshotTableName, rows); err != nil {
		if incErr := u.store.IncrementUploadAttemptCount(ctx, rows); incErr != nil {
			u.logger.Error("failed to bump upload attempt count", "error", incErr)
		}
		u.giveUpOnExhausted(ctx, rows)
		return 0, fmt.Errorf("upload %d rows: %w", len(rows), err)
	}

	if err := u.store.Delete(ctx, rows); err != nil {
		return 0, fmt.Errorf("delete uploaded rows: %w", err)
	}

	return len(rows), nil
}

// giveUpOnExhausted drops rows that have now used up their upload
// attempts, so a persistently unreachable table doesn't starve fresher
// rows forever.
func (u *Uploader) giveUpOnExhausted(ctx context.Context, rows []StoredSnapshot) {
	var exhausted []StoredSnapshot
	for _, r := range rows {
		if r.UploadAttemptCount+1 >= maxUploadAttempts {
			exhausted = append(exhausted, r)
		}
	}
	if len(exhausted) == 0 {
		return
	}
	if err := u.store.Delete(ctx, exhausted); err != nil {
		u.logger.Error("failed to drop exhausted rows", "error", err)
		return
	}
	u.logger.Warn("dropped rows that exhausted upload attempts", "count", len(exhausted))
}
