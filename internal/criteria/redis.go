package criteria

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SnapshotKey is the Redis key where the criteria document is stored.
	SnapshotKey = "criteria:snapshot"
	// VersionKey is the Redis key where the criteria version is stored.
	VersionKey = "criteria:version"
)

// Loader handles loading criteria snapshots from Redis.
type Loader struct {
	client *redis.Client
}

// NewLoader creates a new snapshot loader with the given Redis client.
func NewLoader(client *redis.Client) *Loader {
	return &Loader{client: client}
}

// LoadSnapshot loads the criteria document from Redis and validates it.
func (l *Loader) LoadSnapshot(ctx context.Context) (Entries, error) {
	data, err := l.client.Get(ctx, SnapshotKey).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("criteria snapshot not found in Redis (key: %s)", SnapshotKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get criteria snapshot from Redis: %w", err)
	}

	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded criteria snapshot from Redis",
		"hazard_types", len(entries),
		"criteria_count", entries.count(),
	)
	return entries, nil
}

// GetVersion returns the current criteria version from Redis.
// Returns 0 if the version doesn't exist yet.
func (l *Loader) GetVersion(ctx context.Context) (int64, error) {
	version, err := l.client.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get criteria version from Redis: %w", err)
	}
	return version, nil
}

// StoreSnapshot validates data as a criteria document, stores it and bumps
// the version so running reloaders pick it up. It returns the new version.
func (l *Loader) StoreSnapshot(ctx context.Context, data []byte) (int64, error) {
	if _, err := Parse(data); err != nil {
		return 0, err
	}
	if err := l.client.Set(ctx, SnapshotKey, data, 0).Err(); err != nil {
		return 0, fmt.Errorf("failed to store criteria snapshot in Redis: %w", err)
	}
	version, err := l.client.Incr(ctx, VersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump criteria version in Redis: %w", err)
	}
	return version, nil
}

// snapshotSource is the subset of *Loader the reloader depends on.
type snapshotSource interface {
	LoadSnapshot(ctx context.Context) (Entries, error)
	GetVersion(ctx context.Context) (int64, error)
}

// Reloader polls Redis for version changes and swaps the table when needed.
type Reloader struct {
	loader         snapshotSource
	table          *Table
	pollInterval   time.Duration
	currentVersion int64
}

// NewReloader creates a new reloader with the given dependencies.
func NewReloader(loader *Loader, table *Table, pollInterval time.Duration) *Reloader {
	return newReloader(loader, table, pollInterval)
}

func newReloader(loader snapshotSource, table *Table, pollInterval time.Duration) *Reloader {
	return &Reloader{
		loader:       loader,
		table:        table,
		pollInterval: pollInterval,
	}
}

// Start loads the current snapshot into the table and begins polling Redis
// for version changes in a background goroutine that exits when ctx is done.
func (r *Reloader) Start(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}
	entries, err := r.loader.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	r.table.Update(entries)
	r.currentVersion = version

	slog.Info("Starting criteria version poller",
		"poll_interval", r.pollInterval,
		"initial_version", r.currentVersion,
	)

	go r.pollLoop(ctx)
	return nil
}

func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Criteria version poller stopped")
			return
		case <-ticker.C:
			if err := r.checkAndReload(ctx); err != nil {
				slog.Error("Failed to check/reload criteria", "error", err)
			}
		}
	}
}

// checkAndReload checks if the version has changed and reloads if needed.
func (r *Reloader) checkAndReload(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}
	if version == r.currentVersion {
		return nil
	}

	slog.Info("Criteria version changed, reloading",
		"old_version", r.currentVersion,
		"new_version", version,
	)

	entries, err := r.loader.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	r.table.Update(entries)
	r.currentVersion = version

	slog.Info("Criteria reloaded successfully",
		"version", version,
		"criteria_count", entries.count(),
	)
	return nil
}

// ReloadNow forces an immediate version check.
func (r *Reloader) ReloadNow(ctx context.Context) error {
	return r.checkAndReload(ctx)
}
