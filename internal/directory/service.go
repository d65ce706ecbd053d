package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/shared/metrics"
	"snaudit-backend/internal/shared/telemetry"
	"snaudit-backend/internal/snow"
)

// Lister is the read side of the instance client the sync pulls from.
type Lister interface {
	ListUsers(ctx context.Context) ([]snow.User, error)
}

// ErrNoSource is returned by Sync when no instance client is configured.
var ErrNoSource = errors.New("directory: no instance client configured")

// Service owns the cached user snapshot.
type Service struct {
	Repo   Repo
	Source Lister
}

// SyncResult summarizes one directory sync.
type SyncResult struct {
	Synced   int       `json:"synced"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Sync pulls every user page from the instance and upserts the cache rows.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	if s.Source == nil {
		return SyncResult{}, ErrNoSource
	}
	started := time.Now()

	users, err := s.Source.ListUsers(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("directory: fetch users: %w", err)
	}

	synced := 0
	for _, su := range users {
		if su.SysID == "" {
			continue
		}
		if err := s.Repo.Upsert(ctx, fromSnow(su)); err != nil {
			return SyncResult{}, fmt.Errorf("directory: upsert %s: %w", su.SysID, err)
		}
		synced++
	}

	metrics.IncDirectorySync()
	telemetry.Info("directory.synced", map[string]any{
		"users":      synced,
		"durationMs": time.Since(started).Milliseconds(),
	})
	return SyncResult{Synced: synced, SyncedAt: time.Now().UTC()}, nil
}

// Snapshot returns the cached population in the engine's input shape.
func (s *Service) Snapshot(ctx context.Context) ([]engine.UserRecord, error) {
	users, err := s.Repo.All(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]engine.UserRecord, 0, len(users))
	for _, u := range users {
		records = append(records, u.Record())
	}
	return records, nil
}

// Lookup fetches one cached user by sys_id.
func (s *Service) Lookup(ctx context.Context, sysID string) (User, error) {
	return s.Repo.GetBySysID(ctx, sysID)
}

// List pages through the cached users and reports the total row count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	users, err := s.Repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
