// Package archive persists finished run snapshots so they outlive the
// in-memory session manager. Redis-backed; a disabled archive is a no-op.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/session"
	"github.com/jatanrathod13/researcher/internal/telemetry"
)

const (
	runKeyPrefix = "researcher:run:"
	recentKey    = "researcher:runs:recent"
)

// Archive stores finished runs and lists recent ones.
type Archive interface {
	SaveRun(ctx context.Context, snap session.Snapshot) error
	RecentRuns(ctx context.Context, n int) ([]session.Snapshot, error)
}

// New returns a redis archive, or a no-op one when disabled.
func New(cfg config.ArchiveConfig) Archive {
	if !cfg.Enabled {
		return Disabled{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisArchive{
		client: client,
		ttl:    cfg.TTL,
		recent: cfg.Recent,
		logger: telemetry.NewLogger("ARCHIVE"),
	}
}

// Disabled is the archive used when no redis is configured.
type Disabled struct{}

func (Disabled) SaveRun(context.Context, session.Snapshot) error { return nil }

func (Disabled) RecentRuns(context.Context, int) ([]session.Snapshot, error) {
	return nil, nil
}

// RedisArchive keeps each run snapshot under its own key with a TTL, plus a
// capped index of recent run IDs.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
	recent int
	logger *log.Logger
}

func (a *RedisArchive) SaveRun(ctx context.Context, snap session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", snap.ID, err)
	}

	pipe := a.client.TxPipeline()
	pipe.Set(ctx, runKeyPrefix+snap.ID, payload, a.ttl)
	pipe.LPush(ctx, recentKey, snap.ID)
	if a.recent > 0 {
		pipe.LTrim(ctx, recentKey, 0, int64(a.recent)-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archiving run %s: %w", snap.ID, err)
	}
	a.logger.Printf("archived run %s (%s)", snap.ID, snap.Status)
	return nil
}

func (a *RedisArchive) RecentRuns(ctx context.Context, n int) ([]session.Snapshot, error) {
	if n <= 0 {
		n = 10
	}
	ids, err := a.client.LRange(ctx, recentKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing recent runs: %w", err)
	}

	var out []session.Snapshot
	for _, id := range ids {
		raw, err := a.client.Get(ctx, runKeyPrefix+id).Bytes()
		if err == redis.Nil {
			// expired under TTL but still indexed
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading run %s: %w", id, err)
		}
		var snap session.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			a.logger.Printf("skipping corrupt run %s: %v", id, err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
