package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postelma/inbox-platform/internal/model"
)

// Deduper short-circuits duplicate webhook deliveries before they reach the
// database. It is a fast path only: the unique index on
// (conversation_id, platform_message_id) remains the source of truth, so a
// redis outage degrades to DB-level dedup instead of failing ingestion.
type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeduper creates a deduper. rdb may be nil, in which case Seen always
// reports false.
func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

// Seen marks a platform message id as delivered and reports whether it had
// already been marked. Errors are reported as unseen so the DB constraint
// decides.
func (d *Deduper) Seen(ctx context.Context, platform model.Platform, platformMessageID string) bool {
	if d == nil || d.rdb == nil || platformMessageID == "" {
		return false
	}

	key := "webhook:seen:" + string(platform) + ":" + platformMessageID
	set, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false
	}
	return !set
}
