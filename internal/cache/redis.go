// Package cache holds the Redis-backed projection cache and per-issue
// mutation guard. Both are optional; the workflow runs without them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/projection"
	"citizen-engagement/pkg/logger"
	"citizen-engagement/pkg/utils"

	"github.com/redis/go-redis/v9"
)

func viewKey(issueID string) string     { return "issue:" + issueID + ":view" }
func mutationKey(issueID string) string { return "issue:" + issueID + ":mutation" }

// ProjectionCache stores projected issues as JSON with a TTL, tagged with the
// issue version they were projected from. A write never replaces a view of a
// newer version.
type ProjectionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProjectionCache(rdb *redis.Client, ttl time.Duration) *ProjectionCache {
	return &ProjectionCache{rdb: rdb, ttl: ttl}
}

func (c *ProjectionCache) Get(ctx context.Context, issueID string) (projection.Issue, bool, error) {
	raw, err := utils.GetVersioned(ctx, c.rdb, viewKey(issueID))
	if errors.Is(err, redis.Nil) {
		return projection.Issue{}, false, nil
	}
	if err != nil {
		return projection.Issue{}, false, err
	}
	var v projection.Issue
	if err := json.Unmarshal(raw, &v); err != nil {
		return projection.Issue{}, false, fmt.Errorf("decode cached issue %q: %w", issueID, err)
	}
	return v, true, nil
}

func (c *ProjectionCache) Put(ctx context.Context, v projection.Issue, version int64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	written, err := utils.SetIfNotOlder(ctx, c.rdb, viewKey(v.ID), version, raw, c.ttl)
	if err != nil {
		return err
	}
	if !written {
		logger.From(ctx).Debug("projection cache kept newer view", "issue_id", v.ID, "version", version)
	}
	return nil
}

func (c *ProjectionCache) Invalidate(ctx context.Context, issueID string) error {
	return c.rdb.Del(ctx, viewKey(issueID)).Err()
}

// MutationGuard admits one in-flight mutation per issue using the Lua
// concurrency cap with a limit of 1. The lease TTL frees the slot if the
// holder dies.
type MutationGuard struct {
	rdb   *redis.Client
	lease time.Duration
}

func NewMutationGuard(rdb *redis.Client, lease time.Duration) *MutationGuard {
	return &MutationGuard{rdb: rdb, lease: lease}
}

// Acquire fails with issues.ErrConflict when another mutation holds the slot.
// Redis errors fail open: optimistic concurrency in the store still rejects
// a lost update.
func (g *MutationGuard) Acquire(ctx context.Context, issueID string) (func(), error) {
	key := mutationKey(issueID)
	ok, err := utils.AcquireConcurrencyCap(ctx, g.rdb, key, 1, g.lease)
	if err != nil {
		logger.From(ctx).Warn("mutation guard unavailable", "issue_id", issueID, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: another action on issue %q is in progress", issues.ErrConflict, issueID)
	}
	return func() {
		if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), g.rdb, key); err != nil {
			logger.From(ctx).Warn("mutation guard release failed", "issue_id", issueID, "error", err)
		}
	}, nil
}
