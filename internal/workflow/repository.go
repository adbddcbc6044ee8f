package workflow

import (
	"context"

	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/projection"
)

// Repository is the persistence port. Implementations return errors wrapping
// issues.ErrNotFound for unknown ids and issues.ErrConflict when SaveIssue
// loses an optimistic-concurrency race.
type Repository interface {
	// LoadIssue returns the aggregate with ids only.
	LoadIssue(ctx context.Context, id string) (issues.Issue, error)
	// LoadResolvedIssue also populates owner, assignee, issue type and
	// comment authors. Dangling references resolve to nil.
	LoadResolvedIssue(ctx context.Context, id string) (issues.Issue, error)
	// SaveIssue persists state, assignee, tags and any comments or actions
	// appended since the issue was loaded, as one atomic write.
	SaveIssue(ctx context.Context, issue issues.Issue) error
	FindUser(ctx context.Context, id string) (issues.User, error)
}

// ViewCache stores projected issues. A miss is (zero, false, nil). Put
// carries the issue version the view was projected from and must not replace
// a cached view of a higher version.
type ViewCache interface {
	Get(ctx context.Context, id string) (projection.Issue, bool, error)
	Put(ctx context.Context, view projection.Issue, version int64) error
	Invalidate(ctx context.Context, id string) error
}

// MutationGuard admits at most one in-flight mutation per issue. Acquire
// returns an error wrapping issues.ErrConflict when the issue is busy.
type MutationGuard interface {
	Acquire(ctx context.Context, issueID string) (release func(), err error)
}
