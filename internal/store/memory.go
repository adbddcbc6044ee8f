// Package store implements the workflow repository port: an in-memory
// repository for tests and local runs, and a database/sql repository for
// Postgres (pgx) and SQLite (modernc).
package store

import (
	"context"
	"fmt"
	"sync"

	"citizen-engagement/internal/issues"
)

// MemoryRepo is a simple in-memory repository useful for tests and local runs.
// It applies the same optimistic concurrency rule as SQLRepo.
type MemoryRepo struct {
	mu     sync.RWMutex
	issues map[string]issues.Issue
	users  map[string]issues.User
	types  map[string]issues.IssueType
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		issues: map[string]issues.Issue{},
		users:  map[string]issues.User{},
		types:  map[string]issues.IssueType{},
	}
}

func (r *MemoryRepo) PutUser(u issues.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Roles = append([]string(nil), u.Roles...)
	r.users[u.ID] = u
}

func (r *MemoryRepo) PutIssueType(t issues.IssueType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
}

// PutIssue seeds or overwrites an issue, bypassing the version check.
func (r *MemoryRepo) PutIssue(i issues.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues[i.ID] = stripped(i)
}

func (r *MemoryRepo) LoadIssue(ctx context.Context, id string) (issues.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.issues[id]
	if !ok {
		return issues.Issue{}, fmt.Errorf("issue %q: %w", id, issues.ErrNotFound)
	}
	return i.Clone(), nil
}

func (r *MemoryRepo) LoadResolvedIssue(ctx context.Context, id string) (issues.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.issues[id]
	if !ok {
		return issues.Issue{}, fmt.Errorf("issue %q: %w", id, issues.ErrNotFound)
	}
	out := i.Clone()
	out.Owner = r.userRef(out.OwnerID)
	out.Assignee = r.userRef(out.AssigneeID)
	if t, ok := r.types[out.IssueTypeID]; ok {
		out.IssueType = &t
	}
	for n := range out.Comments {
		out.Comments[n].Author = r.userRef(out.Comments[n].AuthorID)
	}
	return out, nil
}

func (r *MemoryRepo) SaveIssue(ctx context.Context, i issues.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.issues[i.ID]
	if !ok {
		return fmt.Errorf("issue %q: %w", i.ID, issues.ErrNotFound)
	}
	if cur.Version != i.Version {
		return fmt.Errorf("issue %q at version %d, saved from %d: %w", i.ID, cur.Version, i.Version, issues.ErrConflict)
	}
	if len(i.Comments) < len(cur.Comments) || len(i.Actions) < len(cur.Actions) {
		return fmt.Errorf("issue %q: comments and actions are append-only: %w", i.ID, issues.ErrConflict)
	}
	next := stripped(i)
	next.Version = cur.Version + 1
	r.issues[i.ID] = next
	return nil
}

func (r *MemoryRepo) FindUser(ctx context.Context, id string) (issues.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return issues.User{}, fmt.Errorf("user %q: %w", id, issues.ErrNotFound)
	}
	u.Roles = append([]string(nil), u.Roles...)
	return u, nil
}

func (r *MemoryRepo) userRef(id string) *issues.User {
	if id == "" {
		return nil
	}
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	u.Roles = append([]string(nil), u.Roles...)
	return &u
}

// stripped drops resolved references so only ids are stored.
func stripped(i issues.Issue) issues.Issue {
	out := i.Clone()
	out.Owner, out.Assignee, out.IssueType = nil, nil, nil
	if out.Tags == nil {
		out.Tags = []string{}
	}
	for n := range out.Comments {
		out.Comments[n].Author = nil
	}
	return out
}
