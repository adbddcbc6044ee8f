package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/metrics"
	"citizen-engagement/internal/policy"
	"citizen-engagement/internal/projection"
	"citizen-engagement/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "citizen-engagement/workflow"

// Service runs the request pipeline: load, authorize, apply, persist,
// reload and project. It keeps no per-request state between calls.
type Service struct {
	repo    Repository
	policy  *policy.Policy
	machine *Machine
	cache   ViewCache
	guard   MutationGuard
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c ViewCache) Option { return func(s *Service) { s.cache = c } }

func WithGuard(g MutationGuard) Option { return func(s *Service) { s.guard = g } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithMachine replaces the default machine, typically to pin its clock.
func WithMachine(m *Machine) Option { return func(s *Service) { s.machine = m } }

func NewService(repo Repository, pol *policy.Policy, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		policy:  pol,
		machine: NewMachine(),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = policy.Default()
	}
	return s
}

// Apply executes cmd on issue issueID on behalf of actorID and returns the
// freshly projected issue. Nothing is persisted unless every step before the
// save succeeded, and nothing is cached or reported as success unless the
// save did.
func (s *Service) Apply(ctx context.Context, issueID, actorID string, cmd Command) (view projection.Issue, err error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "workflow.Apply", trace.WithAttributes(
		attribute.String("issue.id", issueID),
		attribute.String("issue.action", string(cmd.Kind)),
	))
	defer func() {
		outcome := Outcome(err)
		s.metrics.ObserveAction(string(cmd.Kind), outcome, s.now().Sub(start))
		span.SetAttributes(attribute.String("issue.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logger.From(ctx).With("issue_id", issueID, "action", string(cmd.Kind), "actor_id", actorID)

	if err := cmd.Validate(); err != nil {
		return projection.Issue{}, err
	}
	if actorID == "" {
		return projection.Issue{}, fmt.Errorf("%w: no actor", issues.ErrUnauthenticated)
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, issueID)
		if err != nil {
			return projection.Issue{}, err
		}
		defer release()
	}

	issue, err := s.repo.LoadIssue(ctx, issueID)
	if err != nil {
		return projection.Issue{}, err
	}

	actor, err := s.repo.FindUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, issues.ErrNotFound) {
			return projection.Issue{}, fmt.Errorf("%w: actor %q is not a known user", issues.ErrUnauthenticated, actorID)
		}
		return projection.Issue{}, err
	}

	if err := s.policy.Authorize(cmd.Kind, actor.Roles); err != nil {
		log.Info("issue action denied", "reason", err.Error())
		return projection.Issue{}, err
	}

	var assignee *issues.User
	if cmd.Kind == issues.ActionAssign {
		u, err := s.repo.FindUser(ctx, cmd.AssigneeID)
		if err != nil {
			return projection.Issue{}, fmt.Errorf("assignee: %w", err)
		}
		assignee = &u
	}

	next, err := s.machine.Apply(issue, actor, cmd, assignee)
	if err != nil {
		return projection.Issue{}, err
	}

	if err := s.repo.SaveIssue(ctx, next); err != nil {
		if errors.Is(err, issues.ErrConflict) || errors.Is(err, issues.ErrPersistence) {
			return projection.Issue{}, err
		}
		return projection.Issue{}, fmt.Errorf("%w: %w", issues.ErrPersistence, err)
	}

	view, version, err := s.project(ctx, issueID)
	if err != nil {
		s.invalidate(ctx, issueID)
		return projection.Issue{}, err
	}
	s.store(ctx, view, version)

	log.Info("issue action applied", "state", view.State, "actions", len(view.Actions))
	return view, nil
}

// Get returns the projected issue, from the cache when one is configured.
func (s *Service) Get(ctx context.Context, issueID string) (projection.Issue, error) {
	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, issueID)
		switch {
		case err != nil:
			s.metrics.IncrementCacheLookup("error")
			logger.From(ctx).Warn("projection cache read failed", "issue_id", issueID, "error", err)
		case ok:
			s.metrics.IncrementCacheLookup("hit")
			return v, nil
		default:
			s.metrics.IncrementCacheLookup("miss")
		}
	}
	view, version, err := s.project(ctx, issueID)
	if err != nil {
		return projection.Issue{}, err
	}
	s.store(ctx, view, version)
	return view, nil
}

// Exists reports issues.ErrNotFound when issueID does not resolve.
func (s *Service) Exists(ctx context.Context, issueID string) error {
	_, err := s.repo.LoadIssue(ctx, issueID)
	return err
}

func (s *Service) project(ctx context.Context, issueID string) (projection.Issue, int64, error) {
	resolved, err := s.repo.LoadResolvedIssue(ctx, issueID)
	if err != nil {
		return projection.Issue{}, 0, err
	}
	return projection.Project(resolved), resolved.Version, nil
}

// store writes view to the cache. Failures are logged, and a failed write
// drops the entry so a stale view is not served.
func (s *Service) store(ctx context.Context, view projection.Issue, version int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, view, version); err != nil {
		logger.From(ctx).Warn("projection cache write failed", "issue_id", view.ID, "error", err)
		s.invalidate(ctx, view.ID)
	}
}

func (s *Service) invalidate(ctx context.Context, issueID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, issueID); err != nil {
		logger.From(ctx).Warn("projection cache invalidate failed", "issue_id", issueID, "error", err)
	}
}

// Outcome is the metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, issues.ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, issues.ErrNotFound):
		return "not_found"
	case errors.Is(err, issues.ErrForbidden):
		return "forbidden"
	case errors.Is(err, issues.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, issues.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, issues.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, issues.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
