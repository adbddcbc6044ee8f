package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"citizen-engagement/internal/issues"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repo is the surface both repositories share, plus seeding.
type repo interface {
	LoadIssue(ctx context.Context, id string) (issues.Issue, error)
	LoadResolvedIssue(ctx context.Context, id string) (issues.Issue, error)
	SaveIssue(ctx context.Context, i issues.Issue) error
	FindUser(ctx context.Context, id string) (issues.User, error)
}

type seeder struct {
	user      func(issues.User)
	issueType func(issues.IssueType)
	issue     func(issues.Issue)
}

var (
	t0    = time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
	owner = issues.User{ID: "u-owner", Firstname: "Jane", Lastname: "Doe", Roles: []string{"citizen"}}
	staff = issues.User{ID: "u-staff", Firstname: "Sam", Lastname: "Field", Roles: []string{"citizen", "staff"}}
)

func seedFixture(s seeder) {
	s.user(owner)
	s.user(staff)
	s.issueType(issues.IssueType{ID: "t-1", Name: "Lighting"})
	s.issue(issues.Issue{
		ID:          "i-1",
		Description: "Broken street light",
		Lat:         46.78,
		Lng:         6.64,
		State:       issues.StateNew,
		Tags:        []string{"light"},
		IssueTypeID: "t-1",
		OwnerID:     owner.ID,
		CreatedOn:   t0,
		UpdatedOn:   t0,
	})
}

func runRepoContract(t *testing.T, newRepo func(t *testing.T) (repo, seeder)) {
	ctx := context.Background()

	t.Run("load unknown issue", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		_, err := r.LoadIssue(ctx, "missing")
		assert.True(t, errors.Is(err, issues.ErrNotFound))
		_, err = r.LoadResolvedIssue(ctx, "missing")
		assert.True(t, errors.Is(err, issues.ErrNotFound))
		_, err = r.FindUser(ctx, "missing")
		assert.True(t, errors.Is(err, issues.ErrNotFound))
	})

	t.Run("load keeps ids only", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		i, err := r.LoadIssue(ctx, "i-1")
		require.NoError(t, err)
		assert.Equal(t, "Broken street light", i.Description)
		assert.Equal(t, issues.StateNew, i.State)
		assert.Equal(t, []string{"light"}, i.Tags)
		assert.Equal(t, owner.ID, i.OwnerID)
		assert.Nil(t, i.Owner)
		assert.True(t, i.UpdatedOn.Equal(t0))
	})

	t.Run("find user", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		u, err := r.FindUser(ctx, staff.ID)
		require.NoError(t, err)
		assert.Equal(t, staff, u)
	})

	t.Run("save appends and bumps version", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		i, err := r.LoadIssue(ctx, "i-1")
		require.NoError(t, err)

		i.State = issues.StateAssigned
		i.AssigneeID = staff.ID
		i.Tags = []string{"light", "urgent"}
		i.UpdatedOn = t0.Add(time.Hour)
		i.Comments = append(i.Comments,
			issues.Comment{ID: "c-1", Text: "The issue has been assigned.", PostedOn: i.UpdatedOn, AuthorID: staff.ID},
			issues.Comment{ID: "c-2", Text: "on it", PostedOn: i.UpdatedOn, AuthorID: staff.ID},
		)
		i.Actions = append(i.Actions, issues.Action{
			ID: "a-1", Type: "assign", User: "Sam Field", ActionDate: i.UpdatedOn, Reason: "The issue has been assigned.",
		})
		require.NoError(t, r.SaveIssue(ctx, i))

		got, err := r.LoadResolvedIssue(ctx, "i-1")
		require.NoError(t, err)
		assert.Equal(t, i.Version+1, got.Version)
		assert.Equal(t, issues.StateAssigned, got.State)
		assert.Equal(t, []string{"light", "urgent"}, got.Tags)
		require.NotNil(t, got.Assignee)
		assert.Equal(t, "Sam Field", got.Assignee.FullName())
		require.NotNil(t, got.Owner)
		assert.Equal(t, "Jane Doe", got.Owner.FullName())
		require.NotNil(t, got.IssueType)
		assert.Equal(t, "Lighting", got.IssueType.Name)
		require.Len(t, got.Comments, 2)
		assert.Equal(t, "c-1", got.Comments[0].ID)
		assert.Equal(t, "c-2", got.Comments[1].ID)
		require.NotNil(t, got.Comments[1].Author)
		assert.Equal(t, staff.ID, got.Comments[1].Author.ID)
		require.Len(t, got.Actions, 1)
		assert.Equal(t, "assign", got.Actions[0].Type)
		assert.True(t, got.Actions[0].ActionDate.Equal(i.UpdatedOn))
	})

	t.Run("stale save conflicts", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		a, err := r.LoadIssue(ctx, "i-1")
		require.NoError(t, err)
		b, err := r.LoadIssue(ctx, "i-1")
		require.NoError(t, err)

		a.State = issues.StateAcknowledged
		a.Actions = append(a.Actions, issues.Action{ID: "a-1", Type: "ack", User: "Sam Field", ActionDate: t0})
		require.NoError(t, r.SaveIssue(ctx, a))

		b.Tags = []string{}
		b.Actions = append(b.Actions, issues.Action{ID: "a-2", Type: "replaceTags", User: "Jane Doe", ActionDate: t0})
		err = r.SaveIssue(ctx, b)
		assert.True(t, errors.Is(err, issues.ErrConflict), "got %v", err)

		got, err := r.LoadIssue(ctx, "i-1")
		require.NoError(t, err)
		assert.Equal(t, issues.StateAcknowledged, got.State)
		assert.Equal(t, []string{"light"}, got.Tags)
		require.Len(t, got.Actions, 1)
		assert.Equal(t, "a-1", got.Actions[0].ID)
	})

	t.Run("save unknown issue", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		err := r.SaveIssue(ctx, issues.Issue{ID: "missing", State: issues.StateNew})
		assert.True(t, errors.Is(err, issues.ErrNotFound), "got %v", err)
	})

	t.Run("dangling references resolve to nil", func(t *testing.T) {
		r, s := newRepo(t)
		seedFixture(s)
		s.issue(issues.Issue{
			ID:          "i-2",
			State:       issues.StateAssigned,
			IssueTypeID: "t-gone",
			OwnerID:     "u-gone",
			AssigneeID:  "u-gone-too",
			Comments:    []issues.Comment{{ID: "c-9", Text: "x", PostedOn: t0, AuthorID: "u-gone"}},
			CreatedOn:   t0,
			UpdatedOn:   t0,
		})
		got, err := r.LoadResolvedIssue(ctx, "i-2")
		require.NoError(t, err)
		assert.Nil(t, got.Owner)
		assert.Nil(t, got.Assignee)
		assert.Nil(t, got.IssueType)
		assert.Nil(t, got.Comments[0].Author)
	})
}
