package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"citizen-engagement/internal/issues"

	"github.com/google/uuid"
)

var ErrInvalidAction = errors.New("audit: invalid action")

// Trail builds Action records. It holds no state besides its clock and id
// source, both replaceable in tests.
type Trail struct {
	clock func() time.Time
	newID func() string
}

func NewTrail() *Trail {
	return &Trail{clock: time.Now, newID: uuid.NewString}
}

// NewTrailWithClock is NewTrail with a fixed time source.
func NewTrailWithClock(clock func() time.Time) *Trail {
	return &Trail{clock: clock, newID: uuid.NewString}
}

// Append returns a copy of issue with one new Action at the end of its trail.
// The input is left untouched. The actor's display name (the user id when
// the profile has no name) is captured now and never re-resolved.
func (t *Trail) Append(issue issues.Issue, typ Type, actor issues.User, reason string) (issues.Issue, error) {
	if !typ.Valid() {
		return issues.Issue{}, fmt.Errorf("%w: unknown type %q", ErrInvalidAction, typ)
	}
	name := actor.DisplayName()
	if strings.TrimSpace(name) == "" {
		return issues.Issue{}, fmt.Errorf("%w: actor has neither name nor id", ErrInvalidAction)
	}

	a := issues.Action{
		ID:         t.newID(),
		Type:       string(typ),
		User:       name,
		ActionDate: t.clock().UTC(),
		Reason:     reason,
	}

	out := issue
	out.Actions = make([]issues.Action, 0, len(issue.Actions)+1)
	out.Actions = append(out.Actions, issue.Actions...)
	out.Actions = append(out.Actions, a)
	return out, nil
}
