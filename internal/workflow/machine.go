package workflow

import (
	"fmt"
	"time"

	"citizen-engagement/internal/audit"
	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/tags"

	"github.com/google/uuid"
)

// Mandatory comment texts posted by each transition.
const (
	MessageAck     = "The staff has received the issue."
	MessageAssign  = "The issue has been assigned."
	MessageStart   = "The issue is under investigation."
	MessageReject  = "It seems there is nothing to do there!"
	MessageResolve = "Yeah! Staff is proud to announce that the issue has been solved!"
)

type transition struct {
	to               issues.State
	requiresAssignee bool
	message          string
}

var transitions = map[issues.ActionKind]transition{
	issues.ActionAck:     {to: issues.StateAcknowledged, message: MessageAck},
	issues.ActionAssign:  {to: issues.StateAssigned, message: MessageAssign},
	issues.ActionStart:   {to: issues.StateInProgress, requiresAssignee: true, message: MessageStart},
	issues.ActionReject:  {to: issues.StateRejected, requiresAssignee: true, message: MessageReject},
	issues.ActionResolve: {to: issues.StateResolved, requiresAssignee: true, message: MessageResolve},
}

// Machine applies one Command to an issue value. It performs no I/O and never
// modifies its input: on success it returns a new aggregate carrying the
// changed state, the new comments and exactly one new audit Action; on error
// it returns the zero Issue.
type Machine struct {
	trail *audit.Trail
	clock func() time.Time
	newID func() string
}

func NewMachine() *Machine {
	return NewMachineWithClock(time.Now)
}

func NewMachineWithClock(clock func() time.Time) *Machine {
	return &Machine{
		trail: audit.NewTrailWithClock(clock),
		clock: clock,
		newID: uuid.NewString,
	}
}

// Apply executes cmd on behalf of actor. assignee must be the resolved user
// for an assign command and is ignored otherwise.
func (m *Machine) Apply(issue issues.Issue, actor issues.User, cmd Command, assignee *issues.User) (issues.Issue, error) {
	if err := cmd.Validate(); err != nil {
		return issues.Issue{}, err
	}
	now := m.clock().UTC()
	next := issue.Clone()

	var reason string
	switch cmd.Kind {
	case issues.ActionAck, issues.ActionAssign, issues.ActionStart, issues.ActionReject, issues.ActionResolve:
		t := transitions[cmd.Kind]
		if issue.State.Terminal() {
			return issues.Issue{}, fmt.Errorf("%w: %s on %s issue", issues.ErrInvalidTransition, cmd.Kind, issue.State)
		}
		if t.requiresAssignee && !issue.HasAssignee() {
			return issues.Issue{}, fmt.Errorf("%w: %s requires an assignee", issues.ErrInvalidTransition, cmd.Kind)
		}
		if cmd.Kind == issues.ActionAssign {
			if assignee == nil || assignee.ID == "" {
				return issues.Issue{}, fmt.Errorf("%w: assignee not resolved", issues.ErrInvalidPayload)
			}
			u := *assignee
			next.AssigneeID = u.ID
			next.Assignee = &u
		}
		next.Comments = append(next.Comments, m.comment(t.message, actor, now))
		if cmd.Comment != "" {
			next.Comments = append(next.Comments, m.comment(cmd.Comment, actor, now))
		}
		next.State = t.to
		reason = t.message

	case issues.ActionComment:
		next.Comments = append(next.Comments, m.comment(cmd.Text, actor, now))
		reason = audit.ReasonCommentAdded

	case issues.ActionAddTags:
		next.Tags = tags.Union(issue.Tags, cmd.Tags)
		reason = audit.ReasonTagsAdded

	case issues.ActionRemoveTags:
		next.Tags = tags.Difference(issue.Tags, cmd.Tags)
		reason = audit.ReasonTagsRemoved

	case issues.ActionReplaceTags:
		next.Tags = tags.Replace(cmd.Tags)
		reason = audit.ReasonTagsReplaced
	}
	next.UpdatedOn = now

	typ, _ := audit.TypeFor(cmd.Kind)
	out, err := m.trail.Append(next, typ, actor, reason)
	if err != nil {
		return issues.Issue{}, err
	}
	return out, nil
}

func (m *Machine) comment(text string, author issues.User, at time.Time) issues.Comment {
	a := author
	return issues.Comment{
		ID:       m.newID(),
		Text:     text,
		PostedOn: at,
		AuthorID: author.ID,
		Author:   &a,
	}
}
