package issues

import (
	"strings"
	"time"
)

// Issue is the aggregate root: the issue together with its owned comments and
// audit actions.
//
// Invariants:
// - State only changes through the workflow.
// - Comments and Actions are append-only; never reordered or truncated.
// - Every successful mutation appends exactly one Action.
//
// Owner, Assignee, IssueType and Comment.Author are only populated by a
// resolved load; the *ID fields are always authoritative.
type Issue struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`

	State State    `json:"state"`
	Tags  []string `json:"tags"`

	IssueTypeID string     `json:"issue_type_id,omitempty"`
	IssueType   *IssueType `json:"-"`

	OwnerID string `json:"owner_id,omitempty"`
	Owner   *User  `json:"-"`

	AssigneeID string `json:"assignee_id,omitempty"`
	Assignee   *User  `json:"-"`

	Comments []Comment `json:"comments"`
	Actions  []Action  `json:"actions"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`

	// Version is the optimistic concurrency token; stores bump it on save.
	Version int64 `json:"version"`
}

// HasAssignee reports whether an assignee has been set.
func (i Issue) HasAssignee() bool { return i.AssigneeID != "" }

// Clone returns a copy that shares no slices with i.
func (i Issue) Clone() Issue {
	out := i
	out.Tags = append([]string(nil), i.Tags...)
	out.Comments = append([]Comment(nil), i.Comments...)
	out.Actions = append([]Action(nil), i.Actions...)
	return out
}

// Comment is immutable once created and owned by exactly one issue.
type Comment struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	PostedOn time.Time `json:"posted_on"`
	AuthorID string    `json:"author_id,omitempty"`
	Author   *User     `json:"-"`
}

// Action is one immutable audit record. User is the display name captured at
// action time, not a live reference.
type Action struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	User       string    `json:"user"`
	ActionDate time.Time `json:"action_date"`
	Reason     string    `json:"reason"`
}

// User is owned externally; the workflow only reads ID, full name and roles.
type User struct {
	ID        string   `json:"id"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	Roles     []string `json:"roles"`
}

// FullName is the "first last" display name used in projections and actions.
func (u User) FullName() string {
	return u.Firstname + " " + u.Lastname
}

// DisplayName is FullName, or the user id when both name parts are blank.
func (u User) DisplayName() string {
	if n := u.FullName(); strings.TrimSpace(n) != "" {
		return n
	}
	return u.ID
}

// IssueType is read-only reference data.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
