// Package projection flattens a resolved issue aggregate into the shape
// returned to API consumers.
package projection

import (
	"time"

	"citizen-engagement/internal/issues"
)

// UserRef is the public view of a user: id plus "first last".
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Comment struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	PostedOn time.Time `json:"postedOn"`
	Author   *UserRef  `json:"author"`
}

type Action struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	User       string    `json:"user"`
	ActionDate time.Time `json:"actionDate"`
	Reason     string    `json:"reason"`
}

// Issue is the read model. Missing references project to null, never to an error.
type Issue struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	UpdatedOn   time.Time  `json:"updatedOn"`
	State       string     `json:"state"`
	Tags        []string   `json:"tags"`
	IssueType   *IssueType `json:"issueType"`
	Owner       *UserRef   `json:"owner"`
	Assignee    *UserRef   `json:"assignee"`
	Comments    []Comment  `json:"comments"`
	Actions     []Action   `json:"actions"`
}

// Project is a pure function of i.
func Project(i issues.Issue) Issue {
	out := Issue{
		ID:          i.ID,
		Description: i.Description,
		Lat:         i.Lat,
		Lng:         i.Lng,
		UpdatedOn:   i.UpdatedOn,
		State:       string(i.State),
		Tags:        append(make([]string, 0, len(i.Tags)), i.Tags...),
		Owner:       userRef(i.Owner),
		Assignee:    userRef(i.Assignee),
		Comments:    make([]Comment, 0, len(i.Comments)),
		Actions:     make([]Action, 0, len(i.Actions)),
	}
	if i.IssueType != nil {
		out.IssueType = &IssueType{ID: i.IssueType.ID, Name: i.IssueType.Name}
	}
	for _, c := range i.Comments {
		out.Comments = append(out.Comments, Comment{
			ID:       c.ID,
			Text:     c.Text,
			PostedOn: c.PostedOn,
			Author:   userRef(c.Author),
		})
	}
	for _, a := range i.Actions {
		out.Actions = append(out.Actions, Action{
			ID:         a.ID,
			Type:       a.Type,
			User:       a.User,
			ActionDate: a.ActionDate,
			Reason:     a.Reason,
		})
	}
	return out
}

func userRef(u *issues.User) *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.DisplayName()}
}
