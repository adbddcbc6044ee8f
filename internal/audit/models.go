// Package audit appends immutable Action records to an issue's trail.
//
// Invariants:
// - Actions are never updated or deleted.
// - Every successful mutation of an issue appends exactly one Action.
// - The trail is display-only; authorization never reads it.
package audit

import "citizen-engagement/internal/issues"

// Type is the persisted action type of an audit record. It equals the request
// action name except for comments, which are recorded as addComment.
type Type string

const (
	TypeAck         Type = "ack"
	TypeAssign      Type = "assign"
	TypeStart       Type = "start"
	TypeReject      Type = "reject"
	TypeResolve     Type = "resolve"
	TypeAddComment  Type = "addComment"
	TypeAddTags     Type = "addTags"
	TypeRemoveTags  Type = "removeTags"
	TypeReplaceTags Type = "replaceTags"
)

// Reasons recorded for the non-state actions. State transitions use their
// mandatory comment text as the reason.
const (
	ReasonCommentAdded = "Comment added."
	ReasonTagsAdded    = "Tags added to the issue."
	ReasonTagsRemoved  = "Tags removed from the issue."
	ReasonTagsReplaced = "Tags replaced on the issue."
)

var kindTypes = map[issues.ActionKind]Type{
	issues.ActionAck:         TypeAck,
	issues.ActionAssign:      TypeAssign,
	issues.ActionStart:       TypeStart,
	issues.ActionReject:      TypeReject,
	issues.ActionResolve:     TypeResolve,
	issues.ActionComment:     TypeAddComment,
	issues.ActionAddTags:     TypeAddTags,
	issues.ActionRemoveTags:  TypeRemoveTags,
	issues.ActionReplaceTags: TypeReplaceTags,
}

// TypeFor returns the audit type recorded for a request action.
func TypeFor(k issues.ActionKind) (Type, bool) {
	t, ok := kindTypes[k]
	return t, ok
}

func (t Type) Valid() bool {
	for _, known := range kindTypes {
		if t == known {
			return true
		}
	}
	return false
}
