package issues

// State is an issue lifecycle state. Keep values stable; they are persisted
// and returned to API consumers.
type State string

const (
	StateNew          State = "new"
	StateAcknowledged State = "acknowledged"
	StateAssigned     State = "assigned"
	StateInProgress   State = "in_progress"
	StateRejected     State = "rejected"
	StateResolved     State = "resolved"
)

func (s State) Valid() bool {
	switch s {
	case StateNew, StateAcknowledged, StateAssigned, StateInProgress, StateRejected, StateResolved:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is defined from s.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateResolved
}

// ActionKind names one of the nine request actions accepted by the workflow.
type ActionKind string

const (
	ActionAck     ActionKind = "ack"
	ActionAssign  ActionKind = "assign"
	ActionStart   ActionKind = "start"
	ActionReject  ActionKind = "reject"
	ActionResolve ActionKind = "resolve"

	ActionComment     ActionKind = "comment"
	ActionAddTags     ActionKind = "addTags"
	ActionRemoveTags  ActionKind = "removeTags"
	ActionReplaceTags ActionKind = "replaceTags"
)

// ActionKinds lists every recognized action in a stable order.
var ActionKinds = []ActionKind{
	ActionAck,
	ActionAssign,
	ActionStart,
	ActionReject,
	ActionResolve,
	ActionComment,
	ActionAddTags,
	ActionRemoveTags,
	ActionReplaceTags,
}

// ParseActionKind is the only place an arbitrary string becomes an
// ActionKind. Unrecognized names fail with ErrUnknownAction.
func ParseActionKind(name string) (ActionKind, error) {
	k := ActionKind(name)
	if !k.Valid() {
		return "", unknownAction(name)
	}
	return k, nil
}

func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ChangesState reports whether k is a lifecycle transition rather than a
// comment or tag edit.
func (k ActionKind) ChangesState() bool {
	switch k {
	case ActionAck, ActionAssign, ActionStart, ActionReject, ActionResolve:
		return true
	default:
		return false
	}
}
