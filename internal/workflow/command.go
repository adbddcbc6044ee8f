package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"citizen-engagement/internal/issues"
)

// Command is one requested action with its decoded payload. Only the fields
// relevant to Kind are read.
type Command struct {
	Kind issues.ActionKind

	// Comment is the optional free text attached to a state transition.
	Comment string
	// AssigneeID is the user an assign action hands the issue to.
	AssigneeID string
	// Text is the body of a comment action.
	Text string
	// Tags is the operand of the tag actions.
	Tags []string
}

type payload struct {
	AssigneeID string   `json:"assigneeId"`
	Comment    string   `json:"comment"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
}

// ParseCommand is the deserialization boundary: it turns an action name and
// its raw JSON payload into a validated Command. Unknown names fail with
// issues.ErrUnknownAction, malformed payloads with issues.ErrInvalidPayload.
func ParseCommand(name string, raw json.RawMessage) (Command, error) {
	kind, err := issues.ParseActionKind(name)
	if err != nil {
		return Command{}, err
	}

	var p payload
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return Command{}, fmt.Errorf("%w: %v", issues.ErrInvalidPayload, err)
		}
	}

	cmd := Command{
		Kind:       kind,
		Comment:    p.Comment,
		AssigneeID: p.AssigneeID,
		Text:       p.Text,
		Tags:       p.Tags,
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate checks the payload fields Kind requires.
func (c Command) Validate() error {
	if _, err := issues.ParseActionKind(string(c.Kind)); err != nil {
		return err
	}
	switch c.Kind {
	case issues.ActionAssign:
		if strings.TrimSpace(c.AssigneeID) == "" {
			return fmt.Errorf("%w: assign requires assigneeId", issues.ErrInvalidPayload)
		}
	case issues.ActionComment:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: comment requires text", issues.ErrInvalidPayload)
		}
	case issues.ActionAddTags, issues.ActionRemoveTags, issues.ActionReplaceTags:
		if c.Tags == nil {
			return fmt.Errorf("%w: %s requires tags", issues.ErrInvalidPayload, c.Kind)
		}
		for _, t := range c.Tags {
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("%w: empty tag", issues.ErrInvalidPayload)
			}
		}
	}
	return nil
}
