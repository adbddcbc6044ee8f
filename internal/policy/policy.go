package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"citizen-engagement/internal/issues"
	"citizen-engagement/internal/rbac"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Rule is the authorization metadata attached to one action.
type Rule struct {
	// StaffOnly marks a staff-gated action. Open actions may be invoked by any
	// authenticated citizen or staff actor.
	StaffOnly bool `yaml:"staff_only" toml:"staff_only"`
	// RequiresAssignee distinguishes start/reject/resolve (act on an already
	// assigned issue) from ack/assign.
	RequiresAssignee bool `yaml:"requires_assignee" toml:"requires_assignee"`
}

// Decision is the outcome of evaluating one request.
type Decision struct {
	Allow  bool
	Reason string
}

const (
	ReasonOpenAction      = "open action"
	ReasonStaffRequired   = "staff role required"
	ReasonStaffOnAssigned = "staff acting on assignee-gated action"
	ReasonStaffAction     = "staff action"
	ReasonUnknownAction   = "no rule for action"
)

// Policy maps every recognized action to a Rule. It is immutable after
// construction; build one with Default, New or FromYAML.
type Policy struct {
	staffRole string
	rules     map[issues.ActionKind]Rule
}

// Default returns the built-in table.
func Default() *Policy {
	p, err := New(rbac.RoleStaff, map[issues.ActionKind]Rule{
		issues.ActionAck:         {StaffOnly: true},
		issues.ActionAssign:      {StaffOnly: true},
		issues.ActionStart:       {StaffOnly: true, RequiresAssignee: true},
		issues.ActionReject:      {StaffOnly: true, RequiresAssignee: true},
		issues.ActionResolve:     {StaffOnly: true, RequiresAssignee: true},
		issues.ActionComment:     {},
		issues.ActionAddTags:     {},
		issues.ActionRemoveTags:  {},
		issues.ActionReplaceTags: {},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// New validates that rules covers every recognized action, so evaluation is
// total, and returns a Policy holding a private copy of rules.
func New(staffRole string, rules map[issues.ActionKind]Rule) (*Policy, error) {
	if staffRole == "" {
		return nil, fmt.Errorf("policy: staff role is required")
	}
	for k := range rules {
		if !k.Valid() {
			return nil, fmt.Errorf("policy: rule for unknown action %q", k)
		}
	}
	cp := make(map[issues.ActionKind]Rule, len(rules))
	for _, k := range issues.ActionKinds {
		r, ok := rules[k]
		if !ok {
			return nil, fmt.Errorf("policy: missing rule for action %q", k)
		}
		if r.RequiresAssignee && !r.StaffOnly {
			return nil, fmt.Errorf("policy: action %q requires assignee but is not staff-only", k)
		}
		cp[k] = r
	}
	return &Policy{staffRole: staffRole, rules: cp}, nil
}

type fileFormat struct {
	StaffRole string          `yaml:"staff_role" toml:"staff_role"`
	Actions   map[string]Rule `yaml:"actions" toml:"actions"`
}

// FromYAML parses and validates a policy table.
func FromYAML(data []byte) (*Policy, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid policy yaml: %w", err)
	}
	return f.build()
}

// FromTOML is FromYAML for TOML documents.
func FromTOML(data []byte) (*Policy, error) {
	var f fileFormat
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid policy toml: %w", err)
	}
	return f.build()
}

func (f fileFormat) build() (*Policy, error) {
	if f.StaffRole == "" {
		f.StaffRole = rbac.RoleStaff
	}
	rules := make(map[issues.ActionKind]Rule, len(f.Actions))
	for name, r := range f.Actions {
		k, err := issues.ParseActionKind(name)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		rules[k] = r
	}
	return New(f.StaffRole, rules)
}

// FromFile reads a policy table from path. Files ending in .toml are parsed
// as TOML, everything else as YAML.
func FromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

// Rule returns the rule for k.
func (p *Policy) Rule(k issues.ActionKind) (Rule, bool) {
	r, ok := p.rules[k]
	return r, ok
}

// Evaluate decides whether an actor holding roles may invoke k.
//
// Staff-gated actions without assignee linkage (ack, assign) are allowed for
// staff with ReasonStaffAction.
func (p *Policy) Evaluate(k issues.ActionKind, roles []string) Decision {
	r, ok := p.rules[k]
	if !ok {
		return Decision{Allow: false, Reason: ReasonUnknownAction}
	}
	if !r.StaffOnly {
		return Decision{Allow: true, Reason: ReasonOpenAction}
	}
	if !rbac.HasRole(roles, p.staffRole) {
		return Decision{Allow: false, Reason: ReasonStaffRequired}
	}
	if r.RequiresAssignee {
		return Decision{Allow: true, Reason: ReasonStaffOnAssigned}
	}
	return Decision{Allow: true, Reason: ReasonStaffAction}
}

// Authorize is Evaluate with denials returned as ErrForbidden.
func (p *Policy) Authorize(k issues.ActionKind, roles []string) error {
	d := p.Evaluate(k, roles)
	if !d.Allow {
		return fmt.Errorf("%w: %s: %s", issues.ErrForbidden, k, d.Reason)
	}
	return nil
}
