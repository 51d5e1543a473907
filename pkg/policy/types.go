package policy

import (
	"fmt"
	"strings"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Blocking reports whether violations of this severity reject a submission.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Policy is a named Rego module.
type Policy struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Rego        string   `json:"rego"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Input is the document policies are evaluated against.
type Input struct {
	// Operation is "insert", "update" or "delete".
	Operation string `json:"operation"`

	Kind  string `json:"kind"`
	User  string `json:"user"`
	ObjID string `json:"objid,omitempty"`

	// Resource is the stored resource, nil on insert.
	Resource *engine.Resource `json:"resource,omitempty"`

	// Params are the shared data the job will start with.
	Params map[string]any `json:"params,omitempty"`
}

// Violation is one entry of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Decision is the outcome of evaluating every enabled policy.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that could not be evaluated.
	Warnings []string `json:"warnings,omitempty"`
}

// Err returns a JobError listing the blocking violations, or nil when the
// decision allows the submission.
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	msgs := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		if v.Severity.Blocking() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
		}
	}
	return engine.NewJobError("denied by policy", fmt.Errorf("%s", strings.Join(msgs, "; "))).
		WithCode(403)
}
