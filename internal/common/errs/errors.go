// Package errs holds the error taxonomy shared by the workflow and
// permission services. Controllers translate these into HTTP responses.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflictIgnored marks a duplicate approval write that lost a race.
// It is recovered inside the service layer and never returned to callers.
var ErrConflictIgnored = errors.New("conflict ignored")

type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Validation(code, format string, args ...any) error {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ForbiddenError always carries the roles that would have satisfied the
// requirement so callers can render "ask one of: R1, R2".
type ForbiddenError struct {
	Reason      string
	NeededRoles []string
	Fields      []string
}

func (e *ForbiddenError) Error() string {
	msg := "forbidden"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.NeededRoles) > 0 {
		msg += " (needs one of " + strings.Join(e.NeededRoles, ", ") + ")"
	}
	return msg
}

func Forbidden(reason string, neededRoles ...string) error {
	return &ForbiddenError{Reason: reason, NeededRoles: neededRoles}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConfigError reports a template that cannot be executed, such as one
// without exactly one initial state.
type ConfigError struct {
	Template string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("template %s misconfigured: %s", e.Template, e.Message)
}

type ConditionNotMetError struct {
	TransitionID string
}

func (e *ConditionNotMetError) Error() string {
	return fmt.Sprintf("condition of transition %s not met", e.TransitionID)
}

// InvariantViolation is raised when the approval ledger and the case
// projection disagree. It is logged and repaired, never shown to users.
type InvariantViolation struct {
	CaseID string
	State  string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on case %s state %s: %s", e.CaseID, e.State, e.Detail)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsForbidden(err error) bool {
	var f *ForbiddenError
	return errors.As(err, &f)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
