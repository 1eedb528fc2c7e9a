package permission

import (
	"time"

	"go-workflow/internal/common/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind string

const (
	KindView       Kind = "VIEW"
	KindEdit       Kind = "EDIT"
	KindApprove    Kind = "APPROVE"
	KindTransition Kind = "TRANSITION"
	KindDelete     Kind = "DELETE"
)

func (k Kind) Valid() bool {
	switch k {
	case KindView, KindEdit, KindApprove, KindTransition, KindDelete:
		return true
	}
	return false
}

type ScopeType string

const (
	ScopeState     ScopeType = "STATE"
	ScopeStateStep ScopeType = "STATE_STEP"
	ScopeForm      ScopeType = "FORM"
	ScopeFormField ScopeType = "FORM_FIELD"
)

// Grant gives a role or a single user one kind of access to a scope.
// Exactly one of RoleCode and UserID is set.
type Grant struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RoleCode      string             `bson:"role_code,omitempty" json:"role_code,omitempty"`
	UserID        string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Scope         ScopeType          `bson:"scope" json:"scope"`
	Kind          Kind               `bson:"kind" json:"kind"`
	State         string             `bson:"state,omitempty" json:"state,omitempty"`
	StepNumber    *int               `bson:"step_number,omitempty" json:"step_number,omitempty"`
	FormNumber    *int               `bson:"form_number,omitempty" json:"form_number,omitempty"`
	FieldPath     string             `bson:"field_path,omitempty" json:"field_path,omitempty"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	RestrictToOwn bool               `bson:"restrict_to_own" json:"restrict_to_own"`
	CreatedBy     string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// Validate checks the subject and the fields required by the scope.
// STATE_STEP grants are approval grants and default to APPROVE.
func (g *Grant) Validate() error {
	if (g.RoleCode == "") == (g.UserID == "") {
		return errs.Validation("invalid_grant", "exactly one of role_code and user_id must be set")
	}
	if g.Scope == ScopeStateStep && g.Kind == "" {
		g.Kind = KindApprove
	}
	if !g.Kind.Valid() {
		return errs.Validation("invalid_grant", "unknown kind %q", g.Kind)
	}

	switch g.Scope {
	case ScopeState:
		if g.State == "" {
			return errs.Validation("invalid_grant", "STATE grants need a state")
		}
	case ScopeStateStep:
		if g.State == "" || g.StepNumber == nil || *g.StepNumber < 0 {
			return errs.Validation("invalid_grant", "STATE_STEP grants need a state and a step_number")
		}
	case ScopeForm:
		if g.FormNumber == nil {
			return errs.Validation("invalid_grant", "FORM grants need a form_number")
		}
	case ScopeFormField:
		if g.FormNumber == nil || g.FieldPath == "" {
			return errs.Validation("invalid_grant", "FORM_FIELD grants need a form_number and a field_path")
		}
	default:
		return errs.Validation("invalid_grant", "unknown scope %q", g.Scope)
	}
	return nil
}

// Override grants one user extra access on one case, optionally until
// ExpiresAt.
type Override struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CaseID     primitive.ObjectID `bson:"case_id" json:"case_id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Kind       Kind               `bson:"kind" json:"kind"`
	FormNumber *int               `bson:"form_number,omitempty" json:"form_number,omitempty"`
	FieldPath  string             `bson:"field_path,omitempty" json:"field_path,omitempty"`
	ExpiresAt  *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	GrantedBy  string             `bson:"granted_by" json:"granted_by"`
	Reason     string             `bson:"reason,omitempty" json:"reason,omitempty"`
	IsActive   bool               `bson:"is_active" json:"is_active"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

func (o *Override) Validate() error {
	if o.CaseID.IsZero() || o.UserID == "" {
		return errs.Validation("invalid_override", "case_id and user_id are required")
	}
	if !o.Kind.Valid() {
		return errs.Validation("invalid_override", "unknown kind %q", o.Kind)
	}
	if o.FieldPath != "" && o.FormNumber == nil {
		return errs.Validation("invalid_override", "field_path needs a form_number")
	}
	return nil
}

// Live reports whether the override is active and not expired at now.
func (o Override) Live(now time.Time) bool {
	return o.IsActive && (o.ExpiresAt == nil || now.Before(*o.ExpiresAt))
}
