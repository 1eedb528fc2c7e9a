package audit

import (
	"time"

	common_models "go-workflow/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is one entry of a case's activity log.
type Action struct {
	ID            primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	CaseID        primitive.ObjectID       `bson:"case_id" json:"case_id"`
	State         string                   `bson:"state" json:"state"`
	Step          int                      `bson:"step" json:"step"`
	ActionType    common_models.ActionType `bson:"action_type" json:"action_type"`
	Performer     string                   `bson:"performer" json:"performer"`
	PerformerName string                   `bson:"-" json:"performer_name,omitempty"`
	RoleCode      string                   `bson:"role_code,omitempty" json:"role_code,omitempty"`
	TransitionID  string                   `bson:"transition_id,omitempty" json:"transition_id,omitempty"`
	FromState     string                   `bson:"from_state,omitempty" json:"from_state,omitempty"`
	ToState       string                   `bson:"to_state,omitempty" json:"to_state,omitempty"`
	Note          string                   `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt     time.Time                `bson:"created_at" json:"created_at"`
}

// Filter narrows a listing. Zero values are ignored.
type Filter struct {
	CaseID     primitive.ObjectID
	ActionType common_models.ActionType
	Performer  string
}
