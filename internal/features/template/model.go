package template

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StateType string

const (
	StateTypeForm      StateType = "FORM"
	StateTypeApproval  StateType = "APPROVAL"
	StateTypeReview    StateType = "REVIEW"
	StateTypeAutomatic StateType = "AUTOMATIC"
)

type ConditionType string

const (
	ConditionAlways           ConditionType = "ALWAYS"
	ConditionAllStepsApproved ConditionType = "ALL_STEPS_APPROVED"
	ConditionAnyStepApproved  ConditionType = "ANY_STEP_APPROVED"
	ConditionFieldValue       ConditionType = "FIELD_VALUE"
	ConditionCustomLogic      ConditionType = "CUSTOM_LOGIC"
)

func (c ConditionType) Valid() bool {
	switch c {
	case ConditionAlways, ConditionAllStepsApproved, ConditionAnyStepApproved, ConditionFieldValue, ConditionCustomLogic:
		return true
	}
	return false
}

// Template is a workflow graph. States and transitions are embedded so a
// template is read and versioned as one document.
type Template struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code        string             `bson:"code" json:"code"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Active      bool               `bson:"active" json:"active"`
	States      []State            `bson:"states" json:"states"`
	Transitions []Transition       `bson:"transitions" json:"transitions"`
	CreatedBy   string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// State is identified by its code within the owning template.
type State struct {
	Code            string    `bson:"code" json:"code"`
	Name            string    `bson:"name" json:"name"`
	Type            StateType `bson:"type" json:"type"`
	FormNumber      *int      `bson:"form_number,omitempty" json:"form_number,omitempty"`
	Order           int       `bson:"order" json:"order"`
	IsInitial       bool      `bson:"is_initial" json:"is_initial"`
	IsTerminal      bool      `bson:"is_terminal" json:"is_terminal"`
	AllowEdit       bool      `bson:"allow_edit" json:"allow_edit"`
	AllowBack       bool      `bson:"allow_back" json:"allow_back"`
	RequireAllSteps bool      `bson:"require_all_steps" json:"require_all_steps"`
	Steps           []Step    `bson:"steps" json:"steps"`
}

type Step struct {
	StepNumber        int      `bson:"step_number" json:"step_number"`
	Name              string   `bson:"name" json:"name"`
	Roles             []string `bson:"roles" json:"roles"`
	RequiresSignature bool     `bson:"requires_signature" json:"requires_signature"`
	RequiresComment   bool     `bson:"requires_comment" json:"requires_comment"`
	ParallelGroup     string   `bson:"parallel_group,omitempty" json:"parallel_group,omitempty"`
	EditableFields    []string `bson:"editable_fields,omitempty" json:"editable_fields,omitempty"`
}

type Transition struct {
	ID              string         `bson:"id" json:"id"`
	Name            string         `bson:"name" json:"name"`
	FromState       string         `bson:"from_state" json:"from_state"`
	ToState         string         `bson:"to_state" json:"to_state"`
	ConditionType   ConditionType  `bson:"condition_type" json:"condition_type"`
	ConditionConfig map[string]any `bson:"condition_config,omitempty" json:"condition_config,omitempty"`
	IsAutomatic     bool           `bson:"is_automatic" json:"is_automatic"`
	Order           int            `bson:"order" json:"order"`
}
