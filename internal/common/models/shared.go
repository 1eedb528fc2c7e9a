package models

import (
	"slices"
	"time"
)

type ContextKey string

const (
	ActorKey     ContextKey = "actor"
	RequestIDKey ContextKey = "request_id"
)

// Actor is the authenticated caller as resolved against the role directory.
type Actor struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles"`
	IsSuperuser bool     `json:"is_superuser"`
}

func (a Actor) HasRole(code string) bool {
	return slices.Contains(a.Roles, code)
}

// SharedRoles returns the roles held by the actor that appear in candidates,
// in candidate order.
func (a Actor) SharedRoles(candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if a.HasRole(c) && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

type ActionType string

const (
	ActionApprove    ActionType = "APPROVE"
	ActionUpload     ActionType = "UPLOAD"
	ActionComment    ActionType = "COMMENT"
	ActionTransition ActionType = "TRANSITION"
)

// UserActionTypes are the action kinds a caller may submit directly.
var UserActionTypes = []ActionType{ActionApprove, ActionUpload, ActionComment}

func (t ActionType) Valid() bool {
	return slices.Contains(UserActionTypes, t)
}

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

// SystemLog is a persisted log line written by the logger's DB sink.
type SystemLog struct {
	Level     string    `bson:"level" json:"level"`
	Message   string    `bson:"message" json:"message"`
	Caller    string    `bson:"caller,omitempty" json:"caller,omitempty"`
	RequestID string    `bson:"request_id,omitempty" json:"request_id,omitempty"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CaseID    string    `bson:"case_id,omitempty" json:"case_id,omitempty"`
	AppID     string    `bson:"app_id" json:"app_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
