package users

import "context"

// Action is an administrator decision on a pending user.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// Decision is the body of an approval action.
type Decision struct {
	Reason string `json:"reason,omitempty"`
}

// PendingRepo is the source of truth for pending users.
type PendingRepo interface {
	ListPending(ctx context.Context) (*PendingList, error)
	Decide(ctx context.Context, id string, action Action, decision Decision) error
}
