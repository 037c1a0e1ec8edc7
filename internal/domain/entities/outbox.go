package entities

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind names the collections that sync with the server.
type EntityKind string

const (
	KindTask    EntityKind = "task"
	KindMessage EntityKind = "message"
)

// OutboxAction is the remote verb a pending operation needs.
type OutboxAction string

const (
	ActionCreate OutboxAction = "create"
	ActionUpdate OutboxAction = "update"
	ActionDelete OutboxAction = "delete"
)

// OutboxOp is a write that has not been acknowledged by the server yet
type OutboxOp struct {
	ID        uuid.UUID    `json:"id"`
	OwnerNIM  string       `json:"owner_nim"`
	Kind      EntityKind   `json:"kind"`
	Action    OutboxAction `json:"action"`
	Target    ID           `json:"target"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewOutboxOp builds a pending operation for target.
func NewOutboxOp(owner string, kind EntityKind, action OutboxAction, target ID, now time.Time) OutboxOp {
	return OutboxOp{
		ID:        uuid.New(),
		OwnerNIM:  owner,
		Kind:      kind,
		Action:    action,
		Target:    target,
		CreatedAt: now,
	}
}

// Touches reports whether op targets the same entity.
func (op OutboxOp) Touches(kind EntityKind, target ID) bool {
	return op.Kind == kind && op.Target == target
}

// Fail records an unsuccessful attempt.
func (op *OutboxOp) Fail(err error) {
	op.Attempts++
	if err != nil {
		op.LastError = err.Error()
	}
}
