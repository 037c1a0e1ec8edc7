package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad/core/internal/adapters/repository"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
)

func newTestOutbox(t *testing.T) (*Outbox, *Store) {
	t.Helper()
	store := NewStore(repository.NewMemoryStore(), logger.NewNop())
	return NewOutbox(context.Background(), store, &fixedClock{now: monday9}, logger.NewNop(), nil), store
}

func actions(ops []entities.OutboxOp) []entities.OutboxAction {
	out := make([]entities.OutboxAction, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Action)
	}
	return out
}

func TestOutboxCoalescing(t *testing.T) {
	local := entities.LocalID("1712345678901")
	remote := entities.RemoteID("7")

	type step struct {
		action entities.OutboxAction
		target entities.ID
	}

	tests := []struct {
		name  string
		steps []step
		want  []entities.OutboxAction
	}{
		{"create once", []step{{entities.ActionCreate, local}, {entities.ActionCreate, local}}, []entities.OutboxAction{entities.ActionCreate}},
		{"update folds into create", []step{{entities.ActionCreate, local}, {entities.ActionUpdate, local}}, []entities.OutboxAction{entities.ActionCreate}},
		{"delete cancels create", []step{{entities.ActionCreate, local}, {entities.ActionUpdate, local}, {entities.ActionDelete, local}}, []entities.OutboxAction{}},
		{"updates coalesce", []step{{entities.ActionUpdate, remote}, {entities.ActionUpdate, remote}}, []entities.OutboxAction{entities.ActionUpdate}},
		{"delete supersedes update", []step{{entities.ActionUpdate, remote}, {entities.ActionDelete, remote}}, []entities.OutboxAction{entities.ActionDelete}},
		{"update of unsent local becomes create", []step{{entities.ActionUpdate, local}}, []entities.OutboxAction{entities.ActionCreate}},
		{"delete of unsent local is dropped", []step{{entities.ActionDelete, local}}, []entities.OutboxAction{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTestOutbox(t)
			for _, s := range tt.steps {
				o.Enqueue(context.Background(), "2101", entities.KindTask, s.action, s.target)
			}
			assert.Equal(t, tt.want, actions(o.Pending("2101")))
		})
	}
}

func TestOutboxKeepsUpdateBehindInFlightCreate(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOutbox(t)
	local := entities.LocalID("1712345678901")

	o.Enqueue(ctx, "2101", entities.KindTask, entities.ActionCreate, local)
	create := o.Pending("2101")[0]
	_, ok := o.begin(create.ID)
	require.True(t, ok)

	o.Enqueue(ctx, "2101", entities.KindTask, entities.ActionUpdate, local)
	assert.Equal(t, []entities.OutboxAction{entities.ActionCreate, entities.ActionUpdate}, actions(o.Pending("2101")))

	o.ack(ctx, create.ID)
	assert.Equal(t, []entities.OutboxAction{entities.ActionUpdate}, actions(o.Pending("2101")))
}

func TestOutboxPersistsAndScopesByOwner(t *testing.T) {
	ctx := context.Background()
	o, store := newTestOutbox(t)

	o.Enqueue(ctx, "2101", entities.KindTask, entities.ActionUpdate, entities.RemoteID("1"))
	o.Enqueue(ctx, "2102", entities.KindMessage, entities.ActionUpdate, entities.RemoteID("2"))

	assert.Len(t, o.Pending("2101"), 1)
	assert.Len(t, o.Pending("2102"), 1)
	assert.Empty(t, o.Pending("2103"))

	reloaded := NewOutbox(ctx, store, &fixedClock{now: monday9}, logger.NewNop(), nil)
	assert.Equal(t, 2, reloaded.Len())

	op := reloaded.Pending("2101")[0]
	reloaded.fail(ctx, op.ID, assert.AnError)
	again := NewOutbox(ctx, store, &fixedClock{now: monday9}, logger.NewNop(), nil)
	failed := again.Pending("2101")[0]
	assert.Equal(t, 1, failed.Attempts)
	assert.NotEmpty(t, failed.LastError)
}

func TestOutboxRebind(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOutbox(t)
	local := entities.LocalID("1712345678901")

	o.Enqueue(ctx, "2101", entities.KindTask, entities.ActionCreate, local)
	o.rebind(ctx, entities.KindTask, local, entities.RemoteID("55"))

	assert.Equal(t, entities.RemoteID("55"), o.Pending("2101")[0].Target)
}
