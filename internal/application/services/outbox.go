package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/infrastructure/metrics"
	"github.com/siakad/core/internal/ports"
)

// Outbox is the durable queue of writes the server has not acknowledged.
// Ops of every user share one persisted list; each op carries its owner.
type Outbox struct {
	store   *Store
	clock   ports.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	ops      []entities.OutboxOp
	inFlight map[uuid.UUID]bool
}

// NewOutbox creates an outbox and loads the persisted queue
func NewOutbox(ctx context.Context, store *Store, clock ports.Clock, log *logger.Logger, m *metrics.Metrics) *Outbox {
	o := &Outbox{
		store:    store,
		clock:    clock,
		logger:   log.WithComponent("outbox"),
		metrics:  m,
		inFlight: make(map[uuid.UUID]bool),
	}

	var ops []entities.OutboxOp
	if store.Load(ctx, entities.KeyOutbox, &ops) {
		o.ops = ops
	}
	m.OutboxPending(len(o.ops))

	return o
}

// Enqueue records a pending write, coalescing it with what is already queued:
// an update is absorbed by a queued create or update that has not started,
// a delete cancels a queued create outright and supersedes queued updates,
// and an update or delete of a never-queued local record is handled as a create
// or dropped respectively, since the server has never seen it.
func (o *Outbox) Enqueue(ctx context.Context, owner string, kind entities.EntityKind, action entities.OutboxAction, target entities.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pendingCreate := o.find(kind, target, entities.ActionCreate)

	switch action {
	case entities.ActionCreate:
		if pendingCreate >= 0 {
			return
		}

	case entities.ActionUpdate:
		if pendingCreate >= 0 && !o.inFlight[o.ops[pendingCreate].ID] {
			return
		}
		if i := o.find(kind, target, entities.ActionUpdate); i >= 0 && !o.inFlight[o.ops[i].ID] {
			return
		}
		if pendingCreate < 0 && !target.IsRemote() {
			action = entities.ActionCreate
		}

	case entities.ActionDelete:
		if pendingCreate >= 0 && !o.inFlight[o.ops[pendingCreate].ID] {
			o.removeWhere(func(op entities.OutboxOp) bool { return op.Touches(kind, target) })
			o.persist(ctx)
			return
		}
		o.removeWhere(func(op entities.OutboxOp) bool {
			return op.Touches(kind, target) && op.Action == entities.ActionUpdate && !o.inFlight[op.ID]
		})
		if pendingCreate < 0 && !target.IsRemote() {
			o.persist(ctx)
			return
		}
	}

	o.ops = append(o.ops, entities.NewOutboxOp(owner, kind, action, target, o.clock.Now()))
	o.persist(ctx)
}

// Pending returns a copy of the queued ops of owner in FIFO order.
func (o *Outbox) Pending(owner string) []entities.OutboxOp {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]entities.OutboxOp, 0, len(o.ops))
	for _, op := range o.ops {
		if op.OwnerNIM == owner {
			out = append(out, op)
		}
	}
	return out
}

// Len is the number of queued ops across all owners.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.ops)
}

// begin marks op as being pushed so later writes are not folded into it and
// returns its current value. ok is false when the op is no longer queued.
func (o *Outbox) begin(id uuid.UUID) (entities.OutboxOp, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, op := range o.ops {
		if op.ID == id {
			o.inFlight[id] = true
			return op, true
		}
	}
	return entities.OutboxOp{}, false
}

// ack removes an op after the server confirmed it.
func (o *Outbox) ack(ctx context.Context, id uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inFlight, id)
	o.removeWhere(func(op entities.OutboxOp) bool { return op.ID == id })
	o.persist(ctx)
}

// fail keeps an op for the next drain and records why it did not go through.
func (o *Outbox) fail(ctx context.Context, id uuid.UUID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inFlight, id)
	for i := range o.ops {
		if o.ops[i].ID == id {
			o.ops[i].Fail(err)
			break
		}
	}
	o.persist(ctx)
}

// rebind points queued ops at the server id a create was acknowledged with.
func (o *Outbox) rebind(ctx context.Context, kind entities.EntityKind, from, to entities.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	changed := false
	for i := range o.ops {
		if o.ops[i].Touches(kind, from) {
			o.ops[i].Target = to
			changed = true
		}
	}
	if changed {
		o.persist(ctx)
	}
}

func (o *Outbox) find(kind entities.EntityKind, target entities.ID, action entities.OutboxAction) int {
	for i, op := range o.ops {
		if op.Touches(kind, target) && op.Action == action {
			return i
		}
	}
	return -1
}

func (o *Outbox) removeWhere(drop func(entities.OutboxOp) bool) {
	kept := o.ops[:0]
	for _, op := range o.ops {
		if !drop(op) {
			kept = append(kept, op)
		}
	}
	o.ops = kept
}

func (o *Outbox) persist(ctx context.Context) {
	o.metrics.OutboxPending(len(o.ops))
	if !o.store.Save(ctx, entities.KeyOutbox, o.ops) {
		o.logger.Warnw("Outbox not persisted", "pending", len(o.ops))
	}
}
