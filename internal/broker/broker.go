// Package broker matches commands to waiting agents.
//
// Commands and waits meet at a rendezvous: a command finding a matching
// waiter is handed over immediately, otherwise it queues as PENDING; a wait
// finding a matching pending command returns immediately, otherwise the agent
// blocks until a command arrives, the wait is cancelled, or its deadline
// elapses. All queue and registry state lives behind one mutex; every wait
// ends in exactly one terminal outcome.
package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codegraphhq/codegraph/internal/debug"
	"github.com/codegraphhq/codegraph/internal/eventbus"
	"github.com/codegraphhq/codegraph/internal/idgen"
	"github.com/codegraphhq/codegraph/internal/telemetry"
	"github.com/codegraphhq/codegraph/internal/types"
)

// DefaultWaitTimeout applies when WaitForCommand is called with timeout <= 0.
const DefaultWaitTimeout = 300000 * time.Millisecond

// DefaultHistoryCap bounds the audit history unless overridden.
const DefaultHistoryCap = 1000

type waitResult struct {
	cmd *types.PendingCommand
	err error
}

// waiter is one registered agent wait. done flips exactly once, under the
// broker mutex; whoever flips it owns pushing the single result into ch.
type waiter struct {
	agentID   string
	filters   types.CommandFilters
	startedAt time.Time
	timer     *time.Timer
	done      bool
	ch        chan waitResult // buffered, capacity 1
}

// Broker is the in-process command rendezvous.
type Broker struct {
	mu         sync.Mutex
	pending    []*types.PendingCommand // insertion order; scans sort by priority desc, createdAt asc
	waiters    []*waiter               // registration order
	history    *history
	bus        *eventbus.Bus
	historyCap int
}

// Option configures a Broker.
type Option func(*Broker)

// WithBus publishes broker lifecycle events to the given bus.
func WithBus(bus *eventbus.Bus) Option {
	return func(b *Broker) { b.bus = bus }
}

// WithHistoryCap overrides the bounded history size.
func WithHistoryCap(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.historyCap = n
		}
	}
}

// New creates a Broker.
func New(opts ...Option) *Broker {
	b := &Broker{historyCap: DefaultHistoryCap}
	for _, opt := range opts {
		opt(b)
	}
	b.history = newHistory(b.historyCap)
	return b
}

func (b *Broker) publish(name eventbus.EventName, payload interface{}) {
	if b.bus != nil {
		b.bus.Publish(name, payload)
	}
}

// record appends one history entry. Callers hold the mutex.
func (b *Broker) record(action types.BrokerAction, agentID string, payload types.Metadata) {
	b.history.add(types.BrokerHistoryEntry{
		Timestamp: types.Now(),
		Action:    action,
		AgentID:   agentID,
		Payload:   payload,
	})
}

func commandPayload(cmd *types.PendingCommand) types.Metadata {
	return types.Metadata{
		"command_id": cmd.ID,
		"type":       cmd.Type,
		"priority":   string(cmd.Priority),
	}
}

// WaitForCommand blocks until a command matching filters is available. A
// second wait by the same agent supersedes the first: the old wait fails with
// WAIT_CANCELLED. Timeout <= 0 means DefaultWaitTimeout. The returned command
// is a copy owned by the caller.
func (b *Broker) WaitForCommand(ctx context.Context, agentID string, timeout time.Duration, filters types.CommandFilters) (*types.PendingCommand, error) {
	if agentID == "" {
		return nil, types.NewError(types.ErrValidation, "agent id is required")
	}
	if err := filters.Validate(); err != nil {
		return nil, types.NewError(types.ErrValidation, "%v", err)
	}
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	b.mu.Lock()

	// One active wait per agent: a newer wait wins.
	if old := b.findWaiterLocked(agentID); old != nil {
		b.failWaiterLocked(old, types.NewError(types.ErrWaitCancelled, "superseded by new wait"))
	}

	// A matching pending command resolves the wait synchronously.
	if cmd := b.takePendingLocked(&filters); cmd != nil {
		now := types.Now()
		cmd.Status = types.CommandDelivered
		cmd.DeliveredTo = agentID
		cmd.DeliveredAt = &now
		out := cmd.Clone()
		b.record(types.ActionCommandReceived, agentID, commandPayload(cmd))
		b.mu.Unlock()

		telemetry.CountCommandDelivered(ctx, string(out.Priority))
		telemetry.CountWaitOutcome(ctx, "delivered")
		b.publish(eventbus.EventCommandDelivered, out)
		return out, nil
	}

	w := &waiter{
		agentID:   agentID,
		filters:   filters,
		startedAt: types.Now(),
		ch:        make(chan waitResult, 1),
	}
	w.timer = time.AfterFunc(timeout, func() { b.expireWaiter(w, timeout) })
	b.waiters = append(b.waiters, w)
	b.record(types.ActionWaitStarted, agentID, types.Metadata{
		"timeout_ms": timeout.Milliseconds(),
	})
	b.mu.Unlock()

	b.publish(eventbus.EventAgentWaiting, &types.WaitingAgent{
		AgentID: agentID, Filters: filters, StartedAt: w.startedAt,
	})
	debug.Logf("broker: agent %s waiting (timeout %s)", agentID, timeout)

	select {
	case res := <-w.ch:
		if res.err != nil {
			telemetry.CountWaitOutcome(ctx, string(types.KindOf(res.err)))
			return nil, res.err
		}
		telemetry.CountCommandDelivered(ctx, string(res.cmd.Priority))
		telemetry.CountWaitOutcome(ctx, "delivered")
		return res.cmd, nil
	case <-ctx.Done():
		b.mu.Lock()
		if !w.done {
			b.failWaiterLocked(w, types.NewError(types.ErrWaitCancelled, "context cancelled"))
		}
		b.mu.Unlock()
		// The terminal result is in the channel either way; it may be a
		// delivery that raced the cancellation.
		res := <-w.ch
		if res.err != nil {
			telemetry.CountWaitOutcome(ctx, string(types.KindOf(res.err)))
			return nil, res.err
		}
		telemetry.CountWaitOutcome(ctx, "delivered")
		return res.cmd, nil
	}
}

// SendCommand hands the command to the earliest-registered matching waiter,
// or queues it as PENDING. It never fails on "no one is waiting".
func (b *Broker) SendCommand(ctx context.Context, cmd *types.PendingCommand) (*types.SendResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, types.NewError(types.ErrValidation, "%v", err)
	}
	if cmd.ID == "" {
		cmd.ID = idgen.New(idgen.PrefixCommand, cmd.Type)
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = types.Now()
	}
	if cmd.Priority == "" {
		cmd.Priority = types.PriorityMedium
	}
	cmd.Status = types.CommandPending

	b.mu.Lock()

	// FIFO over the waiter registry: first registered matching waiter wins.
	for _, w := range b.waiters {
		if !w.filters.Matches(cmd) {
			continue
		}
		now := types.Now()
		cmd.Status = types.CommandDelivered
		cmd.DeliveredTo = w.agentID
		cmd.DeliveredAt = &now
		out := cmd.Clone()
		b.resolveWaiterLocked(w, out.Clone())
		payload := commandPayload(cmd)
		payload["delivered_to"] = w.agentID
		b.record(types.ActionCommandSent, w.agentID, payload)
		b.mu.Unlock()

		telemetry.CountCommandDelivered(ctx, string(out.Priority))
		b.publish(eventbus.EventCommandDelivered, out)
		debug.Logf("broker: command %s delivered to %s", out.ID, w.agentID)
		return &types.SendResult{Delivered: true, AgentID: w.agentID, Command: out}, nil
	}

	b.pending = append(b.pending, cmd)
	out := cmd.Clone()
	b.record(types.ActionCommandQueued, "", commandPayload(cmd))
	b.mu.Unlock()

	b.publish(eventbus.EventCommandQueued, out)
	debug.Logf("broker: command %s queued (%s)", out.ID, out.Priority)
	return &types.SendResult{Delivered: false, Command: out}, nil
}

// CancelCommand removes a PENDING command. It reports whether anything was
// cancelled; unknown or already-terminal IDs are a no-op, never an error.
func (b *Broker) CancelCommand(id string) bool {
	b.mu.Lock()

	for i, cmd := range b.pending {
		if cmd.ID != id {
			continue
		}
		b.pending = append(b.pending[:i], b.pending[i+1:]...)
		cmd.Status = types.CommandCancelled
		b.record(types.ActionCommandCancelled, "", commandPayload(cmd))
		b.mu.Unlock()
		debug.Logf("broker: command %s cancelled", id)
		return true
	}
	b.mu.Unlock()
	return false
}

// CancelWait rejects an agent's active wait. It reports whether a wait was
// cancelled; an unknown agent is a no-op.
func (b *Broker) CancelWait(agentID string) bool {
	b.mu.Lock()
	w := b.findWaiterLocked(agentID)
	if w == nil {
		b.mu.Unlock()
		return false
	}
	b.failWaiterLocked(w, types.NewError(types.ErrWaitCancelled, "cancelled by external request"))
	b.mu.Unlock()

	b.publish(eventbus.EventAgentWaitCancelled, agentID)
	return true
}

// GetWaitingAgents returns a point-in-time view of active waits, in
// registration order.
func (b *Broker) GetWaitingAgents() []types.WaitingAgent {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	out := make([]types.WaitingAgent, 0, len(b.waiters))
	for _, w := range b.waiters {
		out = append(out, types.WaitingAgent{
			AgentID:   w.agentID,
			Filters:   w.filters,
			StartedAt: w.startedAt,
			Elapsed:   now.Sub(w.startedAt),
		})
	}
	return out
}

// GetPendingCommands returns the queue in delivery order: priority
// descending, then oldest first.
func (b *Broker) GetPendingCommands() []*types.PendingCommand {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*types.PendingCommand, 0, len(b.pending))
	for _, cmd := range b.pending {
		out = append(out, cmd.Clone())
	}
	sortPending(out)
	return out
}

// GetHistory returns the newest limit history entries, newest first.
// Limit <= 0 means all retained entries.
func (b *Broker) GetHistory(limit int) []types.BrokerHistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.newest(limit)
}

// findWaiterLocked returns the active wait for the agent, if any.
func (b *Broker) findWaiterLocked(agentID string) *waiter {
	for _, w := range b.waiters {
		if w.agentID == agentID {
			return w
		}
	}
	return nil
}

// takePendingLocked removes and returns the first pending command the filters
// accept, scanning in priority-then-FIFO order.
func (b *Broker) takePendingLocked(filters *types.CommandFilters) *types.PendingCommand {
	ordered := make([]*types.PendingCommand, len(b.pending))
	copy(ordered, b.pending)
	sortPending(ordered)

	for _, cmd := range ordered {
		if !filters.Matches(cmd) {
			continue
		}
		for i, p := range b.pending {
			if p == cmd {
				b.pending = append(b.pending[:i], b.pending[i+1:]...)
				break
			}
		}
		return cmd
	}
	return nil
}

// resolveWaiterLocked delivers a command to the wait. Exactly one of
// resolveWaiterLocked/failWaiterLocked runs per waiter.
func (b *Broker) resolveWaiterLocked(w *waiter, cmd *types.PendingCommand) {
	if w.done {
		return
	}
	w.done = true
	w.timer.Stop()
	b.removeWaiterLocked(w)
	w.ch <- waitResult{cmd: cmd}
}

// failWaiterLocked terminates the wait with an error and records WAIT_FAILED.
func (b *Broker) failWaiterLocked(w *waiter, err error) {
	if w.done {
		return
	}
	w.done = true
	if w.timer != nil {
		w.timer.Stop()
	}
	b.removeWaiterLocked(w)
	b.record(types.ActionWaitFailed, w.agentID, types.Metadata{"reason": err.Error()})
	w.ch <- waitResult{err: err}
}

func (b *Broker) removeWaiterLocked(w *waiter) {
	for i, cur := range b.waiters {
		if cur == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// expireWaiter runs from the wait's timer goroutine when the deadline passes.
func (b *Broker) expireWaiter(w *waiter, timeout time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w.done {
		return
	}
	b.failWaiterLocked(w, types.NewError(types.ErrWaitTimeout,
		"no matching command within %s", timeout))
}

// sortPending orders commands by priority descending, then createdAt
// ascending. Stable so equal keys keep insertion order.
func sortPending(cmds []*types.PendingCommand) {
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Priority.Rank() != cmds[j].Priority.Rank() {
			return cmds[i].Priority.Rank() > cmds[j].Priority.Rank()
		}
		return cmds[i].CreatedAt.Before(cmds[j].CreatedAt)
	})
}
