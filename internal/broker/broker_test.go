package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codegraphhq/codegraph/internal/types"
)

// wait runs WaitForCommand in a goroutine and returns a channel carrying the
// outcome. blocked returns once the wait is registered.
func wait(b *Broker, agentID string, timeout time.Duration, filters types.CommandFilters) <-chan waitResult {
	out := make(chan waitResult, 1)
	go func() {
		cmd, err := b.WaitForCommand(context.Background(), agentID, timeout, filters)
		out <- waitResult{cmd: cmd, err: err}
	}()
	return out
}

// blockUntilWaiting spins until the agent shows up in the waiter registry.
func blockUntilWaiting(t *testing.T, b *Broker, agentID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, w := range b.GetWaitingAgents() {
			if w.AgentID == agentID {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("agent %s never registered", agentID)
}

func recvResult(t *testing.T, ch <-chan waitResult) waitResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not terminate")
	}
	return waitResult{}
}

func TestSendToWaitingAgent(t *testing.T) {
	b := New()

	ch := wait(b, "agent-1", time.Minute, types.CommandFilters{})
	blockUntilWaiting(t, b, "agent-1")

	sent, err := b.SendCommand(context.Background(), &types.PendingCommand{Type: "EXECUTE_TASK"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !sent.Delivered || sent.AgentID != "agent-1" {
		t.Fatalf("send result = %+v", sent)
	}
	if sent.Command.Priority != types.PriorityMedium {
		t.Fatalf("default priority = %s", sent.Command.Priority)
	}

	res := recvResult(t, ch)
	if res.err != nil {
		t.Fatalf("wait: %v", res.err)
	}
	if res.cmd.Status != types.CommandDelivered || res.cmd.DeliveredTo != "agent-1" {
		t.Fatalf("delivered command = %+v", res.cmd)
	}
	if res.cmd.DeliveredAt == nil {
		t.Fatal("delivered command missing delivery time")
	}
	if len(b.GetWaitingAgents()) != 0 {
		t.Fatal("waiter not removed after delivery")
	}
}

func TestWaitPicksUpPendingCommand(t *testing.T) {
	b := New()
	ctx := context.Background()

	sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "EXECUTE_TASK"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Delivered {
		t.Fatal("no one was waiting, command should queue")
	}
	if len(b.GetPendingCommands()) != 1 {
		t.Fatal("command not queued")
	}

	cmd, err := b.WaitForCommand(ctx, "agent-1", time.Minute, types.CommandFilters{})
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if cmd.ID != sent.Command.ID || cmd.Status != types.CommandDelivered {
		t.Fatalf("command = %+v", cmd)
	}
	if len(b.GetPendingCommands()) != 0 {
		t.Fatal("delivered command still pending")
	}
}

func TestFilterRouting(t *testing.T) {
	b := New()
	ctx := context.Background()

	chDocs := wait(b, "docs-agent", time.Minute, types.CommandFilters{TaskTypes: []string{"DOCS"}})
	blockUntilWaiting(t, b, "docs-agent")
	chBuild := wait(b, "build-agent", time.Minute, types.CommandFilters{TaskTypes: []string{"BUILD"}})
	blockUntilWaiting(t, b, "build-agent")

	sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "EXECUTE_TASK", TaskType: "BUILD"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.AgentID != "build-agent" {
		t.Fatalf("routed to %s, want build-agent", sent.AgentID)
	}

	res := recvResult(t, chBuild)
	if res.err != nil || res.cmd.TaskType != "BUILD" {
		t.Fatalf("build agent got %+v, %v", res.cmd, res.err)
	}

	// The docs agent is still waiting; a non-matching command queues.
	sent, err = b.SendCommand(ctx, &types.PendingCommand{Type: "EXECUTE_TASK", TaskType: "DEPLOY"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Delivered {
		t.Fatal("DEPLOY command should not match the docs filter")
	}

	b.CancelWait("docs-agent")
	if res := recvResult(t, chDocs); !types.IsKind(res.err, types.ErrWaitCancelled) {
		t.Fatalf("docs wait: %v, want WAIT_CANCELLED", res.err)
	}
}

func TestMinPriorityAndComponentFilters(t *testing.T) {
	b := New()
	ctx := context.Background()

	ch := wait(b, "agent-1", time.Minute, types.CommandFilters{
		MinPriority:  types.PriorityHigh,
		ComponentIDs: []string{"cmp-a"},
	})
	blockUntilWaiting(t, b, "agent-1")

	// Too low a priority, then the wrong component: both queue.
	for _, cmd := range []*types.PendingCommand{
		{Type: "X", Priority: types.PriorityMedium, TargetComponentIDs: []string{"cmp-a"}},
		{Type: "X", Priority: types.PriorityUrgent, TargetComponentIDs: []string{"cmp-b"}},
	} {
		sent, err := b.SendCommand(ctx, cmd)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if sent.Delivered {
			t.Fatalf("command %+v should not match", cmd)
		}
	}

	sent, err := b.SendCommand(ctx, &types.PendingCommand{
		Type: "X", Priority: types.PriorityHigh, TargetComponentIDs: []string{"cmp-a", "cmp-c"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !sent.Delivered {
		t.Fatal("matching command not delivered")
	}
	if res := recvResult(t, ch); res.err != nil {
		t.Fatalf("wait: %v", res.err)
	}
}

func TestPendingDeliveryOrder(t *testing.T) {
	b := New()
	ctx := context.Background()

	// Queue LOW, URGENT, MEDIUM, then a second URGENT.
	ids := make(map[string]string)
	for _, p := range []types.Priority{types.PriorityLow, types.PriorityUrgent, types.PriorityMedium, types.PriorityUrgent} {
		sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X", Priority: p})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		key := string(p)
		if _, dup := ids[key]; dup {
			key += "-2"
		}
		ids[key] = sent.Command.ID
	}

	queue := b.GetPendingCommands()
	if len(queue) != 4 {
		t.Fatalf("queue = %d commands", len(queue))
	}
	wantOrder := []string{ids["URGENT"], ids["URGENT-2"], ids["MEDIUM"], ids["LOW"]}
	for i, want := range wantOrder {
		if queue[i].ID != want {
			t.Fatalf("queue[%d] = %s, want %s", i, queue[i].ID, want)
		}
	}

	// Waits drain in the same order.
	for _, want := range wantOrder {
		cmd, err := b.WaitForCommand(ctx, "agent-1", time.Minute, types.CommandFilters{})
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
		if cmd.ID != want {
			t.Fatalf("drained %s, want %s", cmd.ID, want)
		}
	}
}

func TestWaitTimeout(t *testing.T) {
	b := New()

	start := time.Now()
	_, err := b.WaitForCommand(context.Background(), "agent-1", 30*time.Millisecond, types.CommandFilters{})
	if !types.IsKind(err, types.ErrWaitTimeout) {
		t.Fatalf("wait: %v, want WAIT_TIMEOUT", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond || elapsed > 2*time.Second {
		t.Fatalf("timeout fired after %s", elapsed)
	}
	if len(b.GetWaitingAgents()) != 0 {
		t.Fatal("expired waiter not removed")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan waitResult, 1)
	go func() {
		cmd, err := b.WaitForCommand(ctx, "agent-1", time.Minute, types.CommandFilters{})
		out <- waitResult{cmd: cmd, err: err}
	}()
	blockUntilWaiting(t, b, "agent-1")
	cancel()

	res := recvResult(t, out)
	if !types.IsKind(res.err, types.ErrWaitCancelled) {
		t.Fatalf("cancelled wait: %v, want WAIT_CANCELLED", res.err)
	}
	if len(b.GetWaitingAgents()) != 0 {
		t.Fatal("cancelled waiter not removed")
	}
}

func TestSecondWaitSupersedesFirst(t *testing.T) {
	b := New()

	first := wait(b, "agent-1", time.Minute, types.CommandFilters{TaskTypes: []string{"OLD"}})
	blockUntilWaiting(t, b, "agent-1")
	second := wait(b, "agent-1", time.Minute, types.CommandFilters{})

	// The first wait fails immediately with WAIT_CANCELLED.
	res := recvResult(t, first)
	if !types.IsKind(res.err, types.ErrWaitCancelled) {
		t.Fatalf("superseded wait: %v, want WAIT_CANCELLED", res.err)
	}

	blockUntilWaiting(t, b, "agent-1")
	agents := b.GetWaitingAgents()
	if len(agents) != 1 || len(agents[0].Filters.TaskTypes) != 0 {
		t.Fatalf("registry = %+v, want only the new wait", agents)
	}

	if _, err := b.SendCommand(context.Background(), &types.PendingCommand{Type: "X"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if res := recvResult(t, second); res.err != nil {
		t.Fatalf("second wait: %v", res.err)
	}
}

func TestCancelWaitAndCommandIdempotent(t *testing.T) {
	b := New()
	ctx := context.Background()

	if b.CancelWait("nobody") {
		t.Fatal("cancelling an unknown wait should be a no-op")
	}

	ch := wait(b, "agent-1", time.Minute, types.CommandFilters{})
	blockUntilWaiting(t, b, "agent-1")
	if !b.CancelWait("agent-1") {
		t.Fatal("cancel did not find the wait")
	}
	if b.CancelWait("agent-1") {
		t.Fatal("second cancel should be a no-op")
	}
	if res := recvResult(t, ch); !types.IsKind(res.err, types.ErrWaitCancelled) {
		t.Fatalf("wait: %v, want WAIT_CANCELLED", res.err)
	}

	sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !b.CancelCommand(sent.Command.ID) {
		t.Fatal("cancel did not find the command")
	}
	if b.CancelCommand(sent.Command.ID) {
		t.Fatal("second cancel should be a no-op")
	}
	if len(b.GetPendingCommands()) != 0 {
		t.Fatal("cancelled command still pending")
	}
}

func TestValidation(t *testing.T) {
	b := New()
	ctx := context.Background()

	if _, err := b.WaitForCommand(ctx, "", time.Minute, types.CommandFilters{}); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("empty agent id: %v, want VALIDATION", err)
	}
	if _, err := b.WaitForCommand(ctx, "a", time.Minute, types.CommandFilters{MinPriority: "EXTREME"}); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("bad min_priority: %v, want VALIDATION", err)
	}
	if _, err := b.SendCommand(ctx, &types.PendingCommand{}); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("empty type: %v, want VALIDATION", err)
	}
	if _, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X", Priority: "EXTREME"}); !types.IsKind(err, types.ErrValidation) {
		t.Fatalf("bad priority: %v, want VALIDATION", err)
	}
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	b := New(WithHistoryCap(3))
	ctx := context.Background()

	var lastID string
	for i := 0; i < 5; i++ {
		sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X"})
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		lastID = sent.Command.ID
	}

	entries := b.GetHistory(0)
	if len(entries) != 3 {
		t.Fatalf("history = %d entries, want cap 3", len(entries))
	}
	if entries[0].Action != types.ActionCommandQueued || entries[0].Payload["command_id"] != lastID {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	if !entries[0].Timestamp.After(entries[2].Timestamp) {
		t.Fatal("history not newest first")
	}

	limited := b.GetHistory(1)
	if len(limited) != 1 || limited[0].Payload["command_id"] != lastID {
		t.Fatalf("limited history = %+v", limited)
	}
}

func TestConcurrentSendersAndWaiters(t *testing.T) {
	b := New()
	ctx := context.Background()
	const n = 20

	results := make(chan waitResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		agent := string(rune('a'+i%26)) + "-" + string(rune('0'+i/26))
		go func(id string) {
			defer wg.Done()
			cmd, err := b.WaitForCommand(ctx, id, 5*time.Second, types.CommandFilters{})
			results <- waitResult{cmd: cmd, err: err}
		}(agent)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(b.GetWaitingAgents()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d waiters registered", len(b.GetWaitingAgents()), n)
		}
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < n; i++ {
		go func() {
			_, _ = b.SendCommand(ctx, &types.PendingCommand{Type: "X"})
		}()
	}

	wg.Wait()
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("wait: %v", res.err)
		}
		if seen[res.cmd.ID] {
			t.Fatalf("command %s delivered twice", res.cmd.ID)
		}
		seen[res.cmd.ID] = true
	}
	if len(b.GetPendingCommands()) != 0 || len(b.GetWaitingAgents()) != 0 {
		t.Fatal("broker not drained")
	}
}
