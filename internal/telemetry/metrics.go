package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const graphScopeName = "github.com/codegraphhq/codegraph/storage"

var (
	countersOnce sync.Once
	mutations    metric.Int64Counter
	journal      metric.Int64Counter
	delivered    metric.Int64Counter
	waitOutcomes metric.Int64Counter
)

func counters() {
	countersOnce.Do(func() {
		m := Meter(graphScopeName)
		mutations, _ = m.Int64Counter("cg.graph.mutations",
			metric.WithDescription("Graph mutations committed, by operation"),
		)
		journal, _ = m.Int64Counter("cg.journal.appends",
			metric.WithDescription("Journal entries appended"),
		)
		delivered, _ = m.Int64Counter("cg.broker.commands_delivered",
			metric.WithDescription("Commands handed to a waiting agent"),
		)
		waitOutcomes, _ = m.Int64Counter("cg.broker.wait_outcomes",
			metric.WithDescription("Agent waits ended, by outcome"),
		)
	})
}

// CountMutation records one committed graph mutation.
func CountMutation(ctx context.Context, op string) {
	if !Enabled() {
		return
	}
	counters()
	mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("cg.operation", op)))
}

// CountJournalAppend records one journal append.
func CountJournalAppend(ctx context.Context) {
	if !Enabled() {
		return
	}
	counters()
	journal.Add(ctx, 1)
}

// CountCommandDelivered records a command reaching an agent.
func CountCommandDelivered(ctx context.Context, priority string) {
	if !Enabled() {
		return
	}
	counters()
	delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("cg.priority", priority)))
}

// CountWaitOutcome records how an agent wait ended (delivered, timeout,
// cancelled, superseded).
func CountWaitOutcome(ctx context.Context, outcome string) {
	if !Enabled() {
		return
	}
	counters()
	waitOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("cg.outcome", outcome)))
}
