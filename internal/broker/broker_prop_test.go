package broker

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/codegraphhq/codegraph/internal/types"
)

func genPriority() gopter.Gen {
	return gen.OneConstOf(types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityUrgent)
}

// Draining the queue always yields priorities in non-increasing rank order,
// and equal priorities come out oldest first.
func TestPendingOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("drain order is priority desc then FIFO", prop.ForAll(
		func(priorities []types.Priority) bool {
			b := New()
			ctx := context.Background()

			sentOrder := make(map[string]int)
			for i, p := range priorities {
				sent, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X", Priority: p})
				if err != nil {
					return false
				}
				sentOrder[sent.Command.ID] = i
			}

			var drained []*types.PendingCommand
			for range priorities {
				cmd, err := b.WaitForCommand(ctx, "agent", time.Minute, types.CommandFilters{})
				if err != nil {
					return false
				}
				drained = append(drained, cmd)
			}

			for i := 1; i < len(drained); i++ {
				prev, cur := drained[i-1], drained[i]
				if prev.Priority.Rank() < cur.Priority.Rank() {
					return false
				}
				if prev.Priority == cur.Priority && sentOrder[prev.ID] > sentOrder[cur.ID] {
					return false
				}
			}
			return len(b.GetPendingCommands()) == 0
		},
		gen.SliceOf(genPriority()),
	))

	properties.TestingRun(t)
}

// A wait with a min-priority filter never receives a command below it, and
// the commands it skips stay queued.
func TestMinPriorityFilterProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("delivered priority is at least the filter minimum", prop.ForAll(
		func(priorities []types.Priority, min types.Priority) bool {
			b := New()
			ctx := context.Background()

			eligible := 0
			for _, p := range priorities {
				if _, err := b.SendCommand(ctx, &types.PendingCommand{Type: "X", Priority: p}); err != nil {
					return false
				}
				if p.AtLeast(min) {
					eligible++
				}
			}

			delivered := 0
			filters := types.CommandFilters{MinPriority: min}
			for i := 0; i < eligible; i++ {
				cmd, err := b.WaitForCommand(ctx, "agent", time.Minute, filters)
				if err != nil {
					return false
				}
				if !cmd.Priority.AtLeast(min) {
					return false
				}
				delivered++
			}

			// Everything below the minimum is still pending.
			return delivered == eligible && len(b.GetPendingCommands()) == len(priorities)-eligible
		},
		gen.SliceOf(genPriority()),
		genPriority(),
	))

	properties.TestingRun(t)
}

// Filter matching is total: every command either matches or not, and an empty
// filter accepts everything.
func TestEmptyFilterMatchesAllProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("empty filters accept any valid command", prop.ForAll(
		func(taskType string, p types.Priority) bool {
			cmd := &types.PendingCommand{Type: "X", TaskType: taskType, Priority: p}
			filters := types.CommandFilters{}
			return filters.Matches(cmd)
		},
		gen.AlphaString(),
		genPriority(),
	))

	properties.TestingRun(t)
}
