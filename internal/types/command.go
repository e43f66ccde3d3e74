package types

import (
	"fmt"
	"time"
)

// Priority orders commands for delivery: LOW < MEDIUM < HIGH < URGENT.
type Priority string

// Priority constants.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// IsValid reports whether the priority is one of the enumerated levels.
func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the total-order position of the priority (LOW=0 .. URGENT=3).
func (p Priority) Rank() int { return priorityRank[p] }

// AtLeast reports whether p >= min in the priority order.
func (p Priority) AtLeast(min Priority) bool { return p.Rank() >= min.Rank() }

// CommandStatus tracks a command through the broker.
type CommandStatus string

// Command status constants. DELIVERED and CANCELLED are terminal.
const (
	CommandPending   CommandStatus = "PENDING"
	CommandDelivered CommandStatus = "DELIVERED"
	CommandCancelled CommandStatus = "CANCELLED"
)

// PendingCommand is a command awaiting delivery to a matching agent.
type PendingCommand struct {
	ID                 string        `json:"id"`
	Type               string        `json:"type"` // free-text verb, e.g. EXECUTE_TASK
	Source             string        `json:"source,omitempty"`
	Payload            Metadata      `json:"payload,omitempty"`
	Priority           Priority      `json:"priority"`
	TargetComponentIDs []string      `json:"target_component_ids,omitempty"`
	TaskType           string        `json:"task_type,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	Status             CommandStatus `json:"status"`
	DeliveredTo        string        `json:"delivered_to,omitempty"`
	DeliveredAt        *time.Time    `json:"delivered_at,omitempty"`
}

// Validate checks the command shape. A missing priority is not an error; the
// broker normalizes it to MEDIUM.
func (c *PendingCommand) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("command type is required")
	}
	if c.Priority != "" && !c.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", c.Priority)
	}
	return c.Payload.Validate()
}

// Clone returns a deep-enough copy for handing across goroutine boundaries.
func (c *PendingCommand) Clone() *PendingCommand {
	out := *c
	out.TargetComponentIDs = append([]string(nil), c.TargetComponentIDs...)
	if c.Payload != nil {
		out.Payload = make(Metadata, len(c.Payload))
		for k, v := range c.Payload {
			out.Payload[k] = v
		}
	}
	if c.DeliveredAt != nil {
		t := *c.DeliveredAt
		out.DeliveredAt = &t
	}
	return &out
}

// CommandFilters is the predicate an agent registers with a wait. A command
// matches when every present field accepts it; an empty filter accepts all.
type CommandFilters struct {
	TaskTypes    []string `json:"task_types,omitempty"`
	ComponentIDs []string `json:"component_ids,omitempty"`
	MinPriority  Priority `json:"min_priority,omitempty"`
}

// Validate checks the filter shape.
func (f *CommandFilters) Validate() error {
	if f.MinPriority != "" && !f.MinPriority.IsValid() {
		return fmt.Errorf("invalid min_priority: %s", f.MinPriority)
	}
	return nil
}

// Matches reports whether the command satisfies every present filter field.
func (f *CommandFilters) Matches(cmd *PendingCommand) bool {
	if len(f.TaskTypes) > 0 {
		found := false
		for _, t := range f.TaskTypes {
			if t == cmd.TaskType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.ComponentIDs) > 0 {
		found := false
		for _, want := range f.ComponentIDs {
			for _, have := range cmd.TargetComponentIDs {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	if f.MinPriority != "" && !cmd.Priority.AtLeast(f.MinPriority) {
		return false
	}
	return true
}

// WaitingAgent is a point-in-time view of an in-flight wait.
type WaitingAgent struct {
	AgentID   string         `json:"agent_id"`
	Filters   CommandFilters `json:"filters"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// BrokerAction labels entries in the broker's bounded audit history.
type BrokerAction string

// Broker history actions.
const (
	ActionWaitStarted      BrokerAction = "WAIT_STARTED"
	ActionWaitFailed       BrokerAction = "WAIT_FAILED"
	ActionCommandReceived  BrokerAction = "COMMAND_RECEIVED"
	ActionCommandSent      BrokerAction = "COMMAND_SENT"
	ActionCommandQueued    BrokerAction = "COMMAND_QUEUED"
	ActionCommandCancelled BrokerAction = "COMMAND_CANCELLED"
)

// BrokerHistoryEntry is one row of the broker's audit trail.
type BrokerHistoryEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Action    BrokerAction `json:"action"`
	AgentID   string       `json:"agent_id,omitempty"`
	Payload   Metadata     `json:"payload,omitempty"`
}

// SendResult reports the outcome of a SendCommand call.
type SendResult struct {
	Delivered bool            `json:"delivered"`
	AgentID   string          `json:"agent_id,omitempty"`
	Command   *PendingCommand `json:"command"`
}
