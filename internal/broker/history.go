package broker

import "github.com/codegraphhq/codegraph/internal/types"

// history is a bounded ring of audit entries. When full, the oldest entry is
// overwritten. Callers synchronize through the broker mutex.
type history struct {
	entries []types.BrokerHistoryEntry
	next    int
	full    bool
}

func newHistory(size int) *history {
	return &history{entries: make([]types.BrokerHistoryEntry, size)}
}

func (h *history) add(e types.BrokerHistoryEntry) {
	h.entries[h.next] = e
	h.next++
	if h.next == len(h.entries) {
		h.next = 0
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// newest returns up to limit entries, newest first. Limit <= 0 means all.
func (h *history) newest(limit int) []types.BrokerHistoryEntry {
	n := h.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.BrokerHistoryEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.entries)) % len(h.entries)
		out = append(out, h.entries[idx])
	}
	return out
}
