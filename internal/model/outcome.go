package model

import "sort"

// Outcome is the per-recipient result of sharing a summary.
type Outcome struct {
	Delivered []string          `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// OK reports whether every recipient was delivered.
func (o Outcome) OK() bool {
	return len(o.Failed) == 0
}

// FailedRecipients returns the failed addresses in sorted order.
func (o Outcome) FailedRecipients() []string {
	out := make([]string, 0, len(o.Failed))
	for r := range o.Failed {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
