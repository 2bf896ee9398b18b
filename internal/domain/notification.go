package domain

import "time"

// Notification is the value object produced once per completed invocation.
// It is what crosses process boundaries when completions are fanned out; the
// correlation state is rendered to a string since arbitrary values do not
// survive serialization.
type Notification struct {
	ID          string    `json:"id"`
	Operation   string    `json:"operation"`
	X           int32     `json:"x"`
	Y           int32     `json:"y"`
	Result      int32     `json:"result"`
	Error       string    `json:"error,omitempty"`
	State       string    `json:"state,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// Succeeded reports whether the invocation produced a result.
func (n Notification) Succeeded() bool {
	return n.Error == ""
}
