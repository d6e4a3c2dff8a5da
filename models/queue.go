package models

// EnterResult is returned by queue entry. Rank is the count of still-waiting
// users with an earlier enqueue timestamp (zero-based); users already past
// the line report rank -1 with their current state.
type EnterResult struct {
	Rank  int64 `json:"rank"`
	State State `json:"state"`
}

type QueueStatus struct {
	State        State  `json:"state"`
	Rank         int64  `json:"rank"` // -1 when not applicable
	TotalWaiting int64  `json:"total_waiting"`
	ActiveCount  int64  `json:"active_count"`
	Message      string `json:"message"`
}
