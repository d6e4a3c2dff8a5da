package models

// State is the authoritative per-user ticketing lifecycle state. The value
// lives in Redis under a per-(event,user) key with a TTL appropriate to its
// stage; a missing key is equivalent to StateNotInQueue.
type State string

const (
	StateNotInQueue State = "NOT_IN_QUEUE"
	StateWaiting    State = "WAITING"
	StateActive     State = "ACTIVE"
	StateReserving  State = "RESERVING"
	StatePaying     State = "PAYING"
	StateCompleted  State = "COMPLETED"
	StateLeft       State = "LEFT"
)

// transitions is the closed transition table. Expiry paths are not listed:
// a lapsed TTL deletes the key, which reads back as NOT_IN_QUEUE.
var transitions = map[State][]State{
	StateNotInQueue: {StateWaiting},
	StateWaiting:    {StateActive, StateLeft},
	StateActive:     {StateReserving},
	StateReserving:  {StateActive, StatePaying},
	StatePaying:     {StateCompleted, StateActive},
	StateCompleted:  {},
	StateLeft:       {StateWaiting},
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is allowed by the
// lifecycle table.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ParseState maps a raw store value to a State. Empty and unknown values
// both read as NOT_IN_QUEUE so that stale or corrupted keys fail closed.
func ParseState(raw string) State {
	s := State(raw)
	if raw == "" || !s.Valid() {
		return StateNotInQueue
	}
	return s
}
