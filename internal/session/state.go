package session

import "time"

// State of the lock state machine.
type State int32

const (
	Locked State = iota
	Unlocking
	Unlocked
)

func (s State) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// Reason says why a session was locked.
type Reason string

const (
	ReasonManual  Reason = "manual"
	ReasonTimeout Reason = "timeout"
	ReasonReset   Reason = "reset"
)

// LockEvent is published every time an unlocked or unlocking session locks.
// The consumer must ask the user to authenticate again.
type LockEvent struct {
	Reason Reason
	At     time.Time
}
