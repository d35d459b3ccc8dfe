package orders

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// in_progress -> in_progress is a retried job picking the order up again.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true, StatusFailed: true},
	StatusInProgress: {StatusInProgress: true, StatusCompleted: true, StatusFailed: true},
	StatusCompleted:  {},
	StatusFailed:     {},
}

var allStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// AllowedFrom lists the stored statuses from which writing next is legal. A non-terminal
// status may also be rewritten in place (pending while SKUs are linked).
func AllowedFrom(next Status) []string {
	var out []string
	for _, s := range allStatuses {
		if CanTransition(s, next) || (s == next && !next.Terminal()) {
			out = append(out, string(s))
		}
	}
	return out
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// TransitionError is returned when a status change is not allowed by the order state machine.
type TransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid status transition %s -> %s", e.OrderID, e.From, e.To)
}
