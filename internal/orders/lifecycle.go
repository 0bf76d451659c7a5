package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// NewStatus returns the status a freshly created order starts in.
func NewStatus(requested Status) Status {
	if requested == "" {
		return StatusPending
	}
	return requested
}

// Toggle flips between pending and completed. Any unknown value is treated
// as pending, so toggling it yields completed.
func Toggle(s Status) Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}
