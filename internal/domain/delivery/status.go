package delivery

// Status represents the lifecycle state of a delivery request
type Status string

const (
	StatusOpen      Status = "open"
	StatusClaimed   Status = "claimed"
	StatusPickedUp  Status = "picked_up"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// ActiveClaimStatuses are the states in which a volunteer holds the request
var ActiveClaimStatuses = []Status{StatusClaimed, StatusPickedUp}

// NonTerminalStatuses are the states from which a request can still move
var NonTerminalStatuses = []Status{StatusOpen, StatusClaimed, StatusPickedUp}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusPickedUp, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for completed and canceled
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// IsActiveClaim returns true while a volunteer holds the request
func (s Status) IsActiveClaim() bool {
	return s == StatusClaimed || s == StatusPickedUp
}

// CanTransitionTo checks if the status can transition to the target status.
// The claimed/picked_up -> open edge is the requeue.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusOpen:
		return target == StatusClaimed || target == StatusCanceled
	case StatusClaimed:
		return target == StatusPickedUp || target == StatusCompleted || target == StatusCanceled || target == StatusOpen
	case StatusPickedUp:
		return target == StatusCompleted || target == StatusCanceled || target == StatusOpen
	case StatusCompleted, StatusCanceled:
		return false
	}
	return false
}
