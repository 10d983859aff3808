package enums

import "fmt"

// AssignmentStatus tracks where an assignment sits in its lifecycle.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusInTransit AssignmentStatus = "in_transit"
	AssignmentStatusFinalized AssignmentStatus = "finalized"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusInTransit,
	AssignmentStatusFinalized,
	AssignmentStatusCancelled,
}

// assignmentTransitions lists the forward edges of the lifecycle. Terminal states have none.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusAssigned: {
		AssignmentStatusInTransit,
		AssignmentStatusFinalized,
		AssignmentStatusCancelled,
	},
	AssignmentStatusInTransit: {
		AssignmentStatusFinalized,
		AssignmentStatusCancelled,
	},
}

// ActiveAssignmentStatuses are the states that still hold participants.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusInTransit,
}

// String implements fmt.Stringer.
func (s AssignmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (s AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusFinalized || s == AssignmentStatusCancelled
}

// CanTransitionTo reports whether next is a legal forward move from s.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, candidate := range assignmentTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
