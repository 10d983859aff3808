package enums

import "fmt"

// AssignmentType categorizes the work a team is dispatched for.
type AssignmentType string

const (
	AssignmentTypeIntervention AssignmentType = "intervention"
	AssignmentTypeOptimization AssignmentType = "optimization"
	AssignmentTypeOpening      AssignmentType = "opening"
	AssignmentTypeOther        AssignmentType = "other"
)

var validAssignmentTypes = []AssignmentType{
	AssignmentTypeIntervention,
	AssignmentTypeOptimization,
	AssignmentTypeOpening,
	AssignmentTypeOther,
}

// String implements fmt.Stringer.
func (t AssignmentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known AssignmentType.
func (t AssignmentType) IsValid() bool {
	for _, candidate := range validAssignmentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAssignmentType converts raw input into an AssignmentType.
func ParseAssignmentType(value string) (AssignmentType, error) {
	for _, candidate := range validAssignmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment type %q", value)
}
