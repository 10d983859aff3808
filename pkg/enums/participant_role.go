package enums

import "fmt"

// ParticipantRole distinguishes the team lead from members on an assignment and in work logs.
type ParticipantRole string

const (
	ParticipantRoleLead   ParticipantRole = "lead"
	ParticipantRoleMember ParticipantRole = "member"
)

var validParticipantRoles = []ParticipantRole{
	ParticipantRoleLead,
	ParticipantRoleMember,
}

// String implements fmt.Stringer.
func (r ParticipantRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ParticipantRole.
func (r ParticipantRole) IsValid() bool {
	for _, candidate := range validParticipantRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseParticipantRole converts raw input into a ParticipantRole.
func ParseParticipantRole(value string) (ParticipantRole, error) {
	for _, candidate := range validParticipantRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participant role %q", value)
}
