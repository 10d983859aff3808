package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
)

// UserDTO is the transport shape of a field user.
type UserDTO struct {
	ID                  uuid.UUID        `json:"id"`
	Name                string           `json:"name"`
	Role                enums.UserRole   `json:"role"`
	Status              enums.UserStatus `json:"status"`
	CurrentAssignmentID *uuid.UUID       `json:"current_assignment_id,omitempty"`
	TotalHours          float64          `json:"total_hours"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name string
	Role enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                  u.ID,
		Name:                u.Name,
		Role:                u.Role,
		Status:              u.Status,
		CurrentAssignmentID: u.CurrentAssignmentID,
		TotalHours:          u.TotalHours,
		UpdatedAt:           u.UpdatedAt,
	}
}

func (dto CreateUserDTO) ToModel() *models.User {
	role := dto.Role
	if role == "" {
		role = enums.UserRoleTechnician
	}
	return &models.User{
		Name:   dto.Name,
		Role:   role,
		Status: enums.UserStatusFree,
	}
}
