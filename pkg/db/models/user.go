package models

import (
	"time"

	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a field team member. Status and CurrentAssignmentID are derived from
// the user's active assignments; TotalHours caches finalized work.
type User struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string           `gorm:"column:name;not null"`
	Role                enums.UserRole   `gorm:"column:role;not null;default:'technician'"`
	Status              enums.UserStatus `gorm:"column:status;not null;default:'free'"`
	CurrentAssignmentID *uuid.UUID       `gorm:"column:current_assignment_id;type:uuid"`
	TotalHours          float64          `gorm:"column:total_hours;not null;default:0"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
