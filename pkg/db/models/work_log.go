package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkLog credits hours and kilometers to one user for one finalized assignment.
// Rows are immutable once written.
type WorkLog struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	AssignmentID uuid.UUID `gorm:"column:assignment_id;type:uuid;not null"`
	WorkDate     time.Time `gorm:"column:work_date;type:date;not null"`
	Hours        float64   `gorm:"column:hours;not null"`
	Kilometers   float64   `gorm:"column:kilometers;not null"`
	Description  string    `gorm:"column:description;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (w *WorkLog) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
