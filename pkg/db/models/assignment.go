package models

import (
	"sort"
	"time"

	dbtypes "github.com/angelmondragon/fieldops-backend/pkg/db/types"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assignment is a team dispatched to an ordered list of stores.
type Assignment struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type            enums.AssignmentType   `gorm:"column:type;not null"`
	StopIDs         dbtypes.UUIDArray      `gorm:"column:stop_ids;type:uuid[];not null"`
	LeadUserID      uuid.UUID              `gorm:"column:lead_user_id;type:uuid;not null"`
	Status          enums.AssignmentStatus `gorm:"column:status;not null;default:'assigned'"`
	PlannedStartAt  time.Time              `gorm:"column:planned_start_at;not null"`
	DueAt           *time.Time             `gorm:"column:due_at"`
	CompletedAt     *time.Time             `gorm:"column:completed_at"`
	RealStartAt     *time.Time             `gorm:"column:real_start_at"`
	RealCompletedAt *time.Time             `gorm:"column:real_completed_at"`
	DistanceKm      float64                `gorm:"column:distance_km;not null;default:0"`
	DrivingMinutes  int                    `gorm:"column:driving_minutes;not null;default:0"`
	WorkedHours     float64                `gorm:"column:worked_hours;not null;default:0"`
	RouteMethod     *enums.RouteMethod     `gorm:"column:route_method"`
	VehicleID       *string                `gorm:"column:vehicle_id"`
	CancelledAt     *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Participants []AssignmentParticipant `gorm:"foreignKey:AssignmentID;references:ID"`
}

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Vehicle returns the assigned vehicle identifier or an empty string.
func (a *Assignment) Vehicle() string {
	if a == nil || a.VehicleID == nil {
		return ""
	}
	return *a.VehicleID
}

// MemberIDs returns the non-lead participants in dispatch order.
func (a *Assignment) MemberIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.Participants))
	for _, p := range a.sortedParticipants() {
		if p.Role == enums.ParticipantRoleMember {
			out = append(out, p.UserID)
		}
	}
	return out
}

// ParticipantIDs returns the lead followed by every member, without duplicates.
func (a *Assignment) ParticipantIDs() []uuid.UUID {
	seen := map[uuid.UUID]struct{}{a.LeadUserID: {}}
	out := []uuid.UUID{a.LeadUserID}
	for _, id := range a.MemberIDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (a *Assignment) sortedParticipants() []AssignmentParticipant {
	sorted := append([]AssignmentParticipant(nil), a.Participants...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	return sorted
}

// AssignmentParticipant links a user to an assignment. The lead sits at position 0.
type AssignmentParticipant struct {
	AssignmentID uuid.UUID             `gorm:"column:assignment_id;type:uuid;primaryKey"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;primaryKey"`
	Role         enums.ParticipantRole `gorm:"column:role;not null"`
	Position     int                   `gorm:"column:position;not null;default:0"`
}
