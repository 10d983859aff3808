package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/worktime"
)

// DispatchInput describes a new assignment.
type DispatchInput struct {
	Type           enums.AssignmentType
	StopIDs        []uuid.UUID
	LeadUserID     uuid.UUID
	MemberIDs      []uuid.UUID
	PlannedStartAt time.Time
	DueAt          *time.Time
	VehicleID      *string
}

// StartInput optionally overrides the departure time. Nil means now.
type StartInput struct {
	StartedAt *time.Time
}

// FinalizeInput carries the values a client may supply when closing an assignment.
// They are used only when nothing better is known.
type FinalizeInput struct {
	CompletedAt    *time.Time
	DistanceKm     *float64
	DrivingMinutes *int
}

// RecalculateInput replaces the stop list when StopIDs is non-empty.
type RecalculateInput struct {
	StopIDs []uuid.UUID
	Direct  bool
}

// TeamInput is the new participant set.
type TeamInput struct {
	LeadUserID uuid.UUID
	MemberIDs  []uuid.UUID
}

// FinalizeResult reports what a finalize call did.
type FinalizeResult struct {
	Assignment       *models.Assignment
	AlreadyFinalized bool
	WorkLogsCreated  int
	UsedGPS          bool
	HoursSource      worktime.Source
	Warnings         []*pkgerrors.Error
}

// AssignmentDTO is the API shape of an assignment.
type AssignmentDTO struct {
	ID              uuid.UUID              `json:"id"`
	Type            enums.AssignmentType   `json:"type"`
	Status          enums.AssignmentStatus `json:"status"`
	StopIDs         []uuid.UUID            `json:"stop_ids"`
	LeadUserID      uuid.UUID              `json:"lead_user_id"`
	MemberIDs       []uuid.UUID            `json:"member_ids"`
	PlannedStartAt  time.Time              `json:"planned_start_at"`
	DueAt           *time.Time             `json:"due_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	RealStartAt     *time.Time             `json:"real_start_at,omitempty"`
	RealCompletedAt *time.Time             `json:"real_completed_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	DistanceKm      float64                `json:"distance_km"`
	DrivingMinutes  int                    `json:"driving_minutes"`
	WorkedHours     float64                `json:"worked_hours"`
	RouteMethod     *enums.RouteMethod     `json:"calculation_method,omitempty"`
	VehicleID       *string                `json:"vehicle_id,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// FromModel maps a persisted assignment to its API shape.
func FromModel(a *models.Assignment) *AssignmentDTO {
	if a == nil {
		return nil
	}
	stops := make([]uuid.UUID, len(a.StopIDs))
	copy(stops, a.StopIDs)
	return &AssignmentDTO{
		ID:              a.ID,
		Type:            a.Type,
		Status:          a.Status,
		StopIDs:         stops,
		LeadUserID:      a.LeadUserID,
		MemberIDs:       a.MemberIDs(),
		PlannedStartAt:  a.PlannedStartAt,
		DueAt:           a.DueAt,
		CompletedAt:     a.CompletedAt,
		RealStartAt:     a.RealStartAt,
		RealCompletedAt: a.RealCompletedAt,
		CancelledAt:     a.CancelledAt,
		DistanceKm:      a.DistanceKm,
		DrivingMinutes:  a.DrivingMinutes,
		WorkedHours:     a.WorkedHours,
		RouteMethod:     a.RouteMethod,
		VehicleID:       a.VehicleID,
		UpdatedAt:       a.UpdatedAt,
	}
}

// FinalizeResultDTO is the API shape of a finalize call.
type FinalizeResultDTO struct {
	Assignment       *AssignmentDTO  `json:"assignment"`
	AlreadyFinalized bool            `json:"already_finalized"`
	WorkLogsCreated  int             `json:"work_logs_created"`
	UsedGPS          bool            `json:"used_gps"`
	HoursSource      worktime.Source `json:"hours_source,omitempty"`
	Warnings         []WarningDTO    `json:"warnings,omitempty"`
}

// WarningDTO is a non-fatal problem attached to a successful result.
type WarningDTO struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

// ToDTO maps the result for API responses.
func (r *FinalizeResult) ToDTO() *FinalizeResultDTO {
	if r == nil {
		return nil
	}
	out := &FinalizeResultDTO{
		Assignment:       FromModel(r.Assignment),
		AlreadyFinalized: r.AlreadyFinalized,
		WorkLogsCreated:  r.WorkLogsCreated,
		UsedGPS:          r.UsedGPS,
		HoursSource:      r.HoursSource,
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, WarningDTO{Code: w.Code(), Message: w.Message(), Details: w.Details()})
	}
	return out
}

// RouteDTO wraps a recalculated route.
type RouteDTO struct {
	AssignmentID uuid.UUID      `json:"assignment_id"`
	Route        *routing.Route `json:"route"`
}
