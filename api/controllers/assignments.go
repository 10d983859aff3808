package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/fieldops-backend/api/responses"
	"github.com/angelmondragon/fieldops-backend/api/validators"
	"github.com/angelmondragon/fieldops-backend/internal/assignments"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
)

type dispatchRequest struct {
	Type           string      `json:"type" validate:"required,oneof=intervention optimization opening other"`
	StopIDs        []uuid.UUID `json:"stop_ids" validate:"required,min=1"`
	LeadUserID     uuid.UUID   `json:"lead_user_id" validate:"required"`
	MemberIDs      []uuid.UUID `json:"member_ids,omitempty"`
	PlannedStartAt time.Time   `json:"planned_start_at" validate:"required"`
	DueAt          *time.Time  `json:"due_at,omitempty"`
	VehicleID      *string     `json:"vehicle_id,omitempty" validate:"omitempty,min=1,max=64"`
}

func (r dispatchRequest) toInput() assignments.DispatchInput {
	return assignments.DispatchInput{
		Type:           enums.AssignmentType(r.Type),
		StopIDs:        r.StopIDs,
		LeadUserID:     r.LeadUserID,
		MemberIDs:      r.MemberIDs,
		PlannedStartAt: r.PlannedStartAt,
		DueAt:          r.DueAt,
		VehicleID:      r.VehicleID,
	}
}

type startRequest struct {
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// finalizeRequest carries the client-reported fallbacks. All fields are optional.
type finalizeRequest struct {
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DistanceKm     *float64   `json:"distance_km,omitempty" validate:"omitempty,gte=0"`
	DrivingMinutes *int       `json:"driving_minutes,omitempty" validate:"omitempty,gte=0"`
}

type routeRequest struct {
	StopIDs []uuid.UUID `json:"stop_ids,omitempty"`
	Direct  bool        `json:"direct,omitempty"`
}

type teamRequest struct {
	LeadUserID uuid.UUID   `json:"lead_user_id" validate:"required"`
	MemberIDs  []uuid.UUID `json:"member_ids,omitempty"`
}

// AssignmentDispatch creates an assignment in the assigned state. Routes are
// computed on demand through the route endpoint or at finalize.
func AssignmentDispatch(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable"))
			return
		}

		var body dispatchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Dispatch(r.Context(), body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, assignments.FromModel(created))
	}
}

func AssignmentStart(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		var body startRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		started, err := svc.Start(assignmentContext(r, logg, id), id, assignments.StartInput{StartedAt: body.StartedAt})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.FromModel(started))
	}
}

// AssignmentFinalize closes an assignment. Repeating the call is safe and
// returns the stored result with already_finalized set.
func AssignmentFinalize(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		var body finalizeRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Finalize(assignmentContext(r, logg, id), id, assignments.FinalizeInput{
			CompletedAt:    body.CompletedAt,
			DistanceKm:     body.DistanceKm,
			DrivingMinutes: body.DrivingMinutes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result.ToDTO())
	}
}

func AssignmentCancel(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		cancelled, err := svc.Cancel(assignmentContext(r, logg, id), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.FromModel(cancelled))
	}
}

// AssignmentRecalculateRoute recomputes the route, optionally over a new stop list.
func AssignmentRecalculateRoute(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		var body routeRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		route, err := svc.RecalculateRoute(assignmentContext(r, logg, id), id, assignments.RecalculateInput{
			StopIDs: body.StopIDs,
			Direct:  body.Direct,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.RouteDTO{AssignmentID: id, Route: route})
	}
}

func AssignmentUpdateTeam(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		var body teamRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateTeam(assignmentContext(r, logg, id), id, assignments.TeamInput{
			LeadUserID: body.LeadUserID,
			MemberIDs:  body.MemberIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.FromModel(updated))
	}
}

func AssignmentDelete(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := assignmentIDParam(w, r, logg)
		if !ok {
			return
		}

		if err := svc.Delete(assignmentContext(r, logg, id), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func assignmentIDParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	return uuidParam(w, r, logg, "assignmentId")
}

func uuidParam(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name).
			WithDetails(map[string]any{"field": name}))
		return uuid.Nil, false
	}
	return id, true
}

func assignmentContext(r *http.Request, logg *logger.Logger, id uuid.UUID) context.Context {
	if logg == nil {
		return r.Context()
	}
	return logg.WithAssignmentID(r.Context(), id.String())
}
