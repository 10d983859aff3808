package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/internal/telemetry"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/events"
	"github.com/angelmondragon/fieldops-backend/pkg/worktime"
)

// Finalize closes an assignment exactly once. Repeated or concurrent calls
// succeed and never write a second set of work logs: the conditional status
// update decides the winner and the ledger's count guard backs it up.
func (s *service) Finalize(ctx context.Context, id uuid.UUID, input FinalizeInput) (res *FinalizeResult, err error) {
	began := time.Now()
	outcome := "error"
	defer func() { s.metrics.ObserveFinalize(outcome, time.Since(began)) }()

	if err := validateFinalizeInput(input); err != nil {
		outcome = "rejected"
		return nil, err
	}

	ctx = s.logg.WithAssignmentID(ctx, id.String())
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch assignment.Status {
	case enums.AssignmentStatusFinalized:
		res, err = s.settle(ctx, assignment, true)
		if err == nil {
			outcome = "already_finalized"
			s.metrics.ObserveTransition(string(enums.AssignmentStatusFinalized), "noop")
		}
		return res, err
	case enums.AssignmentStatusCancelled:
		outcome = "rejected"
		s.metrics.ObserveTransition(string(enums.AssignmentStatusFinalized), "rejected")
		return nil, stateConflict(assignment.Status, enums.AssignmentStatusFinalized)
	}

	recon, err := s.reconciler.Reconcile(ctx, assignment.Vehicle(), assignment.PlannedStartAt)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "gps reconciliation failed, finalizing without gps")
		recon = telemetry.Reconciliation{}
	}

	km, minutes, method := s.resolveDistance(ctx, assignment, input)

	now := s.now()
	window := worktime.Resolve(worktime.Inputs{
		GPSStart:        recon.RealStart,
		GPSCompletion:   recon.RealCompletion,
		PlannedStart:    assignment.PlannedStartAt,
		ClientCompleted: input.CompletedAt,
		DrivingMinutes:  minutes,
		Now:             now,
	})

	// completed_at records when the work closed from the operator's side; the
	// GPS return lives in real_completed_at.
	completedAt := window.Completion
	if window.CompletionSource == worktime.SourceGPS {
		completedAt = now
		if input.CompletedAt != nil {
			completedAt = *input.CompletedAt
		}
	}

	updates := map[string]any{
		"status":            enums.AssignmentStatusFinalized,
		"completed_at":      completedAt.UTC(),
		"real_start_at":     recon.RealStart,
		"real_completed_at": recon.RealCompletion,
		"distance_km":       km,
		"driving_minutes":   minutes,
		"worked_hours":      window.Hours,
	}
	if method != nil {
		updates["route_method"] = *method
	}
	applied, err := s.repo.TransitionStatus(ctx, id, enums.ActiveAssignmentStatuses, updates)
	if err != nil {
		return nil, persistenceError(err, "finalize assignment")
	}

	finalized, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another writer closed it between our read and the update.
		if finalized.Status != enums.AssignmentStatusFinalized {
			outcome = "rejected"
			return nil, stateConflict(finalized.Status, enums.AssignmentStatusFinalized)
		}
		res, err = s.settle(ctx, finalized, true)
		if err == nil {
			outcome = "already_finalized"
		}
		return res, err
	}
	s.metrics.ObserveTransition(string(enums.AssignmentStatusFinalized), "applied")

	res, err = s.settle(ctx, finalized, false)
	if err != nil {
		return nil, err
	}
	res.UsedGPS = recon.Found()
	res.HoursSource = window.CompletionSource

	s.publish(ctx, events.TypeAssignmentFinalized, finalized)
	outcome = "finalized"
	return res, nil
}

// settle runs the steps after the status write: ledger, presence, totals. It is
// safe to repeat, so the already-finalized path uses it to repair a crash that
// happened between the status write and the ledger.
func (s *service) settle(ctx context.Context, a *models.Assignment, already bool) (*FinalizeResult, error) {
	workDate := s.now()
	switch {
	case a.RealCompletedAt != nil:
		workDate = *a.RealCompletedAt
	case a.CompletedAt != nil:
		workDate = *a.CompletedAt
	}

	recorded, err := s.ledger.RecordFinalization(ctx, worklog.RecordInput{
		AssignmentID:   a.ID,
		AssignmentType: a.Type,
		LeadUserID:     a.LeadUserID,
		MemberIDs:      a.MemberIDs(),
		WorkDate:       workDate,
		Hours:          a.WorkedHours,
		Kilometers:     a.DistanceKm,
	})
	if err != nil {
		return nil, persistenceError(err, "record work logs")
	}
	s.metrics.AddWorkLogs(recorded.Created)

	participants := a.ParticipantIDs()
	if err := s.derivePresence(ctx, participants); err != nil {
		return nil, err
	}
	for _, userID := range participants {
		if _, err := s.ledger.RecomputeTotalHours(ctx, userID); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				continue
			}
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "recompute total hours failed", err)
		}
	}

	return &FinalizeResult{
		Assignment:       a,
		AlreadyFinalized: already,
		WorkLogsCreated:  recorded.Created,
		UsedGPS:          a.RealStartAt != nil,
		Warnings:         recorded.Warnings,
	}, nil
}

// resolveDistance prefers the stored route, then a fresh computation, then the
// client's values. It never fails: a finalize must not be blocked by routing.
func (s *service) resolveDistance(ctx context.Context, a *models.Assignment, input FinalizeInput) (float64, int, *enums.RouteMethod) {
	if a.DistanceKm > 0 {
		return a.DistanceKm, a.DrivingMinutes, a.RouteMethod
	}

	route, err := s.computeRoute(ctx, a.StopIDs, routing.Options{IncludeDepot: true})
	if err == nil {
		method := route.Method
		return route.TotalDistanceKm, route.TotalDurationMin, &method
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "route computation failed, using client distance")

	var (
		km      float64
		minutes int
	)
	if input.DistanceKm != nil {
		km = *input.DistanceKm
	}
	if input.DrivingMinutes != nil {
		minutes = *input.DrivingMinutes
	}
	return km, minutes, nil
}

func validateFinalizeInput(input FinalizeInput) error {
	if input.DistanceKm != nil && *input.DistanceKm < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "distance must be non-negative")
	}
	if input.DrivingMinutes != nil && *input.DrivingMinutes < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "driving minutes must be non-negative")
	}
	return nil
}
