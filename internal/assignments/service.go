package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/internal/telemetry"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/fieldops-backend/pkg/db/types"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/events"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/locks"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
)

// Service is the assignment state machine. It is the only writer of
// assignments.status and of the derived user presence columns.
type Service interface {
	Dispatch(ctx context.Context, input DispatchInput) (*models.Assignment, error)
	Start(ctx context.Context, id uuid.UUID, input StartInput) (*models.Assignment, error)
	Finalize(ctx context.Context, id uuid.UUID, input FinalizeInput) (*FinalizeResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	RecalculateRoute(ctx context.Context, id uuid.UUID, input RecalculateInput) (*routing.Route, error)
	UpdateTeam(ctx context.Context, id uuid.UUID, input TeamInput) (*models.Assignment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Deps lists the collaborators of the state machine. Locker, Events, Metrics and
// Clock are optional.
type Deps struct {
	Repo       Repository
	Tx         txRunner
	Users      UserRepository
	Stores     StoreLookup
	Ledger     worklog.Service
	Reconciler telemetry.Reconciler
	Routes     routing.Calculator
	Locker     locks.Locker
	Events     events.Publisher
	Metrics    *metrics.AssignmentMetrics
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	users      UserRepository
	stores     StoreLookup
	ledger     worklog.Service
	reconciler telemetry.Reconciler
	routes     routing.Calculator
	locker     locks.Locker
	events     events.Publisher
	metrics    *metrics.AssignmentMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the assignment service with the required dependencies.
func NewService(d Deps) (Service, error) {
	if d.Repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if d.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if d.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if d.Stores == nil {
		return nil, fmt.Errorf("store lookup required")
	}
	if d.Ledger == nil {
		return nil, fmt.Errorf("work-log service required")
	}
	if d.Reconciler == nil {
		return nil, fmt.Errorf("gps reconciler required")
	}
	if d.Routes == nil {
		return nil, fmt.Errorf("route calculator required")
	}
	if d.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		repo:       d.Repo,
		tx:         d.Tx,
		users:      d.Users,
		stores:     d.Stores,
		ledger:     d.Ledger,
		reconciler: d.Reconciler,
		routes:     d.Routes,
		locker:     d.Locker,
		events:     d.Events,
		metrics:    d.Metrics,
		logg:       d.Logger,
		now:        d.Clock,
	}
	if svc.locker == nil {
		svc.locker = locks.NewLocalLocker()
	}
	if svc.events == nil {
		svc.events = events.Noop{}
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) Dispatch(ctx context.Context, input DispatchInput) (*models.Assignment, error) {
	if input.Type == "" {
		input.Type = enums.AssignmentTypeIntervention
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid assignment type %q", input.Type))
	}
	if len(input.StopIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one stop is required")
	}
	if input.LeadUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead user is required")
	}
	if input.PlannedStartAt.IsZero() {
		input.PlannedStartAt = s.now()
	}
	if input.DueAt != nil && input.DueAt.Before(input.PlannedStartAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date precedes planned start")
	}

	members := normalizeMembers(input.LeadUserID, input.MemberIDs)
	if err := s.ensureUsers(ctx, append([]uuid.UUID{input.LeadUserID}, members...)); err != nil {
		return nil, err
	}
	if err := s.ensureStops(ctx, input.StopIDs); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ID:             uuid.New(),
		Type:           input.Type,
		StopIDs:        dbtypes.UUIDArray(append([]uuid.UUID(nil), input.StopIDs...)),
		LeadUserID:     input.LeadUserID,
		Status:         enums.AssignmentStatusAssigned,
		PlannedStartAt: input.PlannedStartAt.UTC(),
		DueAt:          input.DueAt,
		VehicleID:      input.VehicleID,
	}
	assignment.Participants = participantRows(assignment.ID, input.LeadUserID, members)

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, assignment)
	}); err != nil {
		return nil, persistenceError(err, "create assignment")
	}
	s.metrics.ObserveTransition(string(enums.AssignmentStatusAssigned), "applied")

	ctx = s.logg.WithAssignmentID(ctx, assignment.ID.String())
	if err := s.derivePresence(ctx, assignment.ParticipantIDs()); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeAssignmentDispatched, assignment)
	return assignment, nil
}

func (s *service) Start(ctx context.Context, id uuid.UUID, input StartInput) (*models.Assignment, error) {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	startedAt := s.now()
	if input.StartedAt != nil {
		startedAt = input.StartedAt.UTC()
	}
	applied, err := s.repo.TransitionStatus(ctx, id, []enums.AssignmentStatus{enums.AssignmentStatusAssigned}, map[string]any{
		"status":           enums.AssignmentStatusInTransit,
		"planned_start_at": startedAt,
	})
	if err != nil {
		return nil, persistenceError(err, "start assignment")
	}

	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		if assignment.Status == enums.AssignmentStatusInTransit {
			s.metrics.ObserveTransition(string(enums.AssignmentStatusInTransit), "noop")
			return assignment, nil
		}
		s.metrics.ObserveTransition(string(enums.AssignmentStatusInTransit), "rejected")
		return nil, stateConflict(assignment.Status, enums.AssignmentStatusInTransit)
	}
	s.metrics.ObserveTransition(string(enums.AssignmentStatusInTransit), "applied")

	if err := s.derivePresence(ctx, assignment.ParticipantIDs()); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeAssignmentStarted, assignment)
	return assignment, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	applied, err := s.repo.TransitionStatus(ctx, id, enums.ActiveAssignmentStatuses, map[string]any{
		"status":       enums.AssignmentStatusCancelled,
		"cancelled_at": s.now(),
	})
	if err != nil {
		return nil, persistenceError(err, "cancel assignment")
	}

	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !applied {
		if assignment.Status == enums.AssignmentStatusCancelled {
			s.metrics.ObserveTransition(string(enums.AssignmentStatusCancelled), "noop")
			return assignment, nil
		}
		s.metrics.ObserveTransition(string(enums.AssignmentStatusCancelled), "rejected")
		return nil, stateConflict(assignment.Status, enums.AssignmentStatusCancelled)
	}
	s.metrics.ObserveTransition(string(enums.AssignmentStatusCancelled), "applied")

	if err := s.derivePresence(ctx, assignment.ParticipantIDs()); err != nil {
		return nil, err
	}
	s.publish(ctx, events.TypeAssignmentCancelled, assignment)
	return assignment, nil
}

func (s *service) RecalculateRoute(ctx context.Context, id uuid.UUID, input RecalculateInput) (*routing.Route, error) {
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
	if assignment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "route cannot change on a closed assignment").
			WithDetails(map[string]any{"status": assignment.Status})
	}

	stopIDs := assignment.StopIDs
	if len(input.StopIDs) > 0 {
		if err := s.ensureStops(ctx, input.StopIDs); err != nil {
			return nil, err
		}
		stopIDs = dbtypes.UUIDArray(append([]uuid.UUID(nil), input.StopIDs...))
	}
	route, err := s.computeRoute(ctx, stopIDs, routing.Options{IncludeDepot: true, Direct: input.Direct})
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.UpdateRoute(ctx, id, stopIDs, route.TotalDistanceKm, route.TotalDurationMin, route.Method)
	if err != nil {
		return nil, persistenceError(err, "store route")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment closed while the route was computed")
	}
	return route, nil
}

func (s *service) UpdateTeam(ctx context.Context, id uuid.UUID, input TeamInput) (*models.Assignment, error) {
	if input.LeadUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lead user is required")
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
	if assignment.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "team cannot change on a closed assignment").
			WithDetails(map[string]any{"status": assignment.Status})
	}

	members := normalizeMembers(input.LeadUserID, input.MemberIDs)
	if err := s.ensureUsers(ctx, append([]uuid.UUID{input.LeadUserID}, members...)); err != nil {
		return nil, err
	}

	previous := assignment.ParticipantIDs()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		logged, err := repo.CountWorkLogs(ctx, id)
		if err != nil {
			return err
		}
		if logged > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "team is locked once work has been logged")
		}
		return repo.ReplaceParticipants(ctx, id, input.LeadUserID, members)
	})
	if err != nil {
		return nil, persistenceError(err, "replace participants")
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.derivePresence(ctx, union(previous, updated.ParticipantIDs())); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	assignment, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		logged, err := repo.CountWorkLogs(ctx, id)
		if err != nil {
			return err
		}
		if logged > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment has work logs and cannot be deleted")
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return persistenceError(err, "delete assignment")
	}
	return s.derivePresence(ctx, assignment.ParticipantIDs())
}

// ensureStops rejects stop lists that reference unknown stores.
func (s *service) ensureStops(ctx context.Context, ids []uuid.UUID) error {
	_, missing, err := s.stores.FindByIDsOrdered(ctx, ids)
	if err != nil {
		return persistenceError(err, "load stops")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown stops").
			WithDetails(map[string]any{"stop_ids": missing})
	}
	return nil
}

// computeRoute resolves stop ids to stores and runs the calculator.
func (s *service) computeRoute(ctx context.Context, stopIDs []uuid.UUID, opts routing.Options) (*routing.Route, error) {
	rows, missing, err := s.stores.FindByIDsOrdered(ctx, stopIDs)
	if err != nil {
		return nil, persistenceError(err, "load stops")
	}
	if len(missing) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "missing_stop_ids", missing), "route skips unknown stops")
	}
	stops := make([]routing.Stop, 0, len(rows))
	for _, row := range rows {
		stop := routing.Stop{ID: row.ID, Label: row.Name, Address: row.Address}
		if row.Lat != nil && row.Lng != nil {
			stop.Coordinates = &geo.Coordinates{Lat: *row.Lat, Lng: *row.Lng}
		}
		stops = append(stops, stop)
	}
	return s.routes.ComputeRoute(ctx, stops, opts)
}

// derivePresence recomputes status and current assignment for every user from
// their non-terminal assignments.
func (s *service) derivePresence(ctx context.Context, userIDs []uuid.UUID) error {
	for _, userID := range userIDs {
		active, err := s.repo.ActiveForUser(ctx, userID)
		if err != nil {
			return persistenceError(err, "load active assignments")
		}
		status, current := presenceOf(active)
		if err := s.users.UpdatePresence(ctx, userID, status, current); err != nil {
			return persistenceError(err, "update user presence")
		}
	}
	return nil
}

// presenceOf picks in_transit over assigned; within a status the earliest
// planned start wins. active must be ordered by planned start.
func presenceOf(active []models.Assignment) (enums.UserStatus, *uuid.UUID) {
	var assigned *uuid.UUID
	for i := range active {
		a := active[i]
		switch a.Status {
		case enums.AssignmentStatusInTransit:
			id := a.ID
			return enums.UserStatusInTransit, &id
		case enums.AssignmentStatusAssigned:
			if assigned == nil {
				id := a.ID
				assigned = &id
			}
		}
	}
	if assigned != nil {
		return enums.UserStatusAssigned, assigned
	}
	return enums.UserStatusFree, nil
}

func (s *service) ensureUsers(ctx context.Context, ids []uuid.UUID) error {
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return persistenceError(err, "load users")
	}
	known := make(map[uuid.UUID]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown users").
			WithDetails(map[string]any{"user_ids": missing})
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, persistenceError(err, "load assignment")
	}
	return assignment, nil
}

func (s *service) lock(ctx context.Context, id uuid.UUID) (locks.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, "assignment:"+id.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "assignment is busy, retry the request")
	}
	return unlock, nil
}

func (s *service) publish(ctx context.Context, eventType string, a *models.Assignment) {
	evt, err := events.New(eventType, a.ID, FromModel(a))
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "event_type", eventType), "event publish failed: "+err.Error())
	}
}

// normalizeMembers drops nil ids, the lead and duplicates, keeping first-seen order.
func normalizeMembers(lead uuid.UUID, members []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{lead: {}}
	out := make([]uuid.UUID, 0, len(members))
	for _, id := range members {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func union(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, list := range [][]uuid.UUID{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func stateConflict(from, to enums.AssignmentStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move assignment from %s to %s", from, to)).
		WithDetails(map[string]any{"status": from, "requested": to})
}

// persistenceError passes typed errors through and wraps everything else as retryable.
func persistenceError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, msg)
}
