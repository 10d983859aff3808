package assignments

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fieldops-backend/internal/geocoding"
	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/internal/stores"
	"github.com/angelmondragon/fieldops-backend/internal/telemetry"
	"github.com/angelmondragon/fieldops-backend/internal/users"
	"github.com/angelmondragon/fieldops-backend/internal/worklog"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/events"
	"github.com/angelmondragon/fieldops-backend/pkg/geo"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
)

var (
	depot = geo.Coordinates{Lat: 44.4268, Lng: 26.1025}
	now   = time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	repo     Repository
	users    *users.Repository
	stores   *stores.Repository
	worklogs worklog.Repository
	ledger   worklog.Service
	events   *recordingPublisher
	metrics  *metrics.AssignmentMetrics
	deps     Deps
	svc      Service
}

type option func(*Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	userRepo := users.NewRepository(conn)
	storeRepo := stores.NewRepository(conn)
	worklogRepo := worklog.NewRepository(conn)
	ledger, err := worklog.NewService(worklogRepo, userRepo, nil, logg)
	require.NoError(t, err)
	reconciler, err := telemetry.NewReconciler(telemetry.NewRepository(conn), 6, logg)
	require.NoError(t, err)
	calc, err := routing.NewCalculator(routing.Params{
		Geocoder: geocoding.NewChain(logg, nil),
		Depot:    routing.Stop{Label: "depot", Coordinates: &depot},
		Logger:   logg,
	})
	require.NoError(t, err)

	f := &fixture{
		db:       conn,
		repo:     NewRepository(conn),
		users:    userRepo,
		stores:   storeRepo,
		worklogs: worklogRepo,
		ledger:   ledger,
		events:   &recordingPublisher{},
		metrics:  metrics.NewAssignmentMetrics(prometheus.NewRegistry()),
	}
	f.deps = Deps{
		Repo:       f.repo,
		Tx:         db.Wrap(conn),
		Users:      userRepo,
		Stores:     storeRepo,
		Ledger:     ledger,
		Reconciler: reconciler,
		Routes:     calc,
		Events:     f.events,
		Metrics:    f.metrics,
		Logger:     logg,
		Clock:      func() time.Time { return now },
	}
	for _, opt := range opts {
		opt(&f.deps)
	}
	f.svc, err = NewService(f.deps)
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), users.CreateUserDTO{Name: name})
	require.NoError(t, err)
	return u
}

func (f *fixture) store(t *testing.T, name string, c *geo.Coordinates) *models.Store {
	t.Helper()
	dto := stores.CreateStoreDTO{Name: name, Address: name + " street 1"}
	if c != nil {
		dto.Lat, dto.Lng = &c.Lat, &c.Lng
	}
	s, err := f.stores.Create(context.Background(), dto)
	require.NoError(t, err)
	return s
}

func (f *fixture) sample(t *testing.T, vehicle string, when time.Time, km float64, nearBase bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.VehiclePresence{
		VehicleID:          vehicle,
		DetectedAt:         when,
		DistanceFromBaseKm: km,
		NearBase:           nearBase,
	}).Error)
}

func (f *fixture) dispatch(t *testing.T, in DispatchInput) *models.Assignment {
	t.Helper()
	a, err := f.svc.Dispatch(context.Background(), in)
	require.NoError(t, err)
	return a
}

func (f *fixture) workLogs(t *testing.T, id uuid.UUID) []models.WorkLog {
	t.Helper()
	entries, err := f.worklogs.ListByAssignment(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func (f *fixture) reloadUser(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestFinalizeHappyPathUsesGPSWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	member := f.user(t, "member")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	a := f.dispatch(t, DispatchInput{
		Type:           enums.AssignmentTypeIntervention,
		StopIDs:        []uuid.UUID{stop.ID},
		LeadUserID:     lead.ID,
		MemberIDs:      []uuid.UUID{member.ID},
		PlannedStartAt: at(8, 0),
		VehicleID:      strPtr("B-01-XYZ"),
	})
	assert.Equal(t, enums.UserStatusAssigned, f.reloadUser(t, lead.ID).Status)

	f.sample(t, "B-01-XYZ", at(7, 30), 0.1, true)
	f.sample(t, "B-01-XYZ", at(9, 5), 40, false)
	f.sample(t, "B-01-XYZ", at(12, 0), 60, false)
	f.sample(t, "B-01-XYZ", at(14, 50), 2, true)

	_, err := f.svc.Start(ctx, a.ID, StartInput{StartedAt: ptr(at(8, 0))})
	require.NoError(t, err)
	assert.Equal(t, enums.UserStatusInTransit, f.reloadUser(t, member.ID).Status)

	res, err := f.svc.Finalize(ctx, a.ID, FinalizeInput{})
	require.NoError(t, err)
	assert.False(t, res.AlreadyFinalized)
	assert.True(t, res.UsedGPS)
	assert.Equal(t, 2, res.WorkLogsCreated)

	got := res.Assignment
	assert.Equal(t, enums.AssignmentStatusFinalized, got.Status)
	require.NotNil(t, got.RealStartAt)
	require.NotNil(t, got.RealCompletedAt)
	assert.True(t, got.RealStartAt.Equal(at(9, 5)))
	assert.True(t, got.RealCompletedAt.Equal(at(14, 50)))
	assert.Equal(t, 6.0, got.WorkedHours)
	require.NotNil(t, got.CompletedAt)
	assert.Greater(t, got.DistanceKm, 0.0)
	require.NotNil(t, got.RouteMethod)
	assert.Equal(t, enums.RouteMethodDirect, *got.RouteMethod)

	entries := f.workLogs(t, a.ID)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 6.0, e.Hours)
		assert.Equal(t, got.DistanceKm, e.Kilometers)
	}

	for _, id := range []uuid.UUID{lead.ID, member.ID} {
		u := f.reloadUser(t, id)
		assert.Equal(t, enums.UserStatusFree, u.Status)
		assert.Nil(t, u.CurrentAssignmentID)
		assert.Equal(t, 6.0, u.TotalHours)
	}
	assert.Equal(t, []string{
		events.TypeAssignmentDispatched,
		events.TypeAssignmentStarted,
		events.TypeAssignmentFinalized,
	}, f.events.types())
}

func TestFinalizeWithoutGPSUsesOperatorDates(t *testing.T) {
	f := newFixture(t)
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	a := f.dispatch(t, DispatchInput{
		StopIDs:        []uuid.UUID{stop.ID},
		LeadUserID:     lead.ID,
		PlannedStartAt: at(8, 0),
	})

	res, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{CompletedAt: ptr(at(12, 30))})
	require.NoError(t, err)
	assert.False(t, res.UsedGPS)
	assert.Equal(t, "client", string(res.HoursSource))
	assert.Equal(t, 5.0, res.Assignment.WorkedHours)
	assert.Nil(t, res.Assignment.RealStartAt)
	assert.True(t, res.Assignment.CompletedAt.Equal(at(12, 30)))
	assert.Equal(t, 5.0, f.reloadUser(t, lead.ID).TotalHours)
}

func TestFinalizeDuplicateCallsWriteOneLedger(t *testing.T) {
	f := newFixture(t)
	lead := f.user(t, "lead")
	m1 := f.user(t, "m1")
	m2 := f.user(t, "m2")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	a := f.dispatch(t, DispatchInput{
		StopIDs:        []uuid.UUID{stop.ID},
		LeadUserID:     lead.ID,
		MemberIDs:      []uuid.UUID{m1.ID, m2.ID},
		PlannedStartAt: at(8, 0),
	})

	var (
		wg      sync.WaitGroup
		results = make([]*FinalizeResult, 2)
		errs    = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Finalize(context.Background(), a.ID, FinalizeInput{CompletedAt: ptr(at(11, 0))})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	already := 0
	created := 0
	for _, r := range results {
		if r.AlreadyFinalized {
			already++
		}
		created += r.WorkLogsCreated
	}
	assert.Equal(t, 1, already)
	assert.Equal(t, 3, created)
	assert.Len(t, f.workLogs(t, a.ID), 3)

	third, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{})
	require.NoError(t, err)
	assert.True(t, third.AlreadyFinalized)
	assert.Zero(t, third.WorkLogsCreated)
	assert.Len(t, f.workLogs(t, a.ID), 3)
	assert.Equal(t, 3.0, f.reloadUser(t, m2.ID).TotalHours)
}

type failingLedger struct {
	worklog.Service
	failures int
}

func (l *failingLedger) RecordFinalization(ctx context.Context, in worklog.RecordInput) (worklog.RecordResult, error) {
	if l.failures > 0 {
		l.failures--
		return worklog.RecordResult{}, pkgerrors.Wrap(pkgerrors.CodePersistence, errors.New("connection reset"), "insert work logs")
	}
	return l.Service.RecordFinalization(ctx, in)
}

func TestFinalizeRetryRepairsMissingLedger(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Ledger = &failingLedger{Service: d.Ledger, failures: 1}
	})
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})
	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, PlannedStartAt: at(8, 0)})

	_, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{CompletedAt: ptr(at(9, 30))})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Empty(t, f.workLogs(t, a.ID))

	res, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{})
	require.NoError(t, err)
	assert.True(t, res.AlreadyFinalized)
	assert.Equal(t, 1, res.WorkLogsCreated)
	assert.Equal(t, 2.0, res.Assignment.WorkedHours)
	assert.Equal(t, enums.UserStatusFree, f.reloadUser(t, lead.ID).Status)
}

type brokenReconciler struct{}

func (brokenReconciler) Reconcile(context.Context, string, time.Time) (telemetry.Reconciliation, error) {
	return telemetry.Reconciliation{}, pkgerrors.New(pkgerrors.CodePersistence, "telemetry down")
}

func TestFinalizeTreatsGPSFailureAsNoGPS(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Reconciler = brokenReconciler{} })
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})
	a := f.dispatch(t, DispatchInput{
		StopIDs:        []uuid.UUID{stop.ID},
		LeadUserID:     lead.ID,
		PlannedStartAt: at(8, 0),
		VehicleID:      strPtr("B-02-ABC"),
	})

	res, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{CompletedAt: ptr(at(10, 0))})
	require.NoError(t, err)
	assert.False(t, res.UsedGPS)
	assert.Equal(t, 2.0, res.Assignment.WorkedHours)
}

func TestFinalizeFallsBackToClientDistance(t *testing.T) {
	f := newFixture(t)
	lead := f.user(t, "lead")
	// No coordinates and no geocoder: only the depot is usable.
	stop := f.store(t, "Nowhere", nil)
	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, PlannedStartAt: at(8, 0)})

	km := 37.5
	minutes := 45
	res, err := f.svc.Finalize(context.Background(), a.ID, FinalizeInput{DistanceKm: &km, DrivingMinutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, 37.5, res.Assignment.DistanceKm)
	assert.Equal(t, 45, res.Assignment.DrivingMinutes)
	assert.Nil(t, res.Assignment.RouteMethod)
	// 08:00 plus 45 driving minutes.
	assert.Equal(t, "driving_estimate", string(res.HoursSource))
	assert.Equal(t, 1.0, res.Assignment.WorkedHours)
}

func TestFinalizeRejectsNegativeClientValues(t *testing.T) {
	f := newFixture(t)
	km := -1.0
	_, err := f.svc.Finalize(context.Background(), uuid.New(), FinalizeInput{DistanceKm: &km})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFinalizeUnknownAssignment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Finalize(context.Background(), uuid.New(), FinalizeInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStatusIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, PlannedStartAt: at(8, 0)})
	_, err := f.svc.Finalize(ctx, a.ID, FinalizeInput{CompletedAt: ptr(at(9, 0))})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, a.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.Start(ctx, a.ID, StartInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.RecalculateRoute(ctx, a.ID, RecalculateInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	b := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, PlannedStartAt: at(10, 0)})
	cancelled, err := f.svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := f.svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusCancelled, again.Status)

	_, err = f.svc.Finalize(ctx, b.ID, FinalizeInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.workLogs(t, b.ID))
	assert.Equal(t, enums.UserStatusFree, f.reloadUser(t, lead.ID).Status)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})
	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, PlannedStartAt: at(8, 0)})

	first, err := f.svc.Start(ctx, a.ID, StartInput{})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusInTransit, first.Status)
	assert.True(t, first.PlannedStartAt.Equal(now))

	second, err := f.svc.Start(ctx, a.ID, StartInput{StartedAt: ptr(at(9, 0))})
	require.NoError(t, err)
	assert.Equal(t, enums.AssignmentStatusInTransit, second.Status)
	assert.True(t, second.PlannedStartAt.Equal(now))
}

func TestPresenceFollowsRemainingActiveAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tech := f.user(t, "tech")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	later := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: tech.ID, PlannedStartAt: at(13, 0)})
	earlier := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: tech.ID, PlannedStartAt: at(9, 0)})

	u := f.reloadUser(t, tech.ID)
	assert.Equal(t, enums.UserStatusAssigned, u.Status)
	require.NotNil(t, u.CurrentAssignmentID)
	assert.Equal(t, earlier.ID, *u.CurrentAssignmentID)

	_, err := f.svc.Start(ctx, later.ID, StartInput{StartedAt: ptr(at(13, 0))})
	require.NoError(t, err)
	u = f.reloadUser(t, tech.ID)
	assert.Equal(t, enums.UserStatusInTransit, u.Status)
	assert.Equal(t, later.ID, *u.CurrentAssignmentID)

	_, err = f.svc.Finalize(ctx, later.ID, FinalizeInput{CompletedAt: ptr(at(15, 0))})
	require.NoError(t, err)
	u = f.reloadUser(t, tech.ID)
	assert.Equal(t, enums.UserStatusAssigned, u.Status)
	assert.Equal(t, earlier.ID, *u.CurrentAssignmentID)
}

func TestDispatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", nil)

	cases := map[string]DispatchInput{
		"no stops":      {LeadUserID: lead.ID},
		"no lead":       {StopIDs: []uuid.UUID{stop.ID}},
		"unknown user":  {StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, MemberIDs: []uuid.UUID{uuid.New()}},
		"unknown store": {StopIDs: []uuid.UUID{uuid.New()}, LeadUserID: lead.ID},
		"bad type":      {Type: "party", StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Dispatch(ctx, in)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDispatchNormalizesMembers(t *testing.T) {
	f := newFixture(t)
	lead := f.user(t, "lead")
	m := f.user(t, "member")
	stop := f.store(t, "Ploiesti", nil)

	a := f.dispatch(t, DispatchInput{
		StopIDs:    []uuid.UUID{stop.ID},
		LeadUserID: lead.ID,
		MemberIDs:  []uuid.UUID{m.ID, lead.ID, m.ID, uuid.Nil},
	})
	loaded, err := f.repo.FindByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m.ID}, loaded.MemberIDs())
	assert.Equal(t, []uuid.UUID{lead.ID, m.ID}, loaded.ParticipantIDs())
	assert.True(t, loaded.PlannedStartAt.Equal(now))
}

func TestRecalculateRoutePersistsDistance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	a1 := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})
	b1 := f.store(t, "Brasov", &geo.Coordinates{Lat: 45.6427, Lng: 25.5887})
	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{a1.ID}, LeadUserID: lead.ID})

	route, err := f.svc.RecalculateRoute(ctx, a.ID, RecalculateInput{StopIDs: []uuid.UUID{a1.ID, b1.ID}})
	require.NoError(t, err)
	assert.Len(t, route.Segments, 3)
	assert.Equal(t, enums.RouteMethodDirect, route.Method)

	loaded, err := f.repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1.ID, b1.ID}, []uuid.UUID(loaded.StopIDs))
	assert.Equal(t, route.TotalDistanceKm, loaded.DistanceKm)
	assert.Equal(t, route.TotalDurationMin, loaded.DrivingMinutes)
}

func TestRecalculateRouteRejectsUnknownStops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})
	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID})
	unknown := uuid.New()

	route, err := f.svc.RecalculateRoute(ctx, a.ID, RecalculateInput{StopIDs: []uuid.UUID{stop.ID, unknown}})
	require.Error(t, err)
	assert.Nil(t, route)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, map[string]any{"stop_ids": []uuid.UUID{unknown}}, typed.Details())

	loaded, err := f.repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stop.ID}, []uuid.UUID(loaded.StopIDs))
}

func TestUpdateTeamAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.user(t, "lead")
	oldMember := f.user(t, "old")
	newMember := f.user(t, "new")
	stop := f.store(t, "Ploiesti", &geo.Coordinates{Lat: 44.9462, Lng: 26.0254})

	a := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID, MemberIDs: []uuid.UUID{oldMember.ID}})
	updated, err := f.svc.UpdateTeam(ctx, a.ID, TeamInput{LeadUserID: lead.ID, MemberIDs: []uuid.UUID{newMember.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{newMember.ID}, updated.MemberIDs())
	assert.Equal(t, enums.UserStatusFree, f.reloadUser(t, oldMember.ID).Status)
	assert.Equal(t, enums.UserStatusAssigned, f.reloadUser(t, newMember.ID).Status)

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	assert.Equal(t, enums.UserStatusFree, f.reloadUser(t, newMember.ID).Status)
	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, a.ID), pkgerrors.CodeNotFound))

	done := f.dispatch(t, DispatchInput{StopIDs: []uuid.UUID{stop.ID}, LeadUserID: lead.ID})
	_, err = f.svc.Finalize(ctx, done.ID, FinalizeInput{CompletedAt: ptr(at(17, 0))})
	require.NoError(t, err)

	_, err = f.svc.UpdateTeam(ctx, done.ID, TeamInput{LeadUserID: newMember.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, done.ID), pkgerrors.CodeConflict))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestPresenceOf(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	status, current := presenceOf(nil)
	assert.Equal(t, enums.UserStatusFree, status)
	assert.Nil(t, current)

	status, current = presenceOf([]models.Assignment{
		{ID: a, Status: enums.AssignmentStatusAssigned},
		{ID: b, Status: enums.AssignmentStatusInTransit},
	})
	assert.Equal(t, enums.UserStatusInTransit, status)
	assert.Equal(t, b, *current)
}

func ptr[T any](v T) *T { return &v }
