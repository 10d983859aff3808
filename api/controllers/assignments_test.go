package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fieldops-backend/internal/assignments"
	"github.com/angelmondragon/fieldops-backend/internal/routing"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/worktime"
)

type stubAssignmentService struct {
	assignment *models.Assignment
	finalize   *assignments.FinalizeResult
	route      *routing.Route
	err        error

	dispatchInput    assignments.DispatchInput
	finalizeInput    assignments.FinalizeInput
	recalculateInput assignments.RecalculateInput
	deleted          uuid.UUID
}

func (s *stubAssignmentService) Dispatch(_ context.Context, input assignments.DispatchInput) (*models.Assignment, error) {
	s.dispatchInput = input
	return s.assignment, s.err
}

func (s *stubAssignmentService) Start(context.Context, uuid.UUID, assignments.StartInput) (*models.Assignment, error) {
	return s.assignment, s.err
}

func (s *stubAssignmentService) Finalize(_ context.Context, _ uuid.UUID, input assignments.FinalizeInput) (*assignments.FinalizeResult, error) {
	s.finalizeInput = input
	return s.finalize, s.err
}

func (s *stubAssignmentService) Cancel(context.Context, uuid.UUID) (*models.Assignment, error) {
	return s.assignment, s.err
}

func (s *stubAssignmentService) RecalculateRoute(_ context.Context, _ uuid.UUID, input assignments.RecalculateInput) (*routing.Route, error) {
	s.recalculateInput = input
	return s.route, s.err
}

func (s *stubAssignmentService) UpdateTeam(context.Context, uuid.UUID, assignments.TeamInput) (*models.Assignment, error) {
	return s.assignment, s.err
}

func (s *stubAssignmentService) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleAssignment(status enums.AssignmentStatus) *models.Assignment {
	return &models.Assignment{
		ID:             uuid.New(),
		Type:           enums.AssignmentTypeIntervention,
		Status:         status,
		LeadUserID:     uuid.New(),
		PlannedStartAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAssignmentDispatchCreated(t *testing.T) {
	a := sampleAssignment(enums.AssignmentStatusAssigned)
	svc := &stubAssignmentService{assignment: a}
	stop := uuid.New()
	body := `{"type":"intervention","stop_ids":["` + stop.String() + `"],"lead_user_id":"` + a.LeadUserID.String() + `","planned_start_at":"2024-03-01T09:00:00Z"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AssignmentDispatch(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, enums.AssignmentTypeIntervention, svc.dispatchInput.Type)
	assert.Equal(t, []uuid.UUID{stop}, svc.dispatchInput.StopIDs)

	var envelope struct {
		Data assignments.AssignmentDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, a.ID, envelope.Data.ID)
	assert.Equal(t, enums.AssignmentStatusAssigned, envelope.Data.Status)
}

func TestAssignmentDispatchValidation(t *testing.T) {
	cases := map[string]string{
		"unknown type":  `{"type":"party","stop_ids":["` + uuid.NewString() + `"],"lead_user_id":"` + uuid.NewString() + `","planned_start_at":"2024-03-01T09:00:00Z"}`,
		"no stops":      `{"type":"opening","stop_ids":[],"lead_user_id":"` + uuid.NewString() + `","planned_start_at":"2024-03-01T09:00:00Z"}`,
		"missing lead":  `{"type":"opening","stop_ids":["` + uuid.NewString() + `"],"planned_start_at":"2024-03-01T09:00:00Z"}`,
		"unknown field": `{"type":"opening","stop_ids":["` + uuid.NewString() + `"],"lead_user_id":"` + uuid.NewString() + `","planned_start_at":"2024-03-01T09:00:00Z","priority":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubAssignmentService{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/assignments", strings.NewReader(body))
			rec := httptest.NewRecorder()
			AssignmentDispatch(svc, nil).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, rec))
		})
	}
}

func TestAssignmentFinalizeWithoutBody(t *testing.T) {
	a := sampleAssignment(enums.AssignmentStatusFinalized)
	svc := &stubAssignmentService{finalize: &assignments.FinalizeResult{
		Assignment:      a,
		WorkLogsCreated: 3,
		UsedGPS:         true,
		HoursSource:     worktime.SourceGPS,
	}}

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/assignments/x/finalize", nil), "assignmentId", a.ID.String())
	rec := httptest.NewRecorder()
	AssignmentFinalize(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.finalizeInput.DistanceKm)

	var envelope struct {
		Data assignments.FinalizeResultDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.WorkLogsCreated)
	assert.True(t, envelope.Data.UsedGPS)
	assert.False(t, envelope.Data.AlreadyFinalized)
}

func TestAssignmentFinalizePassesClientFallbacks(t *testing.T) {
	a := sampleAssignment(enums.AssignmentStatusFinalized)
	svc := &stubAssignmentService{finalize: &assignments.FinalizeResult{
		Assignment: a,
		Warnings:   []*pkgerrors.Error{pkgerrors.New(pkgerrors.CodePartialCredit, "member missing")},
	}}

	body := `{"completed_at":"2024-03-01T12:30:00Z","distance_km":42.5,"driving_minutes":50}`
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body)), "assignmentId", a.ID.String())
	rec := httptest.NewRecorder()
	AssignmentFinalize(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.finalizeInput.DistanceKm)
	assert.Equal(t, 42.5, *svc.finalizeInput.DistanceKm)
	require.NotNil(t, svc.finalizeInput.DrivingMinutes)
	assert.Equal(t, 50, *svc.finalizeInput.DrivingMinutes)
	require.NotNil(t, svc.finalizeInput.CompletedAt)
	assert.True(t, svc.finalizeInput.CompletedAt.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)))
	assert.Contains(t, rec.Body.String(), string(pkgerrors.CodePartialCredit))
}

func TestAssignmentFinalizeRejectsNegativeDistance(t *testing.T) {
	svc := &stubAssignmentService{}
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"distance_km":-1}`)), "assignmentId", uuid.NewString())
	rec := httptest.NewRecorder()
	AssignmentFinalize(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentFinalizeInvalidID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", nil), "assignmentId", "not-a-uuid")
	rec := httptest.NewRecorder()
	AssignmentFinalize(&stubAssignmentService{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		handler func(assignments.Service) http.HandlerFunc
	}{
		{"finalize not found", pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found"), http.StatusNotFound, func(s assignments.Service) http.HandlerFunc { return AssignmentFinalize(s, nil) }},
		{"finalize cancelled", pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled"), http.StatusUnprocessableEntity, func(s assignments.Service) http.HandlerFunc { return AssignmentFinalize(s, nil) }},
		{"finalize busy", pkgerrors.New(pkgerrors.CodePersistence, "assignment is busy"), http.StatusServiceUnavailable, func(s assignments.Service) http.HandlerFunc { return AssignmentFinalize(s, nil) }},
		{"start finalized", pkgerrors.New(pkgerrors.CodeStateConflict, "finalized"), http.StatusUnprocessableEntity, func(s assignments.Service) http.HandlerFunc { return AssignmentStart(s, nil) }},
		{"cancel finalized", pkgerrors.New(pkgerrors.CodeStateConflict, "finalized"), http.StatusUnprocessableEntity, func(s assignments.Service) http.HandlerFunc { return AssignmentCancel(s, nil) }},
		{"delete with logs", pkgerrors.New(pkgerrors.CodeConflict, "has work logs"), http.StatusConflict, func(s assignments.Service) http.HandlerFunc { return AssignmentDelete(s, nil) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAssignmentService{err: tc.err}
			req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", nil), "assignmentId", uuid.NewString())
			rec := httptest.NewRecorder()
			tc.handler(svc).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAssignmentStartAndCancel(t *testing.T) {
	a := sampleAssignment(enums.AssignmentStatusInTransit)
	svc := &stubAssignmentService{assignment: a}

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"started_at":"2024-03-01T09:05:00Z"}`)), "assignmentId", a.ID.String())
	rec := httptest.NewRecorder()
	AssignmentStart(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"in_transit"`)

	svc.assignment = sampleAssignment(enums.AssignmentStatusCancelled)
	req = withURLParam(httptest.NewRequest(http.MethodPost, "/x", nil), "assignmentId", a.ID.String())
	rec = httptest.NewRecorder()
	AssignmentCancel(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestAssignmentRecalculateRoute(t *testing.T) {
	id := uuid.New()
	stops := []uuid.UUID{uuid.New(), uuid.New()}
	svc := &stubAssignmentService{route: &routing.Route{
		TotalDistanceKm:  12.4,
		TotalDurationMin: 20,
		Method:           enums.RouteMethodDirect,
	}}

	body := `{"stop_ids":["` + stops[0].String() + `","` + stops[1].String() + `"]}`
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body)), "assignmentId", id.String())
	rec := httptest.NewRecorder()
	AssignmentRecalculateRoute(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stops, svc.recalculateInput.StopIDs)
	assert.Contains(t, rec.Body.String(), id.String())
}

func TestAssignmentUpdateTeamRequiresLead(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodPut, "/x", strings.NewReader(`{"member_ids":[]}`)), "assignmentId", uuid.NewString())
	rec := httptest.NewRecorder()
	AssignmentUpdateTeam(&stubAssignmentService{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentDelete(t *testing.T) {
	id := uuid.New()
	svc := &stubAssignmentService{}
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/x", nil), "assignmentId", id.String())
	rec := httptest.NewRecorder()
	AssignmentDelete(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, svc.deleted)
}
