package worklog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/locks"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/worktime"
)

// Service records the per-user credit of finalized assignments and keeps the
// cached user totals in line with it.
type Service interface {
	RecordFinalization(ctx context.Context, input RecordInput) (RecordResult, error)
	RecomputeTotalHours(ctx context.Context, userID uuid.UUID) (float64, error)
	ResetAllTotals(ctx context.Context) (ResetSummary, error)
}

// UserDirectory is the slice of the users repository the ledger needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdateTotalHours(ctx context.Context, id uuid.UUID, hours float64) error
}

// RecordInput is everything needed to credit one finalized assignment.
type RecordInput struct {
	AssignmentID   uuid.UUID
	AssignmentType enums.AssignmentType
	LeadUserID     uuid.UUID
	MemberIDs      []uuid.UUID
	WorkDate       time.Time
	Hours          float64
	Kilometers     float64
}

// RecordResult reports what RecordFinalization wrote.
type RecordResult struct {
	Created  int
	Skipped  bool
	Warnings []*pkgerrors.Error
}

// ResetSummary reports a full totals rebuild.
type ResetSummary struct {
	Users  int `json:"users"`
	Failed int `json:"failed"`
}

type service struct {
	repo   Repository
	users  UserDirectory
	locker locks.Locker
	logg   *logger.Logger
}

// NewService wires the work-log ledger. A nil locker falls back to an in-process one.
func NewService(repo Repository, users UserDirectory, locker locks.Locker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("worklog repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	return &service{repo: repo, users: users, locker: locker, logg: logg}, nil
}

func (s *service) RecordFinalization(ctx context.Context, input RecordInput) (RecordResult, error) {
	if input.AssignmentID == uuid.Nil {
		return RecordResult{}, pkgerrors.New(pkgerrors.CodeValidation, "assignment id is required")
	}
	if input.LeadUserID == uuid.Nil {
		return RecordResult{}, pkgerrors.New(pkgerrors.CodeValidation, "lead user id is required")
	}
	if input.Hours < 0 || input.Kilometers < 0 {
		return RecordResult{}, pkgerrors.New(pkgerrors.CodeValidation, "hours and kilometers must be non-negative")
	}

	existing, err := s.repo.CountByAssignment(ctx, input.AssignmentID)
	if err != nil {
		return RecordResult{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count work logs")
	}
	if existing > 0 {
		return RecordResult{Skipped: true}, nil
	}

	participants := participantsOf(input.LeadUserID, input.MemberIDs)
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.userID)
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return RecordResult{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load participants")
	}
	known := make(map[uuid.UUID]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}

	var (
		result  RecordResult
		entries = make([]models.WorkLog, 0, len(participants))
		day     = dateOnly(input.WorkDate)
	)
	for _, p := range participants {
		if _, ok := known[p.userID]; !ok {
			result.Warnings = append(result.Warnings, partialCredit(input.AssignmentID, p.userID))
			if s.logg != nil {
				ctx := s.logg.WithFields(ctx, map[string]any{
					"assignment_id": input.AssignmentID.String(),
					"user_id":       p.userID.String(),
				})
				s.logg.Warn(ctx, "work log skipped for missing participant")
			}
			continue
		}
		entries = append(entries, models.WorkLog{
			UserID:       p.userID,
			AssignmentID: input.AssignmentID,
			WorkDate:     day,
			Hours:        input.Hours,
			Kilometers:   input.Kilometers,
			Description:  Description(input.AssignmentType, p.role),
		})
	}

	if err := s.repo.CreateBatch(ctx, entries); err != nil {
		if db.IsUniqueViolation(err, "") {
			return RecordResult{Skipped: true}, nil
		}
		return RecordResult{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "insert work logs")
	}
	result.Created = len(entries)
	return result, nil
}

func (s *service) RecomputeTotalHours(ctx context.Context, userID uuid.UUID) (float64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	unlock, err := s.locker.Lock(ctx, "totals:"+userID.String())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "acquire totals lock")
	}
	defer unlock()

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load user")
	}

	finalized, err := s.repo.FinalizedAssignmentsForUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list finalized assignments")
	}
	var total float64
	for i := range finalized {
		total += CreditedHours(&finalized[i])
	}

	if err := s.users.UpdateTotalHours(ctx, userID, total); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update total hours")
	}
	return total, nil
}

func (s *service) ResetAllTotals(ctx context.Context) (ResetSummary, error) {
	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return ResetSummary{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list users")
	}

	var (
		summary = ResetSummary{Users: len(ids)}
		errs    error
	)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.Failed += len(ids) - i
			errs = multierr.Append(errs, err)
			break
		}
		if _, err := s.RecomputeTotalHours(ctx, id); err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", id, err))
		}
	}
	return summary, errs
}

// CreditedHours is what a finalized assignment contributes to each participant's total.
func CreditedHours(a *models.Assignment) float64 {
	start := a.PlannedStartAt
	if a.RealStartAt != nil {
		start = *a.RealStartAt
	}
	completed := a.CompletedAt
	if a.RealCompletedAt != nil {
		completed = a.RealCompletedAt
	}
	if completed == nil || start.IsZero() {
		return a.WorkedHours
	}
	return worktime.Hours(start, *completed)
}

// Description is the human-readable label stored on each entry.
func Description(t enums.AssignmentType, role enums.ParticipantRole) string {
	label := "team member"
	if role == enums.ParticipantRoleLead {
		label = "team lead"
	}
	return fmt.Sprintf("%s assignment: %s", t, label)
}

type participant struct {
	userID uuid.UUID
	role   enums.ParticipantRole
}

func participantsOf(lead uuid.UUID, members []uuid.UUID) []participant {
	out := []participant{{userID: lead, role: enums.ParticipantRoleLead}}
	seen := map[uuid.UUID]struct{}{lead: {}}
	for _, id := range members {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, participant{userID: id, role: enums.ParticipantRoleMember})
	}
	return out
}

func partialCredit(assignmentID, userID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodePartialCredit, "participant no longer exists").
		WithDetails(map[string]string{
			"assignment_id": assignmentID.String(),
			"user_id":       userID.String(),
		})
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
