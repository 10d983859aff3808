package worklog

import (
	"context"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UniqueConstraint backs the count guard against concurrent writers.
const UniqueConstraint = "work_logs_assignment_user_key"

// Repository manages persistence for work-log entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountByAssignment(ctx context.Context, assignmentID uuid.UUID) (int64, error)
	CreateBatch(ctx context.Context, entries []models.WorkLog) error
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.WorkLog, error)
	FinalizedAssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]models.Assignment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a work-log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CountByAssignment(ctx context.Context, assignmentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WorkLog{}).
		Where("assignment_id = ?", assignmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateBatch inserts every entry in a single statement.
func (r *repository) CreateBatch(ctx context.Context, entries []models.WorkLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.WorkLog, error) {
	var entries []models.WorkLog
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FinalizedAssignmentsForUser returns finalized assignments the user led or joined.
func (r *repository) FinalizedAssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]models.Assignment, error) {
	member := r.db.Model(&models.AssignmentParticipant{}).
		Select("assignment_id").
		Where("user_id = ?", userID)

	var rows []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.AssignmentStatusFinalized).
		Where(r.db.Where("lead_user_id = ?", userID).Or("id IN (?)", member)).
		Order("completed_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
