package assignments

import (
	"context"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/fieldops-backend/pkg/db/types"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns an assignments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the assignment together with its participant rows.
func (r *repository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&assignment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateRoute(ctx context.Context, id uuid.UUID, stopIDs dbtypes.UUIDArray, km float64, minutes int, method enums.RouteMethod) (bool, error) {
	return r.TransitionStatus(ctx, id, enums.ActiveAssignmentStatuses, map[string]any{
		"stop_ids":        stopIDs,
		"distance_km":     km,
		"driving_minutes": minutes,
		"route_method":    method,
	})
}

// ReplaceParticipants rewrites the participant rows. Callers run it inside a transaction.
func (r *repository) ReplaceParticipants(ctx context.Context, id, leadID uuid.UUID, memberIDs []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("assignment_id = ?", id).Delete(&models.AssignmentParticipant{}).Error; err != nil {
		return err
	}
	rows := participantRows(id, leadID, memberIDs)
	if err := db.Create(&rows).Error; err != nil {
		return err
	}
	return db.Model(&models.Assignment{}).
		Where("id = ?", id).
		Update("lead_user_id", leadID).Error
}

// ActiveForUser lists non-terminal assignments the user leads or joins, earliest first.
func (r *repository) ActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Assignment, error) {
	member := r.db.Model(&models.AssignmentParticipant{}).
		Select("assignment_id").
		Where("user_id = ?", userID)

	var rows []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("status IN ?", enums.ActiveAssignmentStatuses).
		Where(r.db.Where("lead_user_id = ?", userID).Or("id IN (?)", member)).
		Order("planned_start_at ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountWorkLogs(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WorkLog{}).
		Where("assignment_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("assignment_id = ?", id).Delete(&models.AssignmentParticipant{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Assignment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// participantRows places the lead at position 0 followed by members in order.
func participantRows(id, leadID uuid.UUID, memberIDs []uuid.UUID) []models.AssignmentParticipant {
	rows := []models.AssignmentParticipant{{
		AssignmentID: id,
		UserID:       leadID,
		Role:         enums.ParticipantRoleLead,
		Position:     0,
	}}
	for i, memberID := range memberIDs {
		rows = append(rows, models.AssignmentParticipant{
			AssignmentID: id,
			UserID:       memberID,
			Role:         enums.ParticipantRoleMember,
			Position:     i + 1,
		})
	}
	return rows
}
