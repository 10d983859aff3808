package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository reads vehicle presence samples. It never writes them.
type Repository interface {
	FirstDepartureAfter(ctx context.Context, vehicleID string, after time.Time) (*models.VehiclePresence, error)
	ReturnCandidates(ctx context.Context, vehicleID string, after time.Time, radiusKm float64) ([]models.VehiclePresence, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a telemetry repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FirstDepartureAfter returns the earliest away-from-base sample strictly after the
// reference, or nil when there is none.
func (r *repository) FirstDepartureAfter(ctx context.Context, vehicleID string, after time.Time) (*models.VehiclePresence, error) {
	var sample models.VehiclePresence
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND detected_at > ? AND near_base = ?", vehicleID, after, false).
		Order("detected_at ASC").
		Order("id ASC").
		Take(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// ReturnCandidates lists at-base samples (flagged, or within radiusKm) detected
// after the given time, oldest first.
func (r *repository) ReturnCandidates(ctx context.Context, vehicleID string, after time.Time, radiusKm float64) ([]models.VehiclePresence, error) {
	var samples []models.VehiclePresence
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND detected_at > ?", vehicleID, after).
		Where(r.db.Where("near_base = ?", true).Or("distance_from_base_km < ?", radiusKm)).
		Order("detected_at ASC").
		Order("id ASC").
		Limit(returnCandidateLimit).
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}

const returnCandidateLimit = 50
