package stores

import (
	"context"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles store persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new store row.
func (r *Repository) Create(ctx context.Context, dto CreateStoreDTO) (*models.Store, error) {
	store := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		return nil, err
	}
	return store, nil
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByIDsOrdered loads stores in the order of ids. Unknown ids are returned
// separately; duplicates keep every occurrence.
func (r *Repository) FindByIDsOrdered(ctx context.Context, ids []uuid.UUID) ([]models.Store, []uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	var rows []models.Store
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	byID := make(map[uuid.UUID]models.Store, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	ordered := make([]models.Store, 0, len(ids))
	var missing []uuid.UUID
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, s)
	}
	return ordered, missing, nil
}
