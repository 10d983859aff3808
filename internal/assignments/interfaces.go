package assignments

import (
	"context"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/fieldops-backend/pkg/db/types"
	"github.com/angelmondragon/fieldops-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for assignments and their participants.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	// TransitionStatus applies updates only while the row is in one of from. It
	// reports whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.AssignmentStatus, updates map[string]any) (bool, error)
	UpdateRoute(ctx context.Context, id uuid.UUID, stopIDs dbtypes.UUIDArray, km float64, minutes int, method enums.RouteMethod) (bool, error)
	ReplaceParticipants(ctx context.Context, id, leadID uuid.UUID, memberIDs []uuid.UUID) error
	ActiveForUser(ctx context.Context, userID uuid.UUID) ([]models.Assignment, error)
	CountWorkLogs(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepository is the slice of the users repository the state machine needs.
// UpdatePresence is only ever called from this package.
type UserRepository interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	UpdatePresence(ctx context.Context, id uuid.UUID, status enums.UserStatus, current *uuid.UUID) error
}

// StoreLookup resolves stop ids to stores, preserving order.
type StoreLookup interface {
	FindByIDsOrdered(ctx context.Context, ids []uuid.UUID) ([]models.Store, []uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
