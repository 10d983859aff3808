package stores

import (
	"context"
	"testing"

	"github.com/angelmondragon/fieldops-backend/pkg/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByIDsOrderedKeepsRequestOrder(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	lat, lng := 44.43, 26.10
	a, err := repo.Create(ctx, CreateStoreDTO{Name: "A", Address: "Str. A 1", Lat: &lat, Lng: &lng})
	require.NoError(t, err)
	b, err := repo.Create(ctx, CreateStoreDTO{Name: "B", Address: "Str. B 2"})
	require.NoError(t, err)
	unknown := uuid.New()

	ordered, missing, err := repo.FindByIDsOrdered(ctx, []uuid.UUID{b.ID, unknown, a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, b.ID, ordered[0].ID)
	assert.Equal(t, a.ID, ordered[1].ID)
	assert.Equal(t, b.ID, ordered[2].ID)
	assert.Equal(t, []uuid.UUID{unknown}, missing)
	require.NotNil(t, ordered[1].Lat)
	assert.Equal(t, 44.43, *ordered[1].Lat)
	assert.Nil(t, ordered[0].Lat)
}
