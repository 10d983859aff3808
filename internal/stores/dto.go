package stores

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/fieldops-backend/pkg/db/models"
)

// CreateStoreDTO holds the data required to persist a store.
type CreateStoreDTO struct {
	Name    string
	Address string
	Lat     *float64
	Lng     *float64
}

func (dto CreateStoreDTO) ToModel() *models.Store {
	return &models.Store{
		Name:    dto.Name,
		Address: dto.Address,
		Lat:     dto.Lat,
		Lng:     dto.Lng,
	}
}

// StoreDTO exposes a routing stop in API responses.
type StoreDTO struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Lat     *float64  `json:"lat,omitempty"`
	Lng     *float64  `json:"lng,omitempty"`
}

func FromModel(s *models.Store) *StoreDTO {
	if s == nil {
		return nil
	}
	return &StoreDTO{ID: s.ID, Name: s.Name, Address: s.Address, Lat: s.Lat, Lng: s.Lng}
}
