package models

import "time"

// VehiclePresence is one GPS sample from the telemetry feed. Read-only here.
type VehiclePresence struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VehicleID          string    `gorm:"column:vehicle_id;not null"`
	DetectedAt         time.Time `gorm:"column:detected_at;not null"`
	DistanceFromBaseKm float64   `gorm:"column:distance_from_base_km;not null"`
	NearBase           bool      `gorm:"column:near_base;not null"`
}

func (VehiclePresence) TableName() string {
	return "vehicle_presence"
}
