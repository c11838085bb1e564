package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceCategory is the closed set of service categories offered on the marketplace
type ServiceCategory string

const (
	ServiceCategoryGrassCutting ServiceCategory = "GRASS_CUTTING"
	ServiceCategoryAirconRepair ServiceCategory = "AIRCON_REPAIR"
	ServiceCategoryCleaning     ServiceCategory = "CLEANING"
	ServiceCategoryHaircut      ServiceCategory = "HAIRCUT"
)

// AllServiceCategories lists every category in display order
var AllServiceCategories = []ServiceCategory{
	ServiceCategoryGrassCutting,
	ServiceCategoryAirconRepair,
	ServiceCategoryCleaning,
	ServiceCategoryHaircut,
}

// IsValid reports whether c is a known category
func (c ServiceCategory) IsValid() bool {
	for _, known := range AllServiceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Service is an offering owned by exactly one provider.
// DurationMinutes is the slot length used for availability.
type Service struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	ProviderID      uuid.UUID       `db:"provider_id" json:"provider_id"`
	Title           string          `db:"title" json:"title"`
	Category        ServiceCategory `db:"category" json:"category"`
	BasePrice       string          `db:"base_price" json:"base_price"` // DECIMAL as string
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Duration returns the slot length of the service
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// CreateServiceRequest is the body of POST /services
type CreateServiceRequest struct {
	Title           string `json:"title" binding:"required"`
	Category        string `json:"category" binding:"required"`
	BasePrice       string `json:"base_price" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
}

// UpdateServiceRequest is the body of PUT /services/:id
type UpdateServiceRequest struct {
	Title           *string `json:"title"`
	Category        *string `json:"category"`
	BasePrice       *string `json:"base_price"`
	DurationMinutes *int    `json:"duration_minutes"`
	IsActive        *bool   `json:"is_active"`
}
