package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// UpsertHandlerRequest payload.
type UpsertHandlerRequest struct {
	Name         string              `json:"name"`
	Team         string              `json:"team"`
	Role         domain.Role         `json:"role"`
	Categories   []domain.Category   `json:"categories"`
	Capacity     *int                `json:"capacity"`
	Availability domain.Availability `json:"availability"`
}

// AvailabilityRequest payload.
type AvailabilityRequest struct {
	Availability domain.Availability `json:"availability"`
}

// HandlerResponse represents a roster entry.
type HandlerResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Team         string              `json:"team"`
	Role         domain.Role         `json:"role"`
	Categories   []domain.Category   `json:"categories"`
	Capacity     int                 `json:"capacity"`
	ActiveLoad   int                 `json:"active_load"`
	Availability domain.Availability `json:"availability"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
