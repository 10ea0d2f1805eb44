package domain

import (
	"slices"
	"time"
)

// Availability reports whether a handler accepts explicit reassignment.
type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityOffline   Availability = "OFFLINE"
)

// IsValid reports whether a is a known availability.
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// Handler models a roster entry: a support agent or a supervisor.
type Handler struct {
	ID           string
	Name         string
	Team         string
	Role         Role
	Categories   []Category
	Capacity     int
	ActiveLoad   int
	Availability Availability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AtCapacity reports whether the handler already carries its maximum load.
// A non-positive capacity means unlimited.
func (h Handler) AtCapacity() bool {
	return h.Capacity > 0 && h.ActiveLoad >= h.Capacity
}

// Handles reports whether the handler is tagged for the category.
func (h Handler) Handles(c Category) bool {
	return slices.Contains(h.Categories, c)
}
