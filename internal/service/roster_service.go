package service

import (
	"context"
	"strings"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// RosterService manages the handler roster used for assignment.
type RosterService struct {
	handlers        repository.HandlerRepository
	defaultCapacity int
}

// HandlerInput describes a roster entry to create or replace. A nil
// Capacity takes the configured default; zero means unlimited.
type HandlerInput struct {
	ID           string
	Name         string
	Team         string
	Role         domain.Role
	Categories   []domain.Category
	Capacity     *int
	Availability domain.Availability
}

// NewRosterService constructs the service.
func NewRosterService(cfg config.AssignmentConfig, handlers repository.HandlerRepository) *RosterService {
	return &RosterService{handlers: handlers, defaultCapacity: cfg.DefaultCapacity}
}

// UpsertHandler creates or replaces a roster entry.
func (s *RosterService) UpsertHandler(ctx context.Context, actor domain.Actor, input HandlerInput) (*domain.Handler, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}

	handler := &domain.Handler{
		ID:           strings.TrimSpace(input.ID),
		Name:         strings.TrimSpace(input.Name),
		Team:         strings.TrimSpace(input.Team),
		Role:         input.Role,
		Categories:   input.Categories,
		Capacity:     s.defaultCapacity,
		Availability: input.Availability,
	}
	if input.Capacity != nil {
		handler.Capacity = *input.Capacity
	}
	if handler.Role == "" {
		handler.Role = domain.RoleHandler
	}
	if handler.Availability == "" {
		handler.Availability = domain.AvailabilityAvailable
	}
	if err := validateHandler(handler); err != nil {
		return nil, err
	}

	if err := s.handlers.Upsert(ctx, handler); err != nil {
		return nil, err
	}
	return s.handlers.GetByID(ctx, handler.ID)
}

// SetAvailability changes whether a handler accepts explicit reassignment.
func (s *RosterService) SetAvailability(ctx context.Context, actor domain.Actor, handlerID string, availability domain.Availability) (*domain.Handler, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	if !availability.IsValid() {
		return nil, domain.ErrInvalidHandler.WithDetails(map[string]any{"availability": availability})
	}
	if err := s.handlers.SetAvailability(ctx, handlerID, availability); err != nil {
		return nil, err
	}
	return s.handlers.GetByID(ctx, handlerID)
}

// ListHandlers returns the roster with current load.
func (s *RosterService) ListHandlers(ctx context.Context, actor domain.Actor) ([]domain.Handler, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.handlers.List(ctx)
}

func validateHandler(h *domain.Handler) error {
	switch {
	case h.ID == "":
		return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "id"})
	case h.Name == "":
		return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "name"})
	case h.Role != domain.RoleHandler && h.Role != domain.RoleSupervisor:
		return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "role", "value": h.Role})
	case h.Capacity < 0:
		return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "capacity", "value": h.Capacity})
	case !h.Availability.IsValid():
		return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "availability", "value": h.Availability})
	}
	for _, c := range h.Categories {
		if !c.IsValid() {
			return domain.ErrInvalidHandler.WithDetails(map[string]any{"field": "categories", "value": c})
		}
	}
	return nil
}
