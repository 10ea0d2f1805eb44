package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// RosterProvider supplies handler membership, load and availability.
type RosterProvider interface {
	ListByCategory(ctx context.Context, category domain.Category) ([]domain.Handler, error)
	GetByID(ctx context.Context, id string) (*domain.Handler, error)
}

// AssignmentService picks handlers for new tickets and validates explicit
// reassignment targets.
type AssignmentService struct {
	roster RosterProvider
	pick   func(n int) int
}

// AssignmentOption customizes an AssignmentService.
type AssignmentOption func(*AssignmentService)

// WithPicker replaces the uniform random index picker. pick must return a
// value in [0, n).
func WithPicker(pick func(n int) int) AssignmentOption {
	return func(s *AssignmentService) {
		s.pick = pick
	}
}

// NewAssignmentService creates the service.
func NewAssignmentService(roster RosterProvider, opts ...AssignmentOption) *AssignmentService {
	s := &AssignmentService{roster: roster, pick: rand.IntN}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoAssign picks uniformly among category handlers with spare capacity,
// falling back to all category handlers when every one is full. It fails
// with ErrNoHandlers only when the category has no handlers at all.
func (s *AssignmentService) AutoAssign(ctx context.Context, category domain.Category) (*domain.Handler, error) {
	candidates, err := s.CategoryHandlers(ctx, category)
	if err != nil {
		return nil, err
	}
	return s.Choose(category, candidates)
}

// CategoryHandlers returns the roster entries with the HANDLER role tagged
// for category.
func (s *AssignmentService) CategoryHandlers(ctx context.Context, category domain.Category) ([]domain.Handler, error) {
	handlers, err := s.roster.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h.Role == domain.RoleHandler {
			candidates = append(candidates, h)
		}
	}
	return candidates, nil
}

// Choose applies the selection policy of AutoAssign to an already loaded
// candidate list.
func (s *AssignmentService) Choose(category domain.Category, candidates []domain.Handler) (*domain.Handler, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: category %s", domain.ErrNoHandlers, category)
	}

	free := make([]domain.Handler, 0, len(candidates))
	for _, h := range candidates {
		if !h.AtCapacity() {
			free = append(free, h)
		}
	}
	pool := free
	if len(pool) == 0 {
		pool = candidates
	}

	chosen := pool[s.pick(len(pool))]
	return &chosen, nil
}

// ValidateReassignment loads the target handler and requires it to be AVAILABLE.
func (s *AssignmentService) ValidateReassignment(ctx context.Context, handlerID string) (*domain.Handler, error) {
	handler, err := s.roster.GetByID(ctx, handlerID)
	if err != nil {
		return nil, err
	}
	if handler.Availability != domain.AvailabilityAvailable {
		return nil, domain.ErrHandlerUnavailable.WithDetails(map[string]any{
			"handler_id":   handler.ID,
			"availability": handler.Availability,
		})
	}
	return handler, nil
}
