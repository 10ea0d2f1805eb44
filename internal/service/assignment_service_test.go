package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/domain"
)

type stubRoster struct {
	handlers []domain.Handler
}

func (r *stubRoster) ListByCategory(_ context.Context, category domain.Category) ([]domain.Handler, error) {
	var out []domain.Handler
	for _, h := range r.handlers {
		if h.Handles(category) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *stubRoster) GetByID(_ context.Context, id string) (*domain.Handler, error) {
	for _, h := range r.handlers {
		if h.ID == id {
			cp := h
			return &cp, nil
		}
	}
	return nil, domain.ErrHandlerNotFound
}

func rosterHandler(id string, load, capacity int, categories ...domain.Category) domain.Handler {
	return domain.Handler{
		ID:           id,
		Name:         id,
		Role:         domain.RoleHandler,
		Categories:   categories,
		Capacity:     capacity,
		ActiveLoad:   load,
		Availability: domain.AvailabilityAvailable,
	}
}

func TestAutoAssignPrefersHandlersWithCapacity(t *testing.T) {
	roster := &stubRoster{handlers: []domain.Handler{
		rosterHandler("full", 3, 3, domain.CategoryTechnical),
		rosterHandler("free", 1, 3, domain.CategoryTechnical),
		rosterHandler("billing", 0, 3, domain.CategoryBilling),
	}}
	var offered int
	svc := NewAssignmentService(roster, WithPicker(func(n int) int {
		offered = n
		return 0
	}))

	h, err := svc.AutoAssign(context.Background(), domain.CategoryTechnical)
	require.NoError(t, err)
	assert.Equal(t, "free", h.ID)
	assert.Equal(t, 1, offered)
}

func TestAutoAssignFallsBackWhenEveryoneIsFull(t *testing.T) {
	roster := &stubRoster{handlers: []domain.Handler{
		rosterHandler("a", 2, 2, domain.CategoryService),
		rosterHandler("b", 5, 2, domain.CategoryService),
	}}
	svc := NewAssignmentService(roster, WithPicker(func(n int) int { return n - 1 }))

	h, err := svc.AutoAssign(context.Background(), domain.CategoryService)
	require.NoError(t, err)
	assert.Equal(t, "b", h.ID)
}

func TestAutoAssignIgnoresSupervisorsAndAvailability(t *testing.T) {
	sup := rosterHandler("sue", 0, 0, domain.CategoryProduct)
	sup.Role = domain.RoleSupervisor
	busy := rosterHandler("busy", 0, 0, domain.CategoryProduct)
	busy.Availability = domain.AvailabilityOffline
	roster := &stubRoster{handlers: []domain.Handler{sup, busy}}
	svc := NewAssignmentService(roster, WithPicker(func(int) int { return 0 }))

	h, err := svc.AutoAssign(context.Background(), domain.CategoryProduct)
	require.NoError(t, err)
	assert.Equal(t, "busy", h.ID)

	_, err = svc.AutoAssign(context.Background(), domain.CategoryGeneral)
	assert.ErrorIs(t, err, domain.ErrNoHandlers)
}

func TestCategoryHandlersKeepsHandlerRoleOnly(t *testing.T) {
	lead := rosterHandler("lead", 0, 3, domain.CategoryBilling)
	lead.Role = domain.RoleSupervisor
	roster := &stubRoster{handlers: []domain.Handler{
		rosterHandler("anna", 0, 3, domain.CategoryBilling),
		lead,
		rosterHandler("ben", 3, 3, domain.CategoryBilling),
		rosterHandler("carl", 0, 3, domain.CategoryProduct),
	}}
	svc := NewAssignmentService(roster, WithPicker(func(int) int { return 0 }))

	got, err := svc.CategoryHandlers(context.Background(), domain.CategoryBilling)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, h := range got {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []string{"anna", "ben"}, ids)

	chosen, err := svc.Choose(domain.CategoryBilling, got)
	require.NoError(t, err)
	assert.Equal(t, "anna", chosen.ID)

	_, err = svc.Choose(domain.CategoryService, nil)
	assert.ErrorIs(t, err, domain.ErrNoHandlers)
}

func TestValidateReassignment(t *testing.T) {
	away := rosterHandler("away", 0, 0, domain.CategoryBilling)
	away.Availability = domain.AvailabilityBusy
	roster := &stubRoster{handlers: []domain.Handler{away, rosterHandler("here", 9, 1, domain.CategoryBilling)}}
	svc := NewAssignmentService(roster)

	_, err := svc.ValidateReassignment(context.Background(), "away")
	assert.ErrorIs(t, err, domain.ErrHandlerUnavailable)

	_, err = svc.ValidateReassignment(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrHandlerNotFound)

	h, err := svc.ValidateReassignment(context.Background(), "here")
	require.NoError(t, err)
	assert.Equal(t, "here", h.ID)
}
