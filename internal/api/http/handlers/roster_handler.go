package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// RosterHandler manages handler roster endpoints.
type RosterHandler struct {
	service *service.RosterService
}

// NewRosterHandler constructs handler.
func NewRosterHandler(rosterService *service.RosterService) *RosterHandler {
	return &RosterHandler{service: rosterService}
}

// Upsert PUT /roster/handlers/:id.
func (h *RosterHandler) Upsert(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.UpsertHandlerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	handler, err := h.service.UpsertHandler(c.UserContext(), actor, service.HandlerInput{
		ID:           c.Params("id"),
		Name:         req.Name,
		Team:         req.Team,
		Role:         req.Role,
		Categories:   req.Categories,
		Capacity:     req.Capacity,
		Availability: req.Availability,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": handlerResponse(handler)})
}

// SetAvailability PATCH /roster/handlers/:id/availability.
func (h *RosterHandler) SetAvailability(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	handler, err := h.service.SetAvailability(c.UserContext(), actor, c.Params("id"), req.Availability)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": handlerResponse(handler)})
}

// List GET /roster/handlers.
func (h *RosterHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	handlers, err := h.service.ListHandlers(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.HandlerResponse, 0, len(handlers))
	for i := range handlers {
		items = append(items, handlerResponse(&handlers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func handlerResponse(h *domain.Handler) dto.HandlerResponse {
	categories := h.Categories
	if categories == nil {
		categories = []domain.Category{}
	}
	return dto.HandlerResponse{
		ID:           h.ID,
		Name:         h.Name,
		Team:         h.Team,
		Role:         h.Role,
		Categories:   categories,
		Capacity:     h.Capacity,
		ActiveLoad:   h.ActiveLoad,
		Availability: h.Availability,
		UpdatedAt:    h.UpdatedAt,
	}
}
