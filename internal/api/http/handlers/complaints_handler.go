package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// ComplaintsHandler exposes the complaint lifecycle.
type ComplaintsHandler struct {
	service *service.ComplaintService
	now     func() time.Time
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(complaintService *service.ComplaintService) *ComplaintsHandler {
	return &ComplaintsHandler{
		service: complaintService,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateComplaint(c.UserContext(), actor, req.Title, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// List GET /complaints.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, parseListQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /complaints/stats.
func (h *ComplaintsHandler) Stats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Get GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// SLA GET /complaints/:id/sla.
func (h *ComplaintsHandler) SLA(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.slaStatus(ticket)})
}

// ChangeStatus PATCH /complaints/:id/status.
func (h *ComplaintsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), actor, c.Params("id"), req.Status, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// Reopen POST /complaints/:id/reopen.
func (h *ComplaintsHandler) Reopen(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReopenRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.Reopen(c.UserContext(), actor, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// Assign POST /complaints/:id/assign.
func (h *ComplaintsHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.HandlerID) == "" {
		return apperrors.NewValidationError("handler_id required", nil)
	}
	ticket, err := h.service.AssignHandler(c.UserContext(), actor, c.Params("id"), req.HandlerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// Escalate POST /complaints/:id/escalate.
func (h *ComplaintsHandler) Escalate(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Escalate(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// Comment POST /complaints/:id/comments.
func (h *ComplaintsHandler) Comment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// AddInternalNote POST /complaints/:id/internal-notes.
func (h *ComplaintsHandler) AddInternalNote(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.InternalNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddInternalNote(c.UserContext(), actor, c.Params("id"), req.Note)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// InternalNotes GET /complaints/:id/internal-notes.
func (h *ComplaintsHandler) InternalNotes(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	notes, err := h.service.InternalNotes(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updateResponses(notes)})
}

// AutoAssign POST /complaints/:id/auto-assign.
func (h *ComplaintsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.AutoAssignTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// AutoAssignBacklog POST /complaints/auto-assign.
func (h *ComplaintsHandler) AutoAssignBacklog(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	assigned, err := h.service.AutoAssignBacklog(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AutoAssignResponse{Assigned: assigned}})
}

// Feedback POST /complaints/:id/feedback.
func (h *ComplaintsHandler) Feedback(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SubmitFeedback(c.UserContext(), actor, c.Params("id"), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketDetail(ticket)})
}

// Classify POST /classify.
func (h *ComplaintsHandler) Classify(c *fiber.Ctx) error {
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}
	result := h.service.Classify(req.Text)
	return c.JSON(fiber.Map{"data": dto.ClassificationResponse{
		Category:    result.Category,
		Sentiment:   result.Sentiment,
		Priority:    result.Priority,
		Confidence:  result.Confidence,
		Keywords:    result.Keywords,
		Suggestions: h.service.Suggest(req.Text),
	}})
}

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseListQuery(c *fiber.Ctx) service.ListFilter {
	filter := service.ListFilter{}
	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(part)))
	}
	for _, part := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(part)))
	}
	for _, part := range splitQuery(c.Query("category")) {
		filter.Categories = append(filter.Categories, domain.Category(strings.ToUpper(part)))
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if escalated, err := strconv.ParseBool(c.Query("escalated")); err == nil {
		filter.Escalated = &escalated
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		ExternalKey: ticket.ExternalKey,
		OwnerID:     ticket.OwnerID,
		Title:       ticket.Title,
		Category:    ticket.Category,
		Sentiment:   ticket.Sentiment,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		AssignedTo:  ticket.AssignedTo,
		SLATarget:   ticket.SLATarget,
		IsEscalated: ticket.IsEscalated,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func updateResponses(updates []domain.Update) []dto.UpdateResponse {
	out := make([]dto.UpdateResponse, 0, len(updates))
	for _, u := range updates {
		out = append(out, dto.UpdateResponse{
			ID:        u.ID,
			Seq:       u.Seq,
			Type:      u.Type,
			Message:   u.Message,
			Author:    u.Author,
			Internal:  u.Internal,
			CreatedAt: u.CreatedAt,
		})
	}
	return out
}

func (h *ComplaintsHandler) ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	keywords := ticket.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return dto.TicketDetailResponse{
		TicketSummary:    ticketSummary(ticket),
		Description:      ticket.Description,
		AssignedTeam:     ticket.AssignedTeam,
		Confidence:       ticket.Confidence,
		Keywords:         keywords,
		EscalationReason: ticket.EscalationReason,
		Feedback:         ticket.Feedback,
		SLA:              h.slaStatus(ticket),
		Updates:          updateResponses(ticket.Updates),
	}
}

func (h *ComplaintsHandler) slaStatus(ticket *domain.Ticket) dto.SLAStatus {
	status := h.service.ComputeSLAStatus(ticket, h.now())
	return dto.SLAStatus{
		Target:    ticket.SLATarget,
		Breached:  status.Breached,
		HoursLeft: status.HoursLeft,
	}
}
