package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/complaint-service/internal/classifier"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/sla"
)

const createdMessage = "Complaint has been created and classified automatically."

// Machine computes ticket transitions. It never mutates its input ticket and
// never persists or publishes; callers serialize calls per ticket.
type Machine struct {
	sla   *sla.Calculator
	now   func() time.Time
	newID func() string
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithIDGenerator overrides ticket and update id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) {
		m.newID = newID
	}
}

// NewMachine builds a state machine using calc for deadlines.
func NewMachine(calc *sla.Calculator, opts ...Option) *Machine {
	m := &Machine{
		sla:   calc,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInput carries intake data already run through classification and
// assignment.
type CreateInput struct {
	Owner          domain.Actor
	Title          string
	Description    string
	Classification classifier.Result
	Handler        *domain.Handler
	// CategoryHandlers are alerted about the new ticket alongside supervisors.
	CategoryHandlers []string
}

// Create initializes an OPEN ticket with its creation update, followed by an
// assignment update when a handler was resolved.
func (m *Machine) Create(in CreateInput) (*domain.Mutation, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, domain.ErrEmptyTitle
	}

	now := m.now()
	c := in.Classification
	t := &domain.Ticket{
		ID:          m.newID(),
		ExternalKey: m.externalKey(),
		OwnerID:     in.Owner.ID,
		Title:       title,
		Description: description,
		Category:    c.Category,
		Sentiment:   c.Sentiment,
		Priority:    c.Priority,
		Confidence:  c.Confidence,
		Keywords:    append([]string(nil), c.Keywords...),
		Status:      domain.TicketStatusOpen,
		SLATarget:   m.sla.TargetFor(c.Priority, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mut := &domain.Mutation{
		Kind:             domain.MutationCreated,
		Actor:            in.Owner,
		After:            t,
		At:               now,
		CategoryHandlers: append([]string(nil), in.CategoryHandlers...),
	}
	m.appendUpdate(mut, createdMessage, in.Owner.ID, domain.UpdateTypeStatusChange)

	if h := in.Handler; h != nil {
		id := h.ID
		t.AssignedTo = &id
		if h.Team != "" {
			team := h.Team
			t.AssignedTeam = &team
		}
		m.appendUpdate(mut, assignedMessage(h), domain.SystemActor.ID, domain.UpdateTypeAssignment)
	}
	return mut, nil
}

// SetStatus moves the ticket to status. Closed tickets must go through Reopen.
func (m *Machine) SetStatus(t *domain.Ticket, status domain.TicketStatus, message string, actor domain.Actor) (*domain.Mutation, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidStatus.WithDetails(map[string]any{"status": status})
	}
	if t.Status == domain.TicketStatusClosed {
		return nil, domain.ErrReopenRequired
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("Status changed from %s to %s", t.Status, status)
	}

	mut := m.begin(domain.MutationStatusChanged, t, actor)
	mut.After.Status = status
	if status != t.Status {
		mut.After.SLABreachNotified = false
	}
	m.appendUpdate(mut, message, actor.ID, domain.UpdateTypeStatusChange)
	return mut, nil
}

// Reopen returns a resolved or closed ticket to OPEN.
func (m *Machine) Reopen(t *domain.Ticket, message string, actor domain.Actor) (*domain.Mutation, error) {
	if !t.Status.IsTerminal() {
		return nil, domain.ErrNotReopenable.WithDetails(map[string]any{"status": t.Status})
	}

	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("Complaint reopened from %s", t.Status)
	}

	mut := m.begin(domain.MutationReopened, t, actor)
	mut.After.Status = domain.TicketStatusOpen
	mut.After.SLABreachNotified = false
	m.appendUpdate(mut, message, actor.ID, domain.UpdateTypeStatusChange)
	return mut, nil
}

// Assign sets the handler and forces IN_PROGRESS when the ticket is OPEN.
func (m *Machine) Assign(t *domain.Ticket, handler domain.Handler, actor domain.Actor) (*domain.Mutation, error) {
	if t.Status == domain.TicketStatusClosed {
		return nil, domain.ErrReopenRequired
	}

	mut := m.begin(domain.MutationAssigned, t, actor)
	id := handler.ID
	mut.After.AssignedTo = &id
	mut.After.AssignedTeam = nil
	if handler.Team != "" {
		team := handler.Team
		mut.After.AssignedTeam = &team
	}
	if t.Status == domain.TicketStatusOpen {
		mut.After.Status = domain.TicketStatusInProgress
	}
	m.appendUpdate(mut, assignedMessage(&handler), actor.ID, domain.UpdateTypeAssignment)
	return mut, nil
}

// Escalate flags the ticket, raises it to URGENT and restarts the SLA clock
// when the priority actually went up.
func (m *Machine) Escalate(t *domain.Ticket, reason string, actor domain.Actor) (*domain.Mutation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrEmptyReason
	}
	if t.Status.IsTerminal() {
		return nil, domain.ErrAlreadyTerminal.WithDetails(map[string]any{"status": t.Status})
	}

	mut := m.begin(domain.MutationEscalated, t, actor)
	after := mut.After
	after.IsEscalated = true
	after.EscalationReason = &reason
	after.Status = domain.TicketStatusEscalated
	if after.Priority != domain.TicketPriorityUrgent {
		after.Priority = domain.TicketPriorityUrgent
		after.SLATarget = m.sla.TargetFor(domain.TicketPriorityUrgent, mut.At)
	}
	if after.Status != t.Status || !after.SLATarget.Equal(t.SLATarget) {
		after.SLABreachNotified = false
	}
	m.appendUpdate(mut, "escalated: "+reason, actor.ID, domain.UpdateTypeStatusChange)
	return mut, nil
}

// AddUpdate appends a log entry without touching status.
func (m *Machine) AddUpdate(t *domain.Ticket, message string, updateType domain.UpdateType, actor domain.Actor) (*domain.Mutation, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if !updateType.IsValid() {
		return nil, domain.ErrInvalidUpdateType.WithDetails(map[string]any{"type": updateType})
	}

	mut := m.begin(domain.MutationCommented, t, actor)
	m.appendUpdate(mut, message, actor.ID, updateType)
	return mut, nil
}

// AddInternalNote appends a staff note hidden from the ticket owner. Notes are
// allowed in every status.
func (m *Machine) AddInternalNote(t *domain.Ticket, message string, actor domain.Actor) (*domain.Mutation, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	mut := m.begin(domain.MutationNoted, t, actor)
	m.appendEntry(mut, domain.Update{
		Message:  message,
		Author:   actor.ID,
		Type:     domain.UpdateTypeComment,
		Internal: true,
	})
	return mut, nil
}

// SubmitFeedback records the one-time customer rating of a finished ticket.
func (m *Machine) SubmitFeedback(t *domain.Ticket, rating int, comment string, actor domain.Actor) (*domain.Mutation, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidRating.WithDetails(map[string]any{"rating": rating})
	}
	if t.Feedback != nil {
		return nil, domain.ErrFeedbackAlreadySubmitted
	}
	if !t.Status.IsTerminal() {
		return nil, domain.ErrFeedbackNotAllowed.WithDetails(map[string]any{"status": t.Status})
	}

	mut := m.begin(domain.MutationFeedbackSubmitted, t, actor)
	comment = strings.TrimSpace(comment)
	mut.After.Feedback = &domain.Feedback{Rating: rating, Comment: comment, SubmittedAt: mut.At}
	message := fmt.Sprintf("Feedback submitted: %d/5", rating)
	if comment != "" {
		message += " - " + comment
	}
	m.appendUpdate(mut, message, actor.ID, domain.UpdateTypeComment)
	return mut, nil
}

// MarkBreachNotified returns the SLA-breach mutation for t at now, or nil when
// the ticket is not breached or was already reported since its last status or
// deadline change. The mutation appends no update.
func (m *Machine) MarkBreachNotified(t *domain.Ticket, now time.Time) *domain.Mutation {
	if t.SLABreachNotified || !m.sla.ForTicket(t, now).Breached {
		return nil
	}
	after := t.Clone()
	after.SLABreachNotified = true
	after.UpdatedAt = now
	return &domain.Mutation{
		Kind:   domain.MutationSLABreached,
		Actor:  domain.SystemActor,
		Before: t.Clone(),
		After:  after,
		At:     now,
	}
}

func (m *Machine) begin(kind domain.MutationKind, t *domain.Ticket, actor domain.Actor) *domain.Mutation {
	now := m.now()
	after := t.Clone()
	after.UpdatedAt = now
	return &domain.Mutation{Kind: kind, Actor: actor, Before: t.Clone(), After: after, At: now}
}

func (m *Machine) appendUpdate(mut *domain.Mutation, message, author string, updateType domain.UpdateType) {
	m.appendEntry(mut, domain.Update{Message: message, Author: author, Type: updateType})
}

func (m *Machine) appendEntry(mut *domain.Mutation, u domain.Update) {
	t := mut.After
	u.ID = m.newID()
	u.TicketID = t.ID
	u.Seq = len(t.Updates) + 1
	u.CreatedAt = mut.At
	t.Updates = append(t.Updates, u)
	mut.Updates = append(mut.Updates, u)
}

func (m *Machine) externalKey() string {
	key := strings.ReplaceAll(m.newID(), "-", "")
	if len(key) > 8 {
		key = key[:8]
	}
	return "CMP-" + strings.ToUpper(key)
}

func assignedMessage(h *domain.Handler) string {
	name := h.Name
	if name == "" {
		name = h.ID
	}
	return "Assigned to " + name
}
