package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/classifier"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/lifecycle"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/sla"
)

const sweepPageSize = 200

// ComplaintService coordinates the complaint lifecycle. Every mutation of a
// ticket runs under that ticket's lock, from the read through publication of
// its event, so events for one ticket are published in commit order.
type ComplaintService struct {
	tickets    repository.TicketRepository
	assignment *AssignmentService
	classifier classifier.Classifier
	machine    *lifecycle.Machine
	sla        *sla.Calculator
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	locks      *keyedMutex
	now        func() time.Time
}

// ComplaintDependencies bundles collaborators for the complaint service.
type ComplaintDependencies struct {
	TicketRepo repository.TicketRepository
	Assignment *AssignmentService
	Classifier classifier.Classifier
	Machine    *lifecycle.Machine
	SLA        *sla.Calculator
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// ListFilter describes caller-facing listing parameters.
type ListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.Category
	AssigneeID *string
	Escalated  *bool
	SearchTerm *string
	Limit      int
	Offset     int
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ComplaintService{
		tickets:    deps.TicketRepo,
		assignment: deps.Assignment,
		classifier: deps.Classifier,
		machine:    deps.Machine,
		sla:        deps.SLA,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        now,
	}
}

// CreateComplaint classifies the text, resolves a handler and stores the new
// ticket. A category without handlers leaves the ticket unassigned.
func (s *ComplaintService) CreateComplaint(ctx context.Context, actor domain.Actor, title, description string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	result := s.classifier.Classify(title + " " + description)

	var (
		handler *domain.Handler
		tagged  []string
	)
	if s.assignment != nil {
		candidates, err := s.assignment.CategoryHandlers(ctx, result.Category)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			tagged = append(tagged, c.ID)
		}
		h, err := s.assignment.Choose(result.Category, candidates)
		switch {
		case err == nil:
			handler = h
		case errors.Is(err, domain.ErrNoHandlers):
			s.logger.Warn("no handler available; complaint left unassigned",
				zap.String("category", string(result.Category)))
		default:
			return nil, err
		}
	}

	mut, err := s.machine.Create(lifecycle.CreateInput{
		Owner:            actor,
		Title:            title,
		Description:      description,
		Classification:   result,
		Handler:          handler,
		CategoryHandlers: tagged,
	})
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(mut.After.ID)
	defer unlock()

	if err := s.tickets.Create(ctx, mut.After); err != nil {
		return nil, err
	}
	s.publish(ctx, *mut)
	return mut.After.Clone(), nil
}

// ChangeStatus moves a ticket to a new status. Handlers may only act on
// tickets assigned to them.
func (s *ComplaintService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus, message string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		if err := requireAssignee(actor, t); err != nil {
			return nil, err
		}
		return s.machine.SetStatus(t, status, message, actor)
	})
}

// AssignHandler reassigns a ticket to an available handler.
func (s *ComplaintService) AssignHandler(ctx context.Context, actor domain.Actor, ticketID, handlerID string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	handler, err := s.assignment.ValidateReassignment(ctx, handlerID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		return s.machine.Assign(t, *handler, actor)
	})
}

// AutoAssignTicket runs the intake selection policy for an existing ticket
// and assigns the chosen handler.
func (s *ComplaintService) AutoAssignTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	handler, err := s.assignment.AutoAssign(ctx, current.Category)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		return s.machine.Assign(t, *handler, actor)
	})
}

// AutoAssignBacklog assigns every unassigned non-terminal ticket whose
// category has handlers. Tickets assigned concurrently are left alone. It
// returns the number of tickets assigned.
func (s *ComplaintService) AutoAssignBacklog(ctx context.Context, actor domain.Actor) (int, error) {
	if err := requireSupervisor(actor); err != nil {
		return 0, err
	}
	backlog, err := s.scanOpen(ctx, func(t *domain.Ticket) bool { return t.AssigneeID() == "" })
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, pending := range backlog {
		handler, err := s.assignment.AutoAssign(ctx, pending.Category)
		if errors.Is(err, domain.ErrNoHandlers) {
			continue
		}
		if err != nil {
			return assigned, err
		}
		var changed bool
		_, err = s.mutate(ctx, pending.ID, func(t *domain.Ticket) (*domain.Mutation, error) {
			if t.AssigneeID() != "" || t.Status.IsTerminal() {
				return nil, nil
			}
			mut, err := s.machine.Assign(t, *handler, actor)
			changed = err == nil
			return mut, err
		})
		if err != nil {
			if errors.Is(err, domain.ErrTicketNotFound) {
				continue
			}
			return assigned, err
		}
		if changed {
			assigned++
		}
	}
	if assigned > 0 {
		s.logger.Info("backlog auto-assigned", zap.Int("count", assigned))
	}
	return assigned, nil
}

// Escalate flags a ticket for supervisor attention.
func (s *ComplaintService) Escalate(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		return s.machine.Escalate(t, reason, actor)
	})
}

// AddComment appends a comment from the owner or staff.
func (s *ComplaintService) AddComment(ctx context.Context, actor domain.Actor, ticketID, message string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	t, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		if err := canView(actor, t); err != nil {
			return nil, err
		}
		return s.machine.AddUpdate(t, message, domain.UpdateTypeComment, actor)
	})
	if err != nil {
		return nil, err
	}
	return viewFor(actor, t), nil
}

// AddInternalNote appends a staff note the owner never sees. Handlers may
// only annotate tickets assigned to them.
func (s *ComplaintService) AddInternalNote(ctx context.Context, actor domain.Actor, ticketID, message string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		if err := requireAssignee(actor, t); err != nil {
			return nil, err
		}
		return s.machine.AddInternalNote(t, message, actor)
	})
}

// InternalNotes lists a ticket's staff notes in log order.
func (s *ComplaintService) InternalNotes(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Update, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignee(actor, t); err != nil {
		return nil, err
	}
	return t.InternalNotes(), nil
}

// SubmitFeedback records the owner's rating of a finished ticket.
func (s *ComplaintService) SubmitFeedback(ctx context.Context, actor domain.Actor, ticketID string, rating int, comment string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	t, err := s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		if t.OwnerID != actor.ID {
			return nil, domain.ErrNotTicketOwner
		}
		return s.machine.SubmitFeedback(t, rating, comment, actor)
	})
	if err != nil {
		return nil, err
	}
	return viewFor(actor, t), nil
}

// Reopen returns a resolved or closed ticket to OPEN.
func (s *ComplaintService) Reopen(ctx context.Context, actor domain.Actor, ticketID, message string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, ticketID, func(t *domain.Ticket) (*domain.Mutation, error) {
		return s.machine.Reopen(t, message, actor)
	})
}

// GetTicket loads a ticket with its update log. Owners do not see internal
// notes.
func (s *ComplaintService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, t); err != nil {
		return nil, err
	}
	return viewFor(actor, t), nil
}

// ListTickets lists tickets visible to actor.
func (s *ComplaintService) ListTickets(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		Escalated:  filter.Escalated,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if actor.Role == domain.RoleUser {
		owner := actor.ID
		repoFilter.OwnerID = &owner
	}
	return s.tickets.List(ctx, repoFilter)
}

// Stats summarizes the tickets in the actor's scope: users see their own,
// handlers those assigned to them and supervisors everything.
func (s *ComplaintService) Stats(ctx context.Context, actor domain.Actor) (repository.TicketStats, error) {
	if err := requireActor(actor); err != nil {
		return repository.TicketStats{}, err
	}
	var filter repository.TicketFilter
	id := actor.ID
	switch actor.Role {
	case domain.RoleUser:
		filter.OwnerID = &id
	case domain.RoleHandler:
		filter.AssigneeID = &id
	}
	return s.tickets.Stats(ctx, filter, s.now())
}

// ComputeSLAStatus reports whether t is breached at now and the whole hours
// left before its deadline.
func (s *ComplaintService) ComputeSLAStatus(t *domain.Ticket, now time.Time) sla.Status {
	return s.sla.ForTicket(t, now)
}

// Classify runs the classifier without creating a ticket.
func (s *ComplaintService) Classify(text string) classifier.Result {
	return s.classifier.Classify(text)
}

// Suggest returns category suggestions when the classifier supports them.
func (s *ComplaintService) Suggest(text string) []domain.Category {
	if sg, ok := s.classifier.(interface {
		Suggest(string) []domain.Category
	}); ok {
		return sg.Suggest(text)
	}
	return nil
}

// Subscribe registers a handler on the notification feed.
func (s *ComplaintService) Subscribe(eventType events.EventType, handler events.EventHandler) {
	s.dispatcher.Subscribe(eventType, handler)
}

// SweepSLABreaches marks and publishes every breach first detected at now.
// It returns the number of newly notified tickets. Tickets already reported
// since their last status change are skipped.
func (s *ComplaintService) SweepSLABreaches(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.scanOpen(ctx, func(t *domain.Ticket) bool {
		return !t.SLABreachNotified && s.sla.ForTicket(t, now).Breached
	})
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, candidate := range candidates {
		var marked bool
		_, err := s.mutate(ctx, candidate.ID, func(t *domain.Ticket) (*domain.Mutation, error) {
			mut := s.machine.MarkBreachNotified(t, now)
			marked = mut != nil
			return mut, nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrTicketNotFound) {
				continue
			}
			return notified, err
		}
		if marked {
			notified++
			s.metrics.RecordSLABreach()
		}
	}
	if notified > 0 {
		s.logger.Info("sla breaches notified", zap.Int("count", notified))
	}
	return notified, nil
}

// scanOpen pages through non-terminal tickets and keeps those matching keep.
func (s *ComplaintService) scanOpen(ctx context.Context, keep func(*domain.Ticket) bool) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for offset := 0; ; offset += sweepPageSize {
		page, err := s.tickets.List(ctx, repository.TicketFilter{
			NonTerminal: true,
			Limit:       sweepPageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		for i := range page {
			if keep(&page[i]) {
				out = append(out, page[i])
			}
		}
		if len(page) < sweepPageSize {
			return out, nil
		}
	}
}

// mutate runs step against the current ticket under its lock, persists the
// result and publishes the mutation before releasing the lock. A nil
// mutation leaves the ticket unchanged and publishes nothing.
func (s *ComplaintService) mutate(ctx context.Context, ticketID string, step func(*domain.Ticket) (*domain.Mutation, error)) (*domain.Ticket, error) {
	unlock := s.locks.Lock(ticketID)
	defer unlock()

	var mut *domain.Mutation
	t, err := s.tickets.Mutate(ctx, ticketID, func(current *domain.Ticket) (*domain.Ticket, error) {
		m, err := step(current)
		if err != nil || m == nil {
			return nil, err
		}
		mut = m
		return m.After, nil
	})
	if err != nil {
		return nil, err
	}
	if mut != nil {
		s.publish(ctx, *mut)
	}
	return t.Clone(), nil
}

func (s *ComplaintService) publish(ctx context.Context, m domain.Mutation) {
	s.metrics.RecordMutation(string(m.Kind))
	if s.dispatcher == nil {
		return
	}
	event := events.NewEvent(m)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func requireActor(actor domain.Actor) error {
	if actor.ID == "" || !actor.Role.IsValid() {
		return domain.ErrUnknownActor
	}
	return nil
}

func requireStaff(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Role.IsStaff() {
		return domain.ErrStaffOnly
	}
	return nil
}

func requireSupervisor(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role != domain.RoleSupervisor {
		return domain.ErrSupervisorOnly
	}
	return nil
}

func requireAssignee(actor domain.Actor, t *domain.Ticket) error {
	if actor.Role == domain.RoleHandler && t.AssigneeID() != actor.ID {
		return domain.ErrNotAssignee.WithDetails(map[string]any{"ticket_id": t.ID})
	}
	return nil
}

func viewFor(actor domain.Actor, t *domain.Ticket) *domain.Ticket {
	if actor.Role == domain.RoleUser {
		return t.WithoutInternal()
	}
	return t
}

func canView(actor domain.Actor, t *domain.Ticket) error {
	if actor.Role == domain.RoleUser && t.OwnerID != actor.ID {
		return domain.ErrNotTicketOwner
	}
	return nil
}
