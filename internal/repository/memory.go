package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

type memoryTicket struct {
	mu     sync.Mutex
	ticket *domain.Ticket
}

// MemoryTicketRepository keeps tickets in process. Each ticket has its own
// lock so Mutate on one ticket never waits on another.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*memoryTicket
}

// NewMemoryTicketRepository builds an empty in-memory store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*memoryTicket)}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; ok {
		return domain.ErrTicketExists.WithDetails(map[string]any{"ticket_id": ticket.ID})
	}
	r.tickets[ticket.ID] = &memoryTicket{ticket: ticket.Clone()}
	return nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ticket.Clone(), nil
}

func (r *MemoryTicketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	entry, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, err := fn(entry.ticket.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return entry.ticket.Clone(), nil
	}
	entry.ticket = next.Clone()
	return next, nil
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	all := r.filtered(filter)
	slices.SortFunc(all, func(a, b domain.Ticket) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *MemoryTicketRepository) Stats(_ context.Context, filter TicketFilter, now time.Time) (TicketStats, error) {
	var stats TicketStats
	for _, t := range r.filtered(filter) {
		stats.Total++
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
		if t.IsEscalated {
			stats.Escalated++
		}
		if !t.Status.IsTerminal() && t.SLATarget.Before(now) {
			stats.Overdue++
		}
	}
	stats.ResolutionRate = resolutionRate(stats.Resolved, stats.Total)
	return stats, nil
}

// ActiveLoads counts non-terminal tickets per assigned handler.
func (r *MemoryTicketRepository) ActiveLoads() map[string]int {
	loads := make(map[string]int)
	for _, t := range r.filtered(TicketFilter{NonTerminal: true}) {
		if id := t.AssigneeID(); id != "" {
			loads[id]++
		}
	}
	return loads
}

func (r *MemoryTicketRepository) entry(id string) (*memoryTicket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return entry, nil
}

// filtered returns copies without update logs, matching the postgres List.
func (r *MemoryTicketRepository) filtered(f TicketFilter) []domain.Ticket {
	r.mu.RLock()
	entries := make([]*memoryTicket, 0, len(r.tickets))
	for _, e := range r.tickets {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var out []domain.Ticket
	for _, e := range entries {
		e.mu.Lock()
		t := *e.ticket.Clone()
		e.mu.Unlock()
		if matchesFilter(&t, f) {
			t.Updates = nil
			out = append(out, t)
		}
	}
	return out
}

func matchesFilter(t *domain.Ticket, f TicketFilter) bool {
	if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
		return false
	}
	if f.AssigneeID != nil && t.AssigneeID() != *f.AssigneeID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, t.Category) {
		return false
	}
	if f.Escalated != nil && t.IsEscalated != *f.Escalated {
		return false
	}
	if f.NonTerminal && t.Status.IsTerminal() {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) {
			return false
		}
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

// MemoryHandlerRepository keeps the roster in process and derives active
// load from the ticket store.
type MemoryHandlerRepository struct {
	mu       sync.RWMutex
	handlers map[string]domain.Handler
	tickets  *MemoryTicketRepository
}

// NewMemoryHandlerRepository builds a roster backed by tickets for load counts.
func NewMemoryHandlerRepository(tickets *MemoryTicketRepository) *MemoryHandlerRepository {
	return &MemoryHandlerRepository{handlers: make(map[string]domain.Handler), tickets: tickets}
}

func (r *MemoryHandlerRepository) Upsert(_ context.Context, handler *domain.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.handlers[handler.ID]; ok {
		handler.CreatedAt = existing.CreatedAt
	} else {
		handler.CreatedAt = now
	}
	handler.UpdatedAt = now
	h := *handler
	h.Categories = slices.Clone(handler.Categories)
	h.ActiveLoad = 0
	r.handlers[h.ID] = h
	return nil
}

func (r *MemoryHandlerRepository) GetByID(_ context.Context, id string) (*domain.Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrHandlerNotFound
	}
	h = r.withLoad(h, r.loads())
	return &h, nil
}

func (r *MemoryHandlerRepository) ListByCategory(_ context.Context, category domain.Category) ([]domain.Handler, error) {
	return r.list(func(h domain.Handler) bool { return h.Handles(category) }), nil
}

func (r *MemoryHandlerRepository) List(_ context.Context) ([]domain.Handler, error) {
	return r.list(func(domain.Handler) bool { return true }), nil
}

func (r *MemoryHandlerRepository) SetAvailability(_ context.Context, id string, availability domain.Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[id]
	if !ok {
		return domain.ErrHandlerNotFound
	}
	h.Availability = availability
	h.UpdatedAt = time.Now().UTC()
	r.handlers[id] = h
	return nil
}

func (r *MemoryHandlerRepository) list(keep func(domain.Handler) bool) []domain.Handler {
	loads := r.loads()
	r.mu.RLock()
	var out []domain.Handler
	for _, h := range r.handlers {
		if keep(h) {
			out = append(out, r.withLoad(h, loads))
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.Handler) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (r *MemoryHandlerRepository) loads() map[string]int {
	if r.tickets == nil {
		return nil
	}
	return r.tickets.ActiveLoads()
}

func (r *MemoryHandlerRepository) withLoad(h domain.Handler, loads map[string]int) domain.Handler {
	h.Categories = slices.Clone(h.Categories)
	h.ActiveLoad = loads[h.ID]
	return h
}
