package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// TicketFilter captures listing parameters. Nil fields are ignored.
type TicketFilter struct {
	OwnerID     *string
	AssigneeID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Categories  []domain.Category
	Escalated   *bool
	NonTerminal bool
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketStats summarizes tickets matching a filter.
type TicketStats struct {
	Total          int     `json:"total"`
	Open           int     `json:"open"`
	InProgress     int     `json:"in_progress"`
	Resolved       int     `json:"resolved"`
	Escalated      int     `json:"escalated"`
	Overdue        int     `json:"overdue"`
	ResolutionRate float64 `json:"resolution_rate"`
}

// MutateFunc derives the next ticket value from the current one. Returning a
// nil ticket with a nil error leaves the ticket untouched.
type MutateFunc func(current *domain.Ticket) (*domain.Ticket, error)

// TicketRepository encapsulates ticket persistence. Mutate is an atomic
// read-modify-write keyed by ticket id; appended updates are written
// idempotently by (ticket, seq).
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, filter TicketFilter, now time.Time) (TicketStats, error)
}

var ticketColumns = []string{
	"id", "external_key", "owner_id", "title", "description", "category", "sentiment",
	"priority", "confidence", "keywords", "status", "assigned_to", "assigned_team",
	"sla_target", "is_escalated", "escalation_reason", "feedback_rating",
	"feedback_comment", "feedback_submitted_at", "sla_breach_notified",
	"created_at", "updated_at",
}

var terminalStatuses = []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed}

type ticketRepository struct {
	pool    *pgxpool.Pool
	updates *ticketUpdateRepository
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool, updates: &ticketUpdateRepository{}}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create ticket: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var rating *int
	var comment *string
	var submittedAt *time.Time
	if fb := ticket.Feedback; fb != nil {
		rating, comment, submittedAt = &fb.Rating, &fb.Comment, &fb.SubmittedAt
	}

	query, args, err := psql.
		Insert("tickets").
		Columns(ticketColumns...).
		Values(
			ticket.ID, ticket.ExternalKey, ticket.OwnerID, ticket.Title, ticket.Description,
			string(ticket.Category), string(ticket.Sentiment), string(ticket.Priority),
			ticket.Confidence, nonNil(ticket.Keywords), string(ticket.Status),
			ticket.AssignedTo, ticket.AssignedTeam, ticket.SLATarget, ticket.IsEscalated,
			ticket.EscalationReason, rating, comment, submittedAt, ticket.SLABreachNotified,
			ticket.CreatedAt, ticket.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create ticket query: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	if err := r.updates.Append(ctx, tx, ticket.Updates); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.load(ctx, r.pool, id, false)
}

// Mutate locks the ticket row with SELECT ... FOR UPDATE for the duration of fn.
func (r *ticketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin mutate ticket: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := r.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, tx.Commit(ctx)
	}

	if err := r.update(ctx, tx, next); err != nil {
		return nil, err
	}
	if len(next.Updates) > len(current.Updates) {
		if err := r.updates.Append(ctx, tx, next.Updates[len(current.Updates):]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit mutate ticket: %w", err)
	}
	return next, nil
}

func (r *ticketRepository) update(ctx context.Context, q querier, t *domain.Ticket) error {
	var rating *int
	var comment *string
	var submittedAt *time.Time
	if fb := t.Feedback; fb != nil {
		rating, comment, submittedAt = &fb.Rating, &fb.Comment, &fb.SubmittedAt
	}

	query, args, err := psql.
		Update("tickets").
		Set("priority", string(t.Priority)).
		Set("status", string(t.Status)).
		Set("assigned_to", t.AssignedTo).
		Set("assigned_team", t.AssignedTeam).
		Set("sla_target", t.SLATarget).
		Set("is_escalated", t.IsEscalated).
		Set("escalation_reason", t.EscalationReason).
		Set("feedback_rating", rating).
		Set("feedback_comment", comment).
		Set("feedback_submitted_at", submittedAt).
		Set("sla_breach_notified", t.SLABreachNotified).
		Set("updated_at", t.UpdatedAt).
		Where(sq.Eq{"id": t.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update ticket query for %s: %w", t.ID, err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTicketNotFound, t.ID)
	}
	return nil
}

func (r *ticketRepository) load(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Ticket, error) {
	b := psql.Select(ticketColumns...).From("tickets").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get ticket query for %s: %w", id, err)
	}
	ticket, err := scanTicket(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	updates, err := r.updates.ListByTicket(ctx, q, id)
	if err != nil {
		return nil, err
	}
	ticket.Updates = updates
	return ticket, nil
}

// List returns tickets without their update logs, newest activity first.
func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query, args, err := applyTicketFilter(psql.Select(ticketColumns...).From("tickets"), filter).
		OrderBy("updated_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tickets query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return result, nil
}

func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter, now time.Time) (TicketStats, error) {
	query, args, err := applyTicketFilter(psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE status = 'OPEN')",
		"COUNT(*) FILTER (WHERE status = 'IN_PROGRESS')",
		"COUNT(*) FILTER (WHERE status = 'RESOLVED')",
		"COUNT(*) FILTER (WHERE is_escalated)",
	).
		Column(sq.Expr("COUNT(*) FILTER (WHERE status NOT IN ('RESOLVED','CLOSED') AND sla_target < ?)", now)).
		From("tickets"), filter).
		ToSql()
	if err != nil {
		return TicketStats{}, fmt.Errorf("build ticket stats query: %w", err)
	}

	var stats TicketStats
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Open, &stats.InProgress, &stats.Resolved, &stats.Escalated, &stats.Overdue,
	); err != nil {
		return TicketStats{}, fmt.Errorf("ticket stats: %w", err)
	}
	stats.ResolutionRate = resolutionRate(stats.Resolved, stats.Total)
	return stats, nil
}

func applyTicketFilter(b sq.SelectBuilder, f TicketFilter) sq.SelectBuilder {
	if f.OwnerID != nil {
		b = b.Where(sq.Eq{"owner_id": *f.OwnerID})
	}
	if f.AssigneeID != nil {
		b = b.Where(sq.Eq{"assigned_to": *f.AssigneeID})
	}
	if len(f.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": toStrings(f.Statuses)})
	}
	if len(f.Priorities) > 0 {
		b = b.Where(sq.Eq{"priority": toStrings(f.Priorities)})
	}
	if len(f.Categories) > 0 {
		b = b.Where(sq.Eq{"category": toStrings(f.Categories)})
	}
	if f.Escalated != nil {
		b = b.Where(sq.Eq{"is_escalated": *f.Escalated})
	}
	if f.NonTerminal {
		b = b.Where(sq.NotEq{"status": toStrings(terminalStatuses)})
	}
	if f.SearchTerm != nil && strings.TrimSpace(*f.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*f.SearchTerm)) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(title)": search},
			sq.Like{"LOWER(description)": search},
		})
	}
	if f.CreatedFrom != nil {
		b = b.Where(sq.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		b = b.Where(sq.LtOrEq{"created_at": *f.CreatedTo})
	}
	return b
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		rating      *int
		comment     *string
		submittedAt *time.Time
	)
	err := row.Scan(
		&t.ID,
		&t.ExternalKey,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.Sentiment,
		&t.Priority,
		&t.Confidence,
		&t.Keywords,
		&t.Status,
		&t.AssignedTo,
		&t.AssignedTeam,
		&t.SLATarget,
		&t.IsEscalated,
		&t.EscalationReason,
		&rating,
		&comment,
		&submittedAt,
		&t.SLABreachNotified,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	if rating != nil {
		fb := &domain.Feedback{Rating: *rating}
		if comment != nil {
			fb.Comment = *comment
		}
		if submittedAt != nil {
			fb.SubmittedAt = *submittedAt
		}
		t.Feedback = fb
	}
	return &t, nil
}

func resolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(resolved)/float64(total)*1000) / 10
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
