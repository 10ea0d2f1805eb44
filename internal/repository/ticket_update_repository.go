package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// ticketUpdateRepository stores the append-only ticket log. It runs on the
// caller's querier so writes share the ticket transaction.
type ticketUpdateRepository struct{}

// Append inserts updates; an already stored (ticket_id, seq) pair is skipped.
func (r *ticketUpdateRepository) Append(ctx context.Context, q querier, updates []domain.Update) error {
	if len(updates) == 0 {
		return nil
	}
	b := psql.
		Insert("ticket_updates").
		Columns("id", "ticket_id", "seq", "message", "author", "type", "is_internal", "created_at")
	for _, u := range updates {
		b = b.Values(u.ID, u.TicketID, u.Seq, u.Message, u.Author, string(u.Type), u.Internal, u.CreatedAt)
	}
	query, args, err := b.Suffix("ON CONFLICT (ticket_id, seq) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build append updates query: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append ticket updates: %w", err)
	}
	return nil
}

// ListByTicket returns the log in sequence order.
func (r *ticketUpdateRepository) ListByTicket(ctx context.Context, q querier, ticketID string) ([]domain.Update, error) {
	query, args, err := psql.
		Select("id", "ticket_id", "seq", "message", "author", "type", "is_internal", "created_at").
		From("ticket_updates").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list updates query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ticket updates: %w", err)
	}
	defer rows.Close()

	var result []domain.Update
	for rows.Next() {
		var u domain.Update
		if err := rows.Scan(
			&u.ID,
			&u.TicketID,
			&u.Seq,
			&u.Message,
			&u.Author,
			&u.Type,
			&u.Internal,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ticket update: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
