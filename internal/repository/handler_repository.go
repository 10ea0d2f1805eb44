package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// HandlerRepository manages the roster. Reads populate ActiveLoad with the
// number of non-terminal tickets assigned to the handler.
type HandlerRepository interface {
	Upsert(ctx context.Context, handler *domain.Handler) error
	GetByID(ctx context.Context, id string) (*domain.Handler, error)
	ListByCategory(ctx context.Context, category domain.Category) ([]domain.Handler, error)
	List(ctx context.Context) ([]domain.Handler, error)
	SetAvailability(ctx context.Context, id string, availability domain.Availability) error
}

const activeLoadExpr = "(SELECT COUNT(*) FROM tickets t WHERE t.assigned_to = h.id " +
	"AND t.status NOT IN ('RESOLVED','CLOSED')) AS active_load"

var handlerColumns = []string{
	"h.id", "h.name", "h.team", "h.role", "h.categories", "h.capacity",
	activeLoadExpr, "h.availability", "h.created_at", "h.updated_at",
}

type handlerRepository struct {
	pool *pgxpool.Pool
}

// NewHandlerRepository constructs repository.
func NewHandlerRepository(pool *pgxpool.Pool) HandlerRepository {
	return &handlerRepository{pool: pool}
}

func (r *handlerRepository) Upsert(ctx context.Context, handler *domain.Handler) error {
	now := time.Now().UTC()
	query, args, err := psql.
		Insert("handlers").
		Columns("id", "name", "team", "role", "categories", "capacity", "availability", "created_at", "updated_at").
		Values(
			handler.ID, handler.Name, handler.Team, string(handler.Role),
			toStrings(handler.Categories), handler.Capacity, string(handler.Availability), now, now,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, team = EXCLUDED.team,
            role = EXCLUDED.role, categories = EXCLUDED.categories, capacity = EXCLUDED.capacity,
            availability = EXCLUDED.availability, updated_at = EXCLUDED.updated_at
            RETURNING created_at, updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert handler query: %w", err)
	}
	return r.pool.QueryRow(ctx, query, args...).Scan(&handler.CreatedAt, &handler.UpdatedAt)
}

func (r *handlerRepository) GetByID(ctx context.Context, id string) (*domain.Handler, error) {
	query, args, err := psql.Select(handlerColumns...).From("handlers h").Where(sq.Eq{"h.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get handler query: %w", err)
	}
	handler, err := scanHandler(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrHandlerNotFound
		}
		return nil, err
	}
	return handler, nil
}

func (r *handlerRepository) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Handler, error) {
	return r.list(ctx, psql.Select(handlerColumns...).
		From("handlers h").
		Where(sq.Expr("? = ANY(h.categories)", string(category))).
		OrderBy("h.id"))
}

func (r *handlerRepository) List(ctx context.Context) ([]domain.Handler, error) {
	return r.list(ctx, psql.Select(handlerColumns...).From("handlers h").OrderBy("h.id"))
}

func (r *handlerRepository) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	query, args, err := psql.
		Update("handlers").
		Set("availability", string(availability)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set availability query: %w", err)
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrHandlerNotFound
	}
	return nil
}

func (r *handlerRepository) list(ctx context.Context, b sq.SelectBuilder) ([]domain.Handler, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list handlers query: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Handler
	for rows.Next() {
		handler, err := scanHandler(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *handler)
	}
	return result, rows.Err()
}

func scanHandler(row pgx.Row) (*domain.Handler, error) {
	var (
		h          domain.Handler
		categories []string
	)
	if err := row.Scan(
		&h.ID,
		&h.Name,
		&h.Team,
		&h.Role,
		&categories,
		&h.Capacity,
		&h.ActiveLoad,
		&h.Availability,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, c := range categories {
		h.Categories = append(h.Categories, domain.Category(c))
	}
	return &h, nil
}
