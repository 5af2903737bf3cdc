package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentlink/concern-service/internal/domain"
)

// ConcernHistoryRepository stores audit entries.
type ConcernHistoryRepository interface {
	Create(ctx context.Context, history *domain.ConcernHistory) error
	ListByConcern(ctx context.Context, concernID string) ([]domain.ConcernHistory, error)
}

type concernHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewConcernHistoryRepository builds repository.
func NewConcernHistoryRepository(pool *pgxpool.Pool) ConcernHistoryRepository {
	return &concernHistoryRepository{pool: pool}
}

func (r *concernHistoryRepository) Create(ctx context.Context, history *domain.ConcernHistory) error {
	const query = `
        INSERT INTO concern_history (concern_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		history.ConcernID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *concernHistoryRepository) ListByConcern(ctx context.Context, concernID string) ([]domain.ConcernHistory, error) {
	const query = `
        SELECT id, concern_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM concern_history WHERE concern_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, concernID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ConcernHistory
	for rows.Next() {
		var history domain.ConcernHistory
		if err := rows.Scan(
			&history.ID,
			&history.ConcernID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
