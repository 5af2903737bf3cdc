package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentlink/concern-service/internal/domain"
)

// EscalationLogRepository stores escalation and overdue audit entries.
type EscalationLogRepository interface {
	Create(ctx context.Context, entry *domain.EscalationLog) error
	ListByConcern(ctx context.Context, concernID string) ([]domain.EscalationLog, error)
}

type escalationLogRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationLogRepository builds repository.
func NewEscalationLogRepository(pool *pgxpool.Pool) EscalationLogRepository {
	return &escalationLogRepository{pool: pool}
}

func (r *escalationLogRepository) Create(ctx context.Context, entry *domain.EscalationLog) error {
	const query = `
        INSERT INTO escalation_logs (concern_id, kind, reason, previous_assignee, new_assignee)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ConcernID,
		entry.Kind,
		entry.Reason,
		entry.PreviousAssignee,
		entry.NewAssignee,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *escalationLogRepository) ListByConcern(ctx context.Context, concernID string) ([]domain.EscalationLog, error) {
	const query = `
        SELECT id, concern_id, kind, reason, previous_assignee, new_assignee, created_at
        FROM escalation_logs WHERE concern_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, concernID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationLog
	for rows.Next() {
		var entry domain.EscalationLog
		if err := rows.Scan(
			&entry.ID,
			&entry.ConcernID,
			&entry.Kind,
			&entry.Reason,
			&entry.PreviousAssignee,
			&entry.NewAssignee,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
