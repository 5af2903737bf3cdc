package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentlink/concern-service/internal/domain"
)

// CrossDepartmentRepository persists cross-department assignment records.
type CrossDepartmentRepository interface {
	// AssignWithRecord updates the concern's assignee and inserts the
	// cross-department record in one transaction, expiring any previously
	// active record for the concern so at most one stays ACTIVE.
	AssignWithRecord(ctx context.Context, record *domain.CrossDepartmentAssignment, reassignment bool) error
	GetActiveByConcern(ctx context.Context, concernID string) (*domain.CrossDepartmentAssignment, error)
	Complete(ctx context.Context, id string, at time.Time) error
	ListByStaff(ctx context.Context, staffID string) ([]domain.CrossDepartmentAssignment, error)
}

type crossDepartmentRepository struct {
	pool *pgxpool.Pool
}

// NewCrossDepartmentRepository instantiates the repository.
func NewCrossDepartmentRepository(pool *pgxpool.Pool) CrossDepartmentRepository {
	return &crossDepartmentRepository{pool: pool}
}

const crossDepartmentColumns = `id, concern_id, staff_id, requesting_department_id, assignment_type,
               estimated_duration_hours, status, assigned_at, completed_at`

func (r *crossDepartmentRepository) AssignWithRecord(ctx context.Context, record *domain.CrossDepartmentAssignment, reassignment bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const expireQuery = `
        UPDATE cross_department_assignments SET status='EXPIRED'
        WHERE concern_id=$1 AND status='ACTIVE'`
	if _, err := tx.Exec(ctx, expireQuery, record.ConcernID); err != nil {
		return err
	}

	const insertQuery = `
        INSERT INTO cross_department_assignments
            (concern_id, staff_id, requesting_department_id, assignment_type, estimated_duration_hours, status, assigned_at)
        VALUES ($1,$2,$3,$4,$5,'ACTIVE',$6)
        RETURNING id`
	if err := tx.QueryRow(ctx, insertQuery,
		record.ConcernID,
		record.StaffID,
		record.RequestingDepartmentID,
		record.AssignmentType,
		record.EstimatedDurationHours,
		record.AssignedAt,
	).Scan(&record.ID); err != nil {
		return err
	}
	record.Status = domain.CrossDepartmentStatusActive

	var concernQuery string
	args := []any{record.StaffID, record.ConcernID}
	if reassignment {
		concernQuery = `UPDATE concerns SET assigned_to=$1, reassigned_at=$3, updated_at=NOW() WHERE id=$2`
		args = append(args, record.AssignedAt)
	} else {
		concernQuery = `UPDATE concerns SET assigned_to=$1, updated_at=NOW() WHERE id=$2`
	}
	cmd, err := tx.Exec(ctx, concernQuery, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

func (r *crossDepartmentRepository) GetActiveByConcern(ctx context.Context, concernID string) (*domain.CrossDepartmentAssignment, error) {
	query := `SELECT ` + crossDepartmentColumns + `
        FROM cross_department_assignments WHERE concern_id=$1 AND status='ACTIVE'`
	var record domain.CrossDepartmentAssignment
	if err := r.pool.QueryRow(ctx, query, concernID).Scan(
		&record.ID,
		&record.ConcernID,
		&record.StaffID,
		&record.RequestingDepartmentID,
		&record.AssignmentType,
		&record.EstimatedDurationHours,
		&record.Status,
		&record.AssignedAt,
		&record.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *crossDepartmentRepository) Complete(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE cross_department_assignments SET status='COMPLETED', completed_at=$1
        WHERE id=$2 AND status='ACTIVE'`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *crossDepartmentRepository) ListByStaff(ctx context.Context, staffID string) ([]domain.CrossDepartmentAssignment, error) {
	query := `SELECT ` + crossDepartmentColumns + `
        FROM cross_department_assignments WHERE staff_id=$1 ORDER BY assigned_at DESC`
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CrossDepartmentAssignment
	for rows.Next() {
		var record domain.CrossDepartmentAssignment
		if err := rows.Scan(
			&record.ID,
			&record.ConcernID,
			&record.StaffID,
			&record.RequestingDepartmentID,
			&record.AssignmentType,
			&record.EstimatedDurationHours,
			&record.Status,
			&record.AssignedAt,
			&record.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
