package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentlink/concern-service/internal/domain"
)

// ConcernFilter captures concern search parameters.
type ConcernFilter struct {
	SubmitterID           *string
	DepartmentID          *string
	AssignedTo            *string
	HasAssignee           *bool
	Statuses              []domain.ConcernStatus
	Priorities            []domain.ConcernPriority
	Types                 []domain.ConcernType
	Archived              *bool
	CreatedBefore         *time.Time
	StudentResolvedBefore *time.Time
	Limit                 int
	Offset                int
}

// ConcernRepository encapsulates concern persistence. The Mark* methods are
// atomic check-and-set updates: they only apply when the timestamp column is
// still null, which makes concurrent sweeps idempotent.
type ConcernRepository interface {
	Create(ctx context.Context, concern *domain.Concern) error
	Update(ctx context.Context, concern *domain.Concern) error
	GetByID(ctx context.Context, id string) (*domain.Concern, error)
	ListWithFilter(ctx context.Context, filter ConcernFilter) ([]domain.Concern, error)
	CountActiveByStaff(ctx context.Context, staffID string) (int, error)
	CountActiveByDepartment(ctx context.Context, departmentID string) (int, error)
	AverageResolutionHours(ctx context.Context, staffID string, since time.Time) (float64, bool, error)
	UpdatePriority(ctx context.Context, id string, priority domain.ConcernPriority) error
	Assign(ctx context.Context, id, staffID string, reassignment bool, at time.Time) error
	MarkEscalated(ctx context.Context, id, reason string, at time.Time) (bool, error)
	MarkOverdue(ctx context.Context, id string, at time.Time) (bool, error)
	Close(ctx context.Context, id, closedBy string, auto bool, at time.Time) error
}

const concernColumns = `id, external_key, submitter_id, department_id, facility_id, subject, description,
               concern_type, status, priority, assigned_to, escalated_at, escalation_reason, overdue_at,
               reassigned_at, auto_approved, auto_closed, closed_by, approved_at, resolved_at,
               student_resolved_at, rating, archived, created_at, updated_at`

// Statuses excluded from workload counts. Kept in SQL form so the count
// queries and Concern.Active stay in agreement.
const activeStatusClause = `status NOT IN ('REJECTED','CLOSED','CANCELLED') AND archived=FALSE`

type concernRepository struct {
	pool *pgxpool.Pool
}

// NewConcernRepository instantiates repository.
func NewConcernRepository(pool *pgxpool.Pool) ConcernRepository {
	return &concernRepository{pool: pool}
}

func (r *concernRepository) Create(ctx context.Context, concern *domain.Concern) error {
	const query = `
        INSERT INTO concerns (external_key, submitter_id, department_id, facility_id, subject, description,
            concern_type, status, priority, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		concern.ExternalKey,
		concern.SubmitterID,
		concern.DepartmentID,
		concern.FacilityID,
		concern.Subject,
		concern.Description,
		concern.Type,
		concern.Status,
		concern.Priority,
		concern.AssignedTo,
	).Scan(&concern.ID, &concern.CreatedAt, &concern.UpdatedAt)
}

func (r *concernRepository) Update(ctx context.Context, concern *domain.Concern) error {
	const query = `
        UPDATE concerns SET department_id=$1, facility_id=$2, subject=$3, description=$4, concern_type=$5,
            status=$6, priority=$7, assigned_to=$8, auto_approved=$9, auto_closed=$10, closed_by=$11,
            approved_at=$12, resolved_at=$13, student_resolved_at=$14, rating=$15, archived=$16, updated_at=NOW()
        WHERE id=$17`
	cmd, err := r.pool.Exec(ctx, query,
		concern.DepartmentID,
		concern.FacilityID,
		concern.Subject,
		concern.Description,
		concern.Type,
		concern.Status,
		concern.Priority,
		concern.AssignedTo,
		concern.AutoApproved,
		concern.AutoClosed,
		concern.ClosedBy,
		concern.ApprovedAt,
		concern.ResolvedAt,
		concern.StudentResolvedAt,
		concern.Rating,
		concern.Archived,
		concern.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *concernRepository) GetByID(ctx context.Context, id string) (*domain.Concern, error) {
	query := fmt.Sprintf(`SELECT %s FROM concerns WHERE id=$1`, concernColumns)
	var concern domain.Concern
	if err := r.pool.QueryRow(ctx, query, id).Scan(scanTargets(&concern)...); err != nil {
		return nil, err
	}
	return &concern, nil
}

func (r *concernRepository) ListWithFilter(ctx context.Context, filter ConcernFilter) ([]domain.Concern, error) {
	base := fmt.Sprintf(`SELECT %s FROM concerns`, concernColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SubmitterID != nil {
		args = append(args, *filter.SubmitterID)
		clauses = append(clauses, fmt.Sprintf("submitter_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.HasAssignee != nil {
		if *filter.HasAssignee {
			clauses = append(clauses, "assigned_to IS NOT NULL")
		} else {
			clauses = append(clauses, "assigned_to IS NULL")
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, ct := range filter.Types {
			args = append(args, ct)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("concern_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		clauses = append(clauses, fmt.Sprintf("archived=$%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.StudentResolvedBefore != nil {
		args = append(args, *filter.StudentResolvedBefore)
		clauses = append(clauses, fmt.Sprintf("student_resolved_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Concern
	for rows.Next() {
		var concern domain.Concern
		if err := rows.Scan(scanTargets(&concern)...); err != nil {
			return nil, err
		}
		result = append(result, concern)
	}
	return result, rows.Err()
}

func (r *concernRepository) CountActiveByStaff(ctx context.Context, staffID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM concerns WHERE assigned_to=$1 AND %s`, activeStatusClause)
	var count int
	if err := r.pool.QueryRow(ctx, query, staffID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *concernRepository) CountActiveByDepartment(ctx context.Context, departmentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM concerns WHERE department_id=$1 AND %s`, activeStatusClause)
	var count int
	if err := r.pool.QueryRow(ctx, query, departmentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *concernRepository) AverageResolutionHours(ctx context.Context, staffID string, since time.Time) (float64, bool, error) {
	const query = `
        SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600.0)
        FROM concerns
        WHERE assigned_to=$1 AND resolved_at IS NOT NULL AND resolved_at >= $2`
	var avg *float64
	if err := r.pool.QueryRow(ctx, query, staffID, since).Scan(&avg); err != nil {
		return 0, false, err
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

func (r *concernRepository) UpdatePriority(ctx context.Context, id string, priority domain.ConcernPriority) error {
	const query = `UPDATE concerns SET priority=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, priority, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *concernRepository) Assign(ctx context.Context, id, staffID string, reassignment bool, at time.Time) error {
	var query string
	args := []any{staffID, id}
	if reassignment {
		query = `UPDATE concerns SET assigned_to=$1, reassigned_at=$3, updated_at=NOW() WHERE id=$2`
		args = append(args, at)
	} else {
		query = `UPDATE concerns SET assigned_to=$1, updated_at=NOW() WHERE id=$2`
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *concernRepository) MarkEscalated(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	const query = `
        UPDATE concerns SET escalated_at=$1, escalation_reason=$2, updated_at=NOW()
        WHERE id=$3 AND escalated_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, reason, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *concernRepository) MarkOverdue(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE concerns SET overdue_at=$1, updated_at=NOW()
        WHERE id=$2 AND overdue_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *concernRepository) Close(ctx context.Context, id, closedBy string, auto bool, at time.Time) error {
	const query = `
        UPDATE concerns SET status='CLOSED', closed_by=$1, auto_closed=$2, updated_at=$3 WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, closedBy, auto, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTargets(concern *domain.Concern) []any {
	return []any{
		&concern.ID,
		&concern.ExternalKey,
		&concern.SubmitterID,
		&concern.DepartmentID,
		&concern.FacilityID,
		&concern.Subject,
		&concern.Description,
		&concern.Type,
		&concern.Status,
		&concern.Priority,
		&concern.AssignedTo,
		&concern.EscalatedAt,
		&concern.EscalationReason,
		&concern.OverdueAt,
		&concern.ReassignedAt,
		&concern.AutoApproved,
		&concern.AutoClosed,
		&concern.ClosedBy,
		&concern.ApprovedAt,
		&concern.ResolvedAt,
		&concern.StudentResolvedAt,
		&concern.Rating,
		&concern.Archived,
		&concern.CreatedAt,
		&concern.UpdatedAt,
	}
}
