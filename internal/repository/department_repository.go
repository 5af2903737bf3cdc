package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studentlink/concern-service/internal/domain"
)

// DepartmentRepository handles persistence for departments.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Department, error)
	GetHead(ctx context.Context, departmentID string) (*domain.StaffMember, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository instantiates the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	const query = `
        SELECT id, name, description, head_staff_id, is_active, created_at, updated_at
        FROM departments WHERE id=$1`
	var dept domain.Department
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&dept.ID,
		&dept.Name,
		&dept.Description,
		&dept.HeadStaffID,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) List(ctx context.Context, activeOnly bool) ([]domain.Department, error) {
	query := `
        SELECT id, name, description, head_staff_id, is_active, created_at, updated_at
        FROM departments`
	if activeOnly {
		query += ` WHERE is_active=TRUE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		var dept domain.Department
		if err := rows.Scan(
			&dept.ID,
			&dept.Name,
			&dept.Description,
			&dept.HeadStaffID,
			&dept.IsActive,
			&dept.CreatedAt,
			&dept.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, dept)
	}
	return result, rows.Err()
}

func (r *departmentRepository) GetHead(ctx context.Context, departmentID string) (*domain.StaffMember, error) {
	const query = `
        SELECT s.id, s.name, s.email, s.title, s.department_id, s.active_flag, s.cross_department_flag,
               s.created_at, s.updated_at
        FROM departments d
        JOIN staff_members s ON s.id = d.head_staff_id
        WHERE d.id=$1`
	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, departmentID).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.Title,
		&staff.DepartmentID,
		&staff.Active,
		&staff.CanHandleCrossDepartment,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
