package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ems-leave-api/internal/models"
)

// DepartmentRepository provides read access to the department directory.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetByID fetches a department by identifier.
func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, name, chief_id, active, created_at, updated_at FROM departments WHERE id = $1 LIMIT 1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by id: %w", err)
	}
	return &department, nil
}

// Exists reports whether an active department with the given id exists.
func (r *DepartmentRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1 AND active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("check department exists: %w", err)
	}
	return exists, nil
}
