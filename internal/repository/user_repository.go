package repository

import (
	"context"

	"github.com/spec-kit/facility-requests/internal/domain"
)

type userRepository struct {
	db DBTX
}

const userColumns = `id, email, name, image, department, job_title, role, created_at, updated_at`

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, name, image, department, job_title, role)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (email) DO UPDATE SET
            name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
            image = COALESCE(EXCLUDED.image, users.image),
            department = COALESCE(EXCLUDED.department, users.department),
            job_title = COALESCE(EXCLUDED.job_title, users.job_title),
            role = EXCLUDED.role,
            updated_at = NOW()
        RETURNING id, name, image, department, job_title, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.Email,
		user.Name,
		user.Image,
		user.Department,
		user.JobTitle,
		user.Role,
	).Scan(&user.ID, &user.Name, &user.Image, &user.Department, &user.JobTitle, &user.CreatedAt, &user.UpdatedAt)
	return wrapf(err, "upsert user")
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Image,
		&user.Department,
		&user.JobTitle,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, wrapf(notFound(err), "get user")
	}
	return &user, nil
}
