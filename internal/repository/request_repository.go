package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/facility-requests/internal/domain"
)

type requestRepository struct {
	db DBTX
}

func (r *requestRepository) Create(ctx context.Context, req *domain.FacilityRequest) error {
	const query = `
        INSERT INTO facility_requests (user_id, location, description, severity, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		req.UserID,
		req.Location,
		req.Description,
		req.Severity,
		req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	return wrapf(err, "create request")
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.FacilityRequest, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT r.id, r.user_id, r.location, r.description, r.severity, r.status, r.created_at, r.updated_at,
               u.id, u.name, u.email, u.department, u.job_title,
               (SELECT COUNT(*) FROM request_responses rr WHERE rr.request_id = r.id)
        FROM facility_requests r
        JOIN users u ON u.id = r.user_id
        WHERE r.id=$1`

	var (
		req   domain.FacilityRequest
		owner domain.UserProfile
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.UserID,
		&req.Location,
		&req.Description,
		&req.Severity,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&owner.ID,
		&owner.Name,
		&owner.Email,
		&owner.Department,
		&owner.JobTitle,
		&req.ResponseCount,
	); err != nil {
		return nil, wrapf(notFound(err), "get request %s", id)
	}
	req.Owner = &owner
	return &req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]domain.FacilityRequest, error) {
	if filter.UserID != nil && !validID(*filter.UserID) {
		return []domain.FacilityRequest{}, nil
	}
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`
        SELECT r.id, r.user_id, r.location, r.description, r.severity, r.status, r.created_at, r.updated_at,
               u.id, u.name, u.email, u.department, u.job_title,
               (SELECT COUNT(*) FROM request_responses rr WHERE rr.request_id = r.id),
               latest.id, latest.message, latest.created_at
        FROM facility_requests r
        JOIN users u ON u.id = r.user_id
        LEFT JOIN LATERAL (
            SELECT id, message, created_at FROM request_responses
            WHERE request_id = r.id
            ORDER BY created_at DESC
            LIMIT 1
        ) latest ON TRUE
        WHERE %s
        ORDER BY r.created_at DESC`, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapf(err, "list requests")
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *requestRepository) CountByStatus(ctx context.Context, filter RequestFilter) (map[domain.RequestStatus]int, error) {
	if filter.UserID != nil && !validID(*filter.UserID) {
		return map[domain.RequestStatus]int{}, nil
	}
	where, args := filterClauses(filter)
	query := fmt.Sprintf(`SELECT r.status, COUNT(*) FROM facility_requests r WHERE %s GROUP BY r.status`, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapf(err, "count requests")
	}
	defer rows.Close()

	counts := make(map[domain.RequestStatus]int, len(domain.RequestStatuses))
	for rows.Next() {
		var (
			status domain.RequestStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE facility_requests SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return wrapf(err, "update request status")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *requestRepository) Touch(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE facility_requests SET updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return wrapf(err, "touch request")
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func filterClauses(filter RequestFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("r.user_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("r.status=$%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanSummaries(rows pgx.Rows) ([]domain.FacilityRequest, error) {
	result := []domain.FacilityRequest{}
	for rows.Next() {
		var (
			req             domain.FacilityRequest
			owner           domain.UserProfile
			latestID        *string
			latestMessage   *string
			latestCreatedAt *time.Time
		)
		if err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.Location,
			&req.Description,
			&req.Severity,
			&req.Status,
			&req.CreatedAt,
			&req.UpdatedAt,
			&owner.ID,
			&owner.Name,
			&owner.Email,
			&owner.Department,
			&owner.JobTitle,
			&req.ResponseCount,
			&latestID,
			&latestMessage,
			&latestCreatedAt,
		); err != nil {
			return nil, err
		}
		req.Owner = &owner
		if latestID != nil {
			req.Responses = []domain.RequestResponse{{
				ID:        *latestID,
				RequestID: req.ID,
				Message:   *latestMessage,
				CreatedAt: *latestCreatedAt,
			}}
		}
		result = append(result, req)
	}
	return result, rows.Err()
}
