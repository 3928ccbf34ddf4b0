package repository

import (
	"context"

	"github.com/spec-kit/facility-requests/internal/domain"
)

type responseRepository struct {
	db DBTX
}

func (r *responseRepository) Create(ctx context.Context, resp *domain.RequestResponse) error {
	const query = `
        INSERT INTO request_responses (request_id, message)
        VALUES ($1,$2)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query, resp.RequestID, resp.Message).Scan(&resp.ID, &resp.CreatedAt)
	return wrapf(err, "create response")
}

func (r *responseRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.RequestResponse, error) {
	if !validID(requestID) {
		return []domain.RequestResponse{}, nil
	}
	const query = `
        SELECT id, request_id, message, created_at
        FROM request_responses WHERE request_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, wrapf(err, "list responses")
	}
	defer rows.Close()

	result := []domain.RequestResponse{}
	for rows.Next() {
		var resp domain.RequestResponse
		if err := rows.Scan(
			&resp.ID,
			&resp.RequestID,
			&resp.Message,
			&resp.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, rows.Err()
}
