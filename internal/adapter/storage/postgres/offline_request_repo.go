package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const utrConstraint = "offline_recharge_requests_utr_key"

// OfflineRequestRepo implements ports.OfflineRequestRepository.
type OfflineRequestRepo struct {
	pool Pool
}

// NewOfflineRequestRepo creates a new OfflineRequestRepo.
func NewOfflineRequestRepo(pool Pool) *OfflineRequestRepo {
	return &OfflineRequestRepo{pool: pool}
}

const offlineColumns = `id, retailer_id, amount, bank, utr, payment_date, mode, status, admin_remarks, processed_by, processed_at, created_at, updated_at`

// Create inserts a pending request. The unique index on utr is the final
// arbiter between concurrent submissions.
func (r *OfflineRequestRepo) Create(ctx context.Context, req *domain.OfflineRequest) error {
	query := `INSERT INTO offline_recharge_requests (id, retailer_id, amount, bank, utr, payment_date, mode, status, admin_remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.RetailerID, req.Amount, req.Bank, req.UTR, req.PaymentDate,
		string(req.Mode), string(req.Status), req.AdminRemarks, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, utrConstraint) {
			return fmt.Errorf("insert offline request utr %s: %w", req.UTR, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert offline request: %w", err)
	}
	return nil
}

// GetByID fetches a request by id.
func (r *OfflineRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OfflineRequest, error) {
	query := `SELECT ` + offlineColumns + ` FROM offline_recharge_requests WHERE id = $1`
	return r.getOne(ctx, "get offline request", query, id)
}

// GetByUTR fetches a request by its normalized UTR.
func (r *OfflineRequestRepo) GetByUTR(ctx context.Context, utr string) (*domain.OfflineRequest, error) {
	query := `SELECT ` + offlineColumns + ` FROM offline_recharge_requests WHERE utr = $1`
	return r.getOne(ctx, "get offline request by utr", query, utr)
}

// Decide is a compare-and-set from pending, run inside the caller's transaction.
func (r *OfflineRequestRepo) Decide(ctx context.Context, tx pgx.Tx, d ports.OfflineDecision) (*domain.OfflineRequest, error) {
	query := `UPDATE offline_recharge_requests
		SET status = $1, admin_remarks = $2, processed_by = $3, processed_at = $4, updated_at = $4
		WHERE id = $5 AND status = 'pending'
		RETURNING ` + offlineColumns

	req, err := scanOffline(tx.QueryRow(ctx, query,
		string(d.Status), d.Remarks, d.ProcessedBy, d.ProcessedAt, d.ID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decide offline request %s: %w", d.ID, ports.ErrConflict)
		}
		return nil, fmt.Errorf("decide offline request: %w", err)
	}
	return req, nil
}

// List retrieves a page of requests, newest first.
func (r *OfflineRequestRepo) List(ctx context.Context, params ports.OfflineListParams) ([]domain.OfflineRequest, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.RetailerID != nil {
		conditions = append(conditions, fmt.Sprintf("retailer_id = $%d", argIdx))
		args = append(args, *params.RetailerID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM offline_recharge_requests %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count offline requests: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM offline_recharge_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		offlineColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	reqs, err := r.query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

// ListPending returns the approval queue, oldest first.
func (r *OfflineRequestRepo) ListPending(ctx context.Context, limit int) ([]domain.OfflineRequest, error) {
	query := `SELECT ` + offlineColumns + ` FROM offline_recharge_requests
		WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`
	return r.query(ctx, query, limit)
}

// CountPending counts a retailer's undecided requests.
func (r *OfflineRequestRepo) CountPending(ctx context.Context, retailerID string) (int64, error) {
	query := `SELECT COUNT(*) FROM offline_recharge_requests WHERE retailer_id = $1 AND status = 'pending'`

	var n int64
	if err := r.pool.QueryRow(ctx, query, retailerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending offline requests: %w", err)
	}
	return n, nil
}

func (r *OfflineRequestRepo) getOne(ctx context.Context, op, query string, arg any) (*domain.OfflineRequest, error) {
	req, err := scanOffline(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

func (r *OfflineRequestRepo) query(ctx context.Context, sql string, args ...any) ([]domain.OfflineRequest, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list offline requests: %w", err)
	}
	defer rows.Close()

	reqs := make([]domain.OfflineRequest, 0)
	for rows.Next() {
		req, err := scanOffline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offline request row: %w", err)
		}
		reqs = append(reqs, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offline request rows: %w", err)
	}
	return reqs, nil
}

func scanOffline(row pgx.Row) (*domain.OfflineRequest, error) {
	req := &domain.OfflineRequest{}
	err := row.Scan(
		&req.ID, &req.RetailerID, &req.Amount, &req.Bank, &req.UTR, &req.PaymentDate,
		&req.Mode, &req.Status, &req.AdminRemarks, &req.ProcessedBy, &req.ProcessedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}
