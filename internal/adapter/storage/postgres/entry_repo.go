package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const referenceConstraint = "wallet_transactions_reference_key"

// EntryRepo implements ports.EntryRepository over the append-only
// wallet_transactions table.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

const entryColumns = `id, wallet_id, retailer_id, type, amount, meta, reference, balance_after, seq, created_at`

// Append inserts an entry inside the caller's transaction. seq is drawn
// while the wallet row lock is held, so per-wallet seq order is commit order.
func (r *EntryRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal entry meta: %w", err)
	}

	query := `INSERT INTO wallet_transactions (id, wallet_id, retailer_id, type, amount, meta, reference, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq, created_at`

	err = tx.QueryRow(ctx, query,
		e.ID, e.WalletID, e.RetailerID, string(e.Type), e.Amount, meta, e.Reference, e.BalanceAfter,
	).Scan(&e.Seq, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, referenceConstraint) {
			return fmt.Errorf("append entry %v: %w", derefString(e.Reference), ports.ErrDuplicate)
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

// GetByReference fetches the entry carrying a unique reference.
func (r *EntryRepo) GetByReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_transactions WHERE reference = $1`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry by reference: %w", err)
	}
	return e, nil
}

// List retrieves a page of a retailer's entries, newest first, with the total count.
func (r *EntryRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("retailer_id = $%d", argIdx))
	args = append(args, params.RetailerID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM wallet_transactions %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM wallet_transactions %s ORDER BY seq DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	entries, err := r.query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Recent returns the latest limit entries of a retailer, newest first.
func (r *EntryRepo) Recent(ctx context.Context, retailerID string, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_transactions
		WHERE retailer_id = $1 ORDER BY seq DESC LIMIT $2`
	return r.query(ctx, query, retailerID, limit)
}

func (r *EntryRepo) query(ctx context.Context, sql string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	var meta []byte
	err := row.Scan(
		&e.ID, &e.WalletID, &e.RetailerID, &e.Type, &e.Amount,
		&meta, &e.Reference, &e.BalanceAfter, &e.Seq, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("decode entry meta: %w", err)
		}
	}
	return e, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
