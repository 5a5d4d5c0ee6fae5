package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, retailer_id, balance, created_at, updated_at`

// GetByRetailerID fetches a wallet without locking. Returns nil, nil if the
// retailer has never been credited.
func (r *WalletRepo) GetByRetailerID(ctx context.Context, retailerID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE retailer_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, retailerID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by retailer: %w", err)
	}
	return w, nil
}

// EnsureForUpdate creates the wallet on first use and locks it.
// This MUST be called within a transaction.
func (r *WalletRepo) EnsureForUpdate(ctx context.Context, tx pgx.Tx, retailerID string) (*domain.Wallet, error) {
	insert := `INSERT INTO wallets (id, retailer_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (retailer_id) DO NOTHING`

	if _, err := tx.Exec(ctx, insert, uuid.New(), retailerID); err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE retailer_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, retailerID))
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("lock wallet: wallet for %s vanished", retailerID)
	}
	return w, nil
}

// UpdateBalance writes the new balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.RetailerID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
