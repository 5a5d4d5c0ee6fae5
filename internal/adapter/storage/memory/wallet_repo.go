package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func (r *WalletRepo) GetByRetailerID(ctx context.Context, retailerID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.s.view(ctx, func() error {
		if w, ok := r.s.wallets[retailerID]; ok {
			cp := *w
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *WalletRepo) EnsureForUpdate(_ context.Context, tx pgx.Tx, retailerID string) (*domain.Wallet, error) {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return nil, err
	}

	w, ok := r.s.wallets[retailerID]
	if !ok {
		now := r.s.now()
		w = &domain.Wallet{
			ID:         uuid.New(),
			RetailerID: retailerID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		r.s.wallets[retailerID] = w
		mt.onRollback(func() { delete(r.s.wallets, retailerID) })
	}
	cp := *w
	return &cp, nil
}

func (r *WalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	mt, err := r.s.inTx(tx)
	if err != nil {
		return err
	}
	if balance < 0 {
		return fmt.Errorf("update wallet balance: negative balance %d", balance)
	}

	for _, w := range r.s.wallets {
		if w.ID != walletID {
			continue
		}
		prev, prevAt := w.Balance, w.UpdatedAt
		w.Balance = balance
		w.UpdatedAt = r.s.now()
		mt.onRollback(func() {
			w.Balance = prev
			w.UpdatedAt = prevAt
		})
		return nil
	}
	return fmt.Errorf("wallet not found: %s", walletID)
}
