// Package memory is a transactional in-process implementation of the ledger
// repositories, used with store.driver=memory and by service tests.
//
// All access is serialized through one lock. A transaction holds the lock
// from Begin until Commit or Rollback and records undo steps, so rollback
// leaves no partial state. Methods that take a pgx.Tx must be given a
// transaction from the same Store; methods without one acquire the lock
// themselves and must not be called while the calling goroutine has a
// transaction open.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds every table of the ledger.
type Store struct {
	lock chan struct{}
	now  func() time.Time

	wallets     map[string]*domain.Wallet
	entries     []domain.LedgerEntry
	entryRefs   map[string]int
	seq         int64
	orders      map[string]*domain.Order
	offline     map[uuid.UUID]*domain.OfflineRequest
	offlineUTR  map[string]uuid.UUID
	idempotency map[string]*domain.IdempotencyRecord
	audit       []domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		lock:        make(chan struct{}, 1),
		now:         func() time.Time { return time.Now().UTC() },
		wallets:     make(map[string]*domain.Wallet),
		entryRefs:   make(map[string]int),
		orders:      make(map[string]*domain.Order),
		offline:     make(map[uuid.UUID]*domain.OfflineRequest),
		offlineUTR:  make(map[string]uuid.UUID),
		idempotency: make(map[string]*domain.IdempotencyRecord),
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.lock
}

// view runs fn under the store lock.
func (s *Store) view(ctx context.Context, fn func() error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn()
}

// inTx resolves tx to this store's transaction.
func (s *Store) inTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errForeignTx
	}
	if mt.done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &memTx{store: s}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// memTx is the pgx.Tx handed out by Begin. Only Commit and Rollback are
// meaningful; the embedded interface is nil so SQL methods panic if called.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.release()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	t.store.release()
	return nil
}

// Snapshot is a consistent copy of balances and entries for consistency checks.
type Snapshot struct {
	Balances map[string]int64
	Entries  []domain.LedgerEntry
}

// Snapshot returns a copy of every wallet balance and the full entry log.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Balances: make(map[string]int64)}
	err := s.view(ctx, func() error {
		for id, w := range s.wallets {
			snap.Balances[id] = w.Balance
		}
		snap.Entries = append([]domain.LedgerEntry(nil), s.entries...)
		return nil
	})
	return snap, err
}
