package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	commitErr error
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return m.commitErr }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// fakeGateway is an in-process payment provider whose order states are set by the test.
type fakeGateway struct {
	mu          sync.Mutex
	seq         int
	statuses    map[string]domain.GatewayStatus
	createErr   error
	statusErr   error
	statusDelay time.Duration
	statusCalls atomic.Int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]domain.GatewayStatus)}
}

func (g *fakeGateway) CreateOrder(_ context.Context, in ports.GatewayOrderInput) (*ports.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	id := fmt.Sprintf("ORD-%04d", g.seq)
	g.statuses[id] = domain.GatewayStatusCreated
	return &ports.GatewayOrder{
		OrderID:          id,
		PaymentURL:       "https://pay.example.com/" + id,
		GatewayReference: "REF-" + id,
	}, nil
}

func (g *fakeGateway) GetOrderStatus(ctx context.Context, orderID string) (*ports.GatewayOrderStatus, error) {
	g.statusCalls.Add(1)
	if g.statusDelay > 0 {
		select {
		case <-time.After(g.statusDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	st, ok := g.statuses[orderID]
	if !ok {
		return nil, errors.New("unknown order")
	}
	return &ports.GatewayOrderStatus{Status: st, GatewayReference: "UTR-" + orderID}, nil
}

func (g *fakeGateway) set(orderID string, st domain.GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = st
}

func (g *fakeGateway) failWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusErr = err
}

// memEnv wires every service over one in-memory store.
type memEnv struct {
	store   *memory.Store
	gateway *fakeGateway
	ledger  *LedgerServiceImpl
	online  *OnlineRechargeServiceImpl
	offline *OfflineRechargeServiceImpl
	query   *QueryServiceImpl
	orders  *memory.OrderRepo
}

func newMemEnv(t *testing.T) *memEnv {
	t.Helper()
	store := memory.NewStore()
	gw := newFakeGateway()
	return newMemEnvOn(store, gw)
}

// newMemEnvOn builds a second set of services over an existing store,
// standing in for another instance of the API process.
func newMemEnvOn(store *memory.Store, gw *fakeGateway) *memEnv {
	log := newTestLogger()
	wallets := memory.NewWalletRepo(store)
	entries := memory.NewEntryRepo(store)
	orders := memory.NewOrderRepo(store)
	requests := memory.NewOfflineRequestRepo(store)
	idem := memory.NewIdempotencyRepo(store)

	ledger := NewLedgerService(wallets, entries, idem, nil, store, nil, log)
	return &memEnv{
		store:   store,
		gateway: gw,
		ledger:  ledger,
		online:  NewOnlineRechargeService(orders, entries, ledger, gw, store, nil, log),
		offline: NewOfflineRechargeService(requests, ledger, store, nil, log),
		query:   NewQueryService(wallets, entries, requests),
		orders:  orders,
	}
}

// assertLedgerConsistent checks that every balance equals the signed sum of
// its entries, that no balance is negative and that references are unique.
func assertLedgerConsistent(t *testing.T, store *memory.Store) {
	t.Helper()
	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)

	sums := make(map[string]int64)
	refs := make(map[string]bool)
	for i := range snap.Entries {
		e := snap.Entries[i]
		sums[e.RetailerID] += e.Signed()
		if e.Reference != nil {
			assert.False(t, refs[*e.Reference], "reference %s applied twice", *e.Reference)
			refs[*e.Reference] = true
		}
	}
	for id, balance := range snap.Balances {
		assert.GreaterOrEqual(t, balance, int64(0), id)
		assert.Equal(t, sums[id], balance, "balance of %s must equal its entries", id)
	}
}

func retailer(id string) domain.Caller {
	return domain.Caller{ID: id, Role: domain.RoleRetailer}
}

func admin(id string) domain.Caller {
	return domain.Caller{ID: id, Role: domain.RoleAdmin}
}
