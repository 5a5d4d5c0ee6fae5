package service

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type queryTestDeps struct {
	svc         *QueryServiceImpl
	walletRepo  *mocks.MockWalletRepository
	entryRepo   *mocks.MockEntryRepository
	requestRepo *mocks.MockOfflineRequestRepository
}

func setupQueryService(t *testing.T) *queryTestDeps {
	ctrl := gomock.NewController(t)
	d := &queryTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		entryRepo:   mocks.NewMockEntryRepository(ctrl),
		requestRepo: mocks.NewMockOfflineRequestRepository(ctrl),
	}
	d.svc = NewQueryService(d.walletRepo, d.entryRepo, d.requestRepo)
	return d
}

func TestQueryService_GetTransactions_Pagination(t *testing.T) {
	tests := []struct {
		name         string
		page, size   int
		wantPage     int
		wantPageSize int
	}{
		{"defaults", 0, 0, 1, defaultPageSize},
		{"explicit", 3, 10, 3, 10},
		{"clamped", 2, 1000, 2, maxPageSize},
		{"negative", -4, -1, 1, defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupQueryService(t)
			ctx := context.Background()
			d.entryRepo.EXPECT().List(ctx, ports.EntryListParams{
				RetailerID: "r-1", Page: tt.wantPage, PageSize: tt.wantPageSize,
			}).Return([]domain.LedgerEntry{{Amount: 1}}, int64(41), nil)

			entries, total, err := d.svc.GetTransactions(ctx, ports.EntryListParams{
				RetailerID: "r-1", Page: tt.page, PageSize: tt.size,
			})
			require.NoError(t, err)
			assert.Len(t, entries, 1)
			assert.Equal(t, int64(41), total)
		})
	}
}

func TestQueryService_GetTransactions_Validation(t *testing.T) {
	d := setupQueryService(t)
	bogus := domain.EntryType("refund")

	_, _, err := d.svc.GetTransactions(context.Background(), ports.EntryListParams{})
	assertAppError(t, err, "VAL_001")

	_, _, err = d.svc.GetTransactions(context.Background(), ports.EntryListParams{RetailerID: "r-1", Type: &bogus})
	assertAppError(t, err, "VAL_001")
}

func TestQueryService_GetRecentTransactions_Limits(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 5},
		{-3, 5},
		{10, 10},
		{50, 50},
		{51, 50},
	}
	for _, tt := range tests {
		d := setupQueryService(t)
		d.entryRepo.EXPECT().Recent(gomock.Any(), "r-1", tt.want).Return(nil, nil)

		_, err := d.svc.GetRecentTransactions(context.Background(), "r-1", tt.n)
		require.NoError(t, err)
	}
}

func TestQueryService_ListOfflineRequests(t *testing.T) {
	d := setupQueryService(t)
	ctx := context.Background()
	pending := domain.OfflineStatusPending

	d.requestRepo.EXPECT().List(ctx, ports.OfflineListParams{Status: &pending, Page: 1, PageSize: defaultPageSize}).
		Return([]domain.OfflineRequest{{UTR: "U1"}}, int64(1), nil)

	reqs, total, err := d.svc.ListOfflineRequests(ctx, ports.OfflineListParams{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, int64(1), total)

	bogus := domain.OfflineStatus("cancelled")
	_, _, err = d.svc.ListOfflineRequests(ctx, ports.OfflineListParams{Status: &bogus})
	assertAppError(t, err, "VAL_001")
}

func TestQueryService_GetPendingWalletRecharges(t *testing.T) {
	d := setupQueryService(t)
	d.requestRepo.EXPECT().ListPending(gomock.Any(), pendingQueueLimit).Return(nil, errors.New("db down"))

	_, err := d.svc.GetPendingWalletRecharges(context.Background())
	assertAppError(t, err, "SYS_002")
}

func TestQueryService_GetWalletSummary(t *testing.T) {
	d := setupQueryService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByRetailerID(ctx, "r-1").Return(&domain.Wallet{Balance: 12345}, nil)
	d.requestRepo.EXPECT().CountPending(ctx, "r-1").Return(int64(2), nil)
	d.entryRepo.EXPECT().Recent(ctx, "r-1", defaultRecent).Return([]domain.LedgerEntry{{Amount: 5}}, nil)

	s, err := d.svc.GetWalletSummary(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), s.Balance)
	assert.Equal(t, int64(2), s.PendingOffline)
	assert.Len(t, s.RecentEntries, 1)
}

func TestQueryService_GetWalletSummary_NewRetailer(t *testing.T) {
	d := setupQueryService(t)
	ctx := context.Background()

	d.walletRepo.EXPECT().GetByRetailerID(ctx, "r-new").Return(nil, nil)
	d.requestRepo.EXPECT().CountPending(ctx, "r-new").Return(int64(0), nil)
	d.entryRepo.EXPECT().Recent(ctx, "r-new", defaultRecent).Return(nil, nil)

	s, err := d.svc.GetWalletSummary(ctx, "r-new")
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Balance)
	assert.NotNil(t, s.RecentEntries, "empty list, not null, in JSON")
}

func TestQueryService_ListMyOfflineRequests(t *testing.T) {
	d := setupQueryService(t)
	ctx := context.Background()

	d.requestRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.OfflineListParams) ([]domain.OfflineRequest, int64, error) {
			require.NotNil(t, p.RetailerID)
			assert.Equal(t, "r-7", *p.RetailerID)
			assert.Nil(t, p.Status)
			assert.Equal(t, 1, p.Page)
			assert.Equal(t, defaultPageSize, p.PageSize)
			return nil, 0, nil
		})

	_, _, err := d.svc.ListMyOfflineRequests(ctx, "r-7", 0, 0)
	require.NoError(t, err)

	_, _, err = d.svc.ListMyOfflineRequests(ctx, "", 1, 10)
	assertAppError(t, err, "VAL_001")
}
