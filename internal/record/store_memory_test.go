package record

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritrail/pkg/platform/sentinel"
)

func newTestRecord(tokenID string, principalID int64) *Record {
	return &Record{
		TokenID:     tokenID,
		PrincipalID: principalID,
		Type:        "INVOICE",
		AmountCents: 125000,
		Currency:    "EUR",
		Description: "quarterly invoice",
		DataHash:    "0xabcd000000000000000000000000000000000000000000000000000000000000",
		ContentHash: "0xcdef000000000000000000000000000000000000000000000000000000000000",
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))
	assert.Equal(t, StatusPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetByTokenID(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, rec.TokenID, got.TokenID)
	assert.Equal(t, StatusPending, got.Status)
	assert.False(t, got.IsVerified)
	assert.Nil(t, got.VerifiedAt)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))

	err := store.Create(ctx, newTestRecord(rec.TokenID, 42))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetByTokenID(context.Background(), "TXN_20260314_42_INVOICE_092653_FFFFFFFF")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_MarkVerified(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))

	verifiedAt := time.Date(2026, 3, 14, 9, 27, 0, 0, time.UTC)
	conf := Confirmation{
		LedgerTxRef: "0xfeed",
		LedgerBlock: 1042,
		GasUsed:     21000,
		VerifiedAt:  verifiedAt,
	}
	require.NoError(t, store.MarkVerified(ctx, rec.TokenID, conf))

	got, err := store.GetByTokenID(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, got.Status)
	assert.True(t, got.IsVerified)
	assert.Equal(t, "0xfeed", got.LedgerTxRef)
	assert.Equal(t, int64(1042), got.LedgerBlock)
	assert.Equal(t, int64(21000), got.GasUsed)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, verifiedAt, *got.VerifiedAt)
	assert.Empty(t, got.FailureKind)
}

func TestMemoryStore_MarkFailed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))

	require.NoError(t, store.MarkFailed(ctx, rec.TokenID, FailureConfirmationTimeout))

	got, err := store.GetByTokenID(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, FailureConfirmationTimeout, got.FailureKind)
	assert.False(t, got.IsVerified)
}

func TestMemoryStore_VerifiedIsTerminal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.MarkVerified(ctx, rec.TokenID, Confirmation{
		LedgerTxRef: "0xfeed", LedgerBlock: 1, GasUsed: 1, VerifiedAt: time.Now().UTC(),
	}))

	err := store.MarkFailed(ctx, rec.TokenID, FailureLedgerUnavailable)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	err = store.MarkVerified(ctx, rec.TokenID, Confirmation{VerifiedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)

	got, err := store.GetByTokenID(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, got.Status)
}

func TestMemoryStore_FailedAllowsResubmitVerify(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("TXN_20260314_42_INVOICE_092653_AB12CD34", 42)
	require.NoError(t, store.Create(ctx, rec))
	require.NoError(t, store.MarkFailed(ctx, rec.TokenID, FailureLedgerUnavailable))

	require.NoError(t, store.MarkVerified(ctx, rec.TokenID, Confirmation{
		LedgerTxRef: "0xfeed", LedgerBlock: 7, GasUsed: 21000, VerifiedAt: time.Now().UTC(),
	}))

	got, err := store.GetByTokenID(ctx, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, got.Status)
	assert.Empty(t, got.FailureKind)
}

func TestMemoryStore_TransitionOnMissingRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.MarkVerified(ctx, "TXN_20260314_42_INVOICE_092653_FFFFFFFF", Confirmation{})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	err = store.MarkFailed(ctx, "TXN_20260314_42_INVOICE_092653_FFFFFFFF", FailureLedgerRejected)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStore_ListByPrincipal(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := base
	store := NewMemoryStore().WithClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	})
	ctx := context.Background()

	tokens := []string{
		"TXN_20260314_42_INVOICE_090100_AAAAAAAA",
		"TXN_20260314_42_PAYMENT_090200_BBBBBBBB",
		"TXN_20260314_42_RECEIPT_090300_CCCCCCCC",
	}
	for _, id := range tokens {
		require.NoError(t, store.Create(ctx, newTestRecord(id, 42)))
	}
	require.NoError(t, store.Create(ctx, newTestRecord("TXN_20260314_7_INVOICE_090400_DDDDDDDD", 7)))

	listed, err := store.ListByPrincipal(ctx, 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	// Newest first.
	assert.Equal(t, tokens[2], listed[0].TokenID)
	assert.Equal(t, tokens[0], listed[2].TokenID)

	page, err := store.ListByPrincipal(ctx, 42, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, tokens[1], page[0].TokenID)

	count, err := store.CountByPrincipal(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_CountByStatusAndListPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	pending := newTestRecord("TXN_20260314_42_INVOICE_090100_AAAAAAAA", 42)
	verified := newTestRecord("TXN_20260314_42_PAYMENT_090200_BBBBBBBB", 42)
	failed := newTestRecord("TXN_20260314_42_RECEIPT_090300_CCCCCCCC", 42)
	for _, rec := range []*Record{pending, verified, failed} {
		require.NoError(t, store.Create(ctx, rec))
	}
	require.NoError(t, store.MarkVerified(ctx, verified.TokenID, Confirmation{VerifiedAt: time.Now().UTC()}))
	require.NoError(t, store.MarkFailed(ctx, failed.TokenID, FailureLedgerRejected))

	for _, tc := range []struct {
		status Status
		want   int64
	}{
		{StatusPending, 1},
		{StatusVerified, 1},
		{StatusFailed, 1},
	} {
		count, err := store.CountByStatus(ctx, 42, tc.status)
		require.NoError(t, err)
		assert.Equal(t, tc.want, count, "status %s", tc.status)
	}

	pendingList, err := store.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pendingList, 1)
	assert.Equal(t, pending.TokenID, pendingList[0].TokenID)
}
