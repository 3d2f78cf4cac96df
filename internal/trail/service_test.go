package trail

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"veritrail/internal/audit"
	"veritrail/internal/ledger"
	"veritrail/internal/ledger/mocks"
	"veritrail/internal/principal"
	"veritrail/internal/record"
	dErrors "veritrail/pkg/domain-errors"
)

const testAddress = "0x00000000000000000000000000000000000000aa"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	service    *Service
	ledger     *mocks.MockClient
	records    *record.MemoryStore
	principals *principal.MemoryStore
	caller     *principal.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	lc := mocks.NewMockClient(ctrl)
	records := record.NewMemoryStore()
	principals := principal.NewMemoryStore()
	auditor := audit.NewPublisher(audit.NewMemoryStore(), make(chan audit.Event, 64), testLogger())

	caller := &principal.Principal{
		CompanyName:   "Acme GmbH",
		LedgerAddress: testAddress,
		Email:         "ops@acme.test",
		IsActive:      true,
	}
	require.NoError(t, principals.Create(context.Background(), caller))

	return &fixture{
		service:    NewService(records, principals, lc, auditor, testLogger()),
		ledger:     lc,
		records:    records,
		principals: principals,
		caller:     caller,
	}
}

func (f *fixture) addRecord(t *testing.T, tokenID string, verified bool) *record.Record {
	t.Helper()
	rec := &record.Record{
		TokenID:     tokenID,
		PrincipalID: f.caller.ID,
		Type:        "INVOICE",
		AmountCents: 125000,
		Currency:    "EUR",
		DataHash:    "0xabcd000000000000000000000000000000000000000000000000000000000000",
		ContentHash: "0xcdef000000000000000000000000000000000000000000000000000000000000",
	}
	require.NoError(t, f.records.Create(context.Background(), rec))
	if verified {
		require.NoError(t, f.records.MarkVerified(context.Background(), tokenID, record.Confirmation{
			LedgerTxRef: "0xfeed", LedgerBlock: 1, GasUsed: 1, VerifiedAt: time.Now().UTC(),
		}))
	}
	return rec
}

func TestGetTrailAnnotations(t *testing.T) {
	f := newFixture(t)
	onLedger := f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", true)
	notOnLedger := f.addRecord(t, "TXN_20260314_1_PAYMENT_090200_BBBBBBBB", false)

	f.ledger.EXPECT().ReadTrail(gomock.Any(), testAddress).Return([]ledger.Entry{
		{TokenID: onLedger.TokenID, Principal: testAddress, Verified: true},
	}, nil)

	trail, err := f.service.GetTrail(context.Background(), f.caller, testAddress, 10, 0)
	require.NoError(t, err)

	require.Len(t, trail.Items, 2)
	assert.True(t, trail.LedgerOnline)
	assert.Equal(t, int64(2), trail.Total)

	byToken := map[string]Item{}
	for _, item := range trail.Items {
		byToken[item.Record.TokenID] = item
	}
	require.NotNil(t, byToken[onLedger.TokenID].LedgerVerified)
	assert.True(t, *byToken[onLedger.TokenID].LedgerVerified)
	require.NotNil(t, byToken[notOnLedger.TokenID].LedgerVerified)
	assert.False(t, *byToken[notOnLedger.TokenID].LedgerVerified)
}

func TestGetTrailLedgerOutageDegrades(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", true)

	f.ledger.EXPECT().ReadTrail(gomock.Any(), testAddress).Return(nil, ledger.ErrUnavailable)

	trail, err := f.service.GetTrail(context.Background(), f.caller, testAddress, 10, 0)
	require.NoError(t, err, "ledger outage never fails the trail read")

	assert.False(t, trail.LedgerOnline)
	require.Len(t, trail.Items, 1)
	assert.Nil(t, trail.Items[0].LedgerVerified, "annotation degrades to unknown")
	assert.Equal(t, record.StatusVerified, trail.Items[0].Record.Status, "local state still served")
}

func TestGetTrailAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.GetTrail(ctx, f.caller, "0x00000000000000000000000000000000000000bb", 10, 0)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	other := &principal.Principal{
		CompanyName:   "Other Ltd",
		LedgerAddress: "0x00000000000000000000000000000000000000cc",
		Email:         "ops@other.test",
		IsActive:      true,
	}
	require.NoError(t, f.principals.Create(ctx, other))
	_, err = f.service.GetTrail(ctx, f.caller, other.LedgerAddress, 10, 0)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))

	_, err = f.service.GetTrail(ctx, nil, testAddress, 10, 0)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, err = f.service.GetTrail(ctx, f.caller, "nonsense", 10, 0)
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", true)

	f.ledger.EXPECT().VerifyEntry(gomock.Any(), rec.TokenID, testAddress).
		Return(true, &ledger.Entry{TokenID: rec.TokenID, Verified: true}, nil)

	v, err := f.service.Verify(context.Background(), f.caller, rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusVerified, v.Record.Status)
	assert.True(t, v.LedgerVerified)
	require.NotNil(t, v.LedgerEntry)
}

func TestVerifyGuards(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", false)
	ctx := context.Background()

	_, err := f.service.Verify(ctx, f.caller, "TXN_20260314_1_INVOICE_090100_FFFFFFFF")
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))

	stranger := &principal.Principal{ID: 999, LedgerAddress: "0x00000000000000000000000000000000000000dd"}
	_, err = f.service.Verify(ctx, stranger, rec.TokenID)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func TestVerifyLedgerOutage(t *testing.T) {
	f := newFixture(t)
	rec := f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", false)

	f.ledger.EXPECT().VerifyEntry(gomock.Any(), rec.TokenID, testAddress).
		Return(false, nil, ledger.ErrUnavailable)

	v, err := f.service.Verify(context.Background(), f.caller, rec.TokenID)
	require.NoError(t, err, "local answer survives ledger outage")
	assert.False(t, v.LedgerVerified, "degrades to false, not an error")
	assert.Nil(t, v.LedgerEntry)
	assert.Equal(t, record.StatusPending, v.Record.Status)
}

func TestCheckIntegrity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := "TXN_20260314_1_INVOICE_090100_AAAAAAAA"
	hash := "0xcdef000000000000000000000000000000000000000000000000000000000000"

	f.ledger.EXPECT().VerifyIntegrity(gomock.Any(), tokenID, testAddress, hash).Return(true, nil)
	assert.True(t, f.service.CheckIntegrity(ctx, f.caller, tokenID, hash))

	f.ledger.EXPECT().VerifyIntegrity(gomock.Any(), tokenID, testAddress, hash).Return(false, nil)
	assert.False(t, f.service.CheckIntegrity(ctx, f.caller, tokenID, hash))

	f.ledger.EXPECT().VerifyIntegrity(gomock.Any(), tokenID, testAddress, hash).
		Return(false, ledger.ErrUnavailable)
	assert.False(t, f.service.CheckIntegrity(ctx, f.caller, tokenID, hash),
		"remote failure reads as unverified, never as an error")

	assert.False(t, f.service.CheckIntegrity(ctx, f.caller, tokenID, "cdef"), "hash without 0x prefix")
	assert.False(t, f.service.CheckIntegrity(ctx, nil, tokenID, hash))
}

func TestGetStats(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", true)
	f.addRecord(t, "TXN_20260314_1_PAYMENT_090200_BBBBBBBB", true)
	f.addRecord(t, "TXN_20260314_1_RECEIPT_090300_CCCCCCCC", false)
	pending := f.addRecord(t, "TXN_20260314_1_REFUND_090400_DDDDDDDD", false)
	require.NoError(t, f.records.MarkFailed(context.Background(), pending.TokenID, record.FailureLedgerUnavailable))

	f.ledger.EXPECT().CountEntries(gomock.Any(), testAddress).Return(int64(2), nil)

	stats, err := f.service.GetStats(context.Background(), f.caller, testAddress)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Verified)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.LedgerCount)
	assert.True(t, stats.LedgerOnline)
	assert.InDelta(t, 0.5, stats.VerificationRate, 1e-9)
}

func TestGetStatsLedgerOutage(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "TXN_20260314_1_INVOICE_090100_AAAAAAAA", true)

	f.ledger.EXPECT().CountEntries(gomock.Any(), testAddress).Return(int64(0), ledger.ErrUnavailable)

	stats, err := f.service.GetStats(context.Background(), f.caller, testAddress)
	require.NoError(t, err)
	assert.False(t, stats.LedgerOnline)
	assert.Zero(t, stats.LedgerCount)
	assert.Equal(t, int64(1), stats.Total)
}
