//go:build integration

package record_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veritrail/internal/platform/postgres"
	"veritrail/internal/record"
	"veritrail/pkg/platform/sentinel"
	txcontext "veritrail/pkg/platform/tx"
	"veritrail/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *record.PostgresStore
	principalID int64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.store = record.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx, "records", "audit_events", "principals"))

	err := s.postgres.DB.QueryRowContext(ctx, `
		INSERT INTO principals (company_name, ledger_address, email, api_key_hash)
		VALUES ('Acme GmbH', '0x00000000000000000000000000000000000000aa', 'ops@acme.test', 'hash')
		RETURNING id
	`).Scan(&s.principalID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newRecord(tokenID string) *record.Record {
	return &record.Record{
		TokenID:     tokenID,
		PrincipalID: s.principalID,
		Type:        "INVOICE",
		AmountCents: 125000,
		Currency:    "EUR",
		Description: "quarterly invoice",
		DataHash:    "0xabcd000000000000000000000000000000000000000000000000000000000000",
		ContentHash: "0xcdef000000000000000000000000000000000000000000000000000000000000",
		FileName:    "invoice.pdf",
		FileSize:    2048,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundTrip() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")

	s.Require().NoError(s.store.Create(ctx, rec))
	s.Equal(record.StatusPending, rec.Status)
	s.False(rec.CreatedAt.IsZero())

	got, err := s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	s.Equal(rec.TokenID, got.TokenID)
	s.Equal(rec.PrincipalID, got.PrincipalID)
	s.Equal(rec.AmountCents, got.AmountCents)
	s.Equal(rec.DataHash, got.DataHash)
	s.Equal("invoice.pdf", got.FileName)
	s.Equal(int64(2048), got.FileSize)
	s.Equal(record.StatusPending, got.Status)
	s.False(got.IsVerified)
	s.Nil(got.VerifiedAt)
}

func (s *PostgresStoreSuite) TestCreateDuplicateTokenID() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")
	s.Require().NoError(s.store.Create(ctx, rec))

	err := s.store.Create(ctx, s.newRecord(rec.TokenID))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestVerifiedIsTerminal() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")
	s.Require().NoError(s.store.Create(ctx, rec))

	conf := record.Confirmation{
		LedgerTxRef: "0xfeed",
		LedgerBlock: 1042,
		GasUsed:     21000,
		VerifiedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.store.MarkVerified(ctx, rec.TokenID, conf))

	s.ErrorIs(s.store.MarkFailed(ctx, rec.TokenID, record.FailureLedgerUnavailable), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.MarkVerified(ctx, rec.TokenID, conf), sentinel.ErrInvalidState)

	got, err := s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	s.Equal(record.StatusVerified, got.Status)
	s.True(got.IsVerified)
	s.Equal("0xfeed", got.LedgerTxRef)
	s.Empty(got.FailureKind)
}

func (s *PostgresStoreSuite) TestFailedThenResubmitVerify() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")
	s.Require().NoError(s.store.Create(ctx, rec))

	s.Require().NoError(s.store.MarkFailed(ctx, rec.TokenID, record.FailureConfirmationTimeout))
	got, err := s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	s.Equal(record.StatusFailed, got.Status)
	s.Equal(record.FailureConfirmationTimeout, got.FailureKind)

	s.Require().NoError(s.store.MarkVerified(ctx, rec.TokenID, record.Confirmation{
		LedgerTxRef: "0xfeed", LedgerBlock: 7, GasUsed: 21000, VerifiedAt: time.Now().UTC(),
	}))
	got, err = s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	s.Equal(record.StatusVerified, got.Status)
	s.Empty(got.FailureKind)
}

func (s *PostgresStoreSuite) TestTransitionOnMissingRecord() {
	ctx := context.Background()
	s.ErrorIs(s.store.MarkVerified(ctx, "TXN_20260314_42_INVOICE_092653_FFFFFFFF", record.Confirmation{VerifiedAt: time.Now()}), sentinel.ErrNotFound)
	s.ErrorIs(s.store.MarkFailed(ctx, "TXN_20260314_42_INVOICE_092653_FFFFFFFF", record.FailureLedgerRejected), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListByPrincipalOrderingAndPaging() {
	ctx := context.Background()
	tokens := []string{
		"TXN_20260314_42_INVOICE_090100_AAAAAAAA",
		"TXN_20260314_42_PAYMENT_090200_BBBBBBBB",
		"TXN_20260314_42_RECEIPT_090300_CCCCCCCC",
	}
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range tokens {
		rec := s.newRecord(id)
		s.Require().NoError(s.store.Create(ctx, rec))
		// Spread created_at so ordering is deterministic.
		_, err := s.postgres.DB.ExecContext(ctx,
			`UPDATE records SET created_at = $2 WHERE token_id = $1`,
			id, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
	}

	listed, err := s.store.ListByPrincipal(ctx, s.principalID, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 3)
	s.Equal(tokens[2], listed[0].TokenID)
	s.Equal(tokens[0], listed[2].TokenID)

	page, err := s.store.ListByPrincipal(ctx, s.principalID, 1, 1)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(tokens[1], page[0].TokenID)

	count, err := s.store.CountByPrincipal(ctx, s.principalID)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *PostgresStoreSuite) TestCountByStatusAndListPending() {
	ctx := context.Background()
	pending := s.newRecord("TXN_20260314_42_INVOICE_090100_AAAAAAAA")
	verified := s.newRecord("TXN_20260314_42_PAYMENT_090200_BBBBBBBB")
	failed := s.newRecord("TXN_20260314_42_RECEIPT_090300_CCCCCCCC")
	for _, rec := range []*record.Record{pending, verified, failed} {
		s.Require().NoError(s.store.Create(ctx, rec))
	}
	s.Require().NoError(s.store.MarkVerified(ctx, verified.TokenID, record.Confirmation{VerifiedAt: time.Now().UTC()}))
	s.Require().NoError(s.store.MarkFailed(ctx, failed.TokenID, record.FailureLedgerRejected))

	for _, tc := range []struct {
		status record.Status
		want   int64
	}{
		{record.StatusPending, 1},
		{record.StatusVerified, 1},
		{record.StatusFailed, 1},
	} {
		count, err := s.store.CountByStatus(ctx, s.principalID, tc.status)
		s.Require().NoError(err)
		s.Equal(tc.want, count, "status %s", tc.status)
	}

	pendingList, err := s.store.ListPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pendingList, 1)
	s.Equal(pending.TokenID, pendingList[0].TokenID)
}

// TestConcurrentFinalize verifies that racing verified/failed finalizers settle
// on exactly one terminal state.
func (s *PostgresStoreSuite) TestConcurrentFinalize() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")
	s.Require().NoError(s.store.Create(ctx, rec))

	const goroutines = 20
	var wg sync.WaitGroup
	var verifyWins atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				err := s.store.MarkVerified(ctx, rec.TokenID, record.Confirmation{
					LedgerTxRef: "0xfeed", LedgerBlock: 1, GasUsed: 1, VerifiedAt: time.Now().UTC(),
				})
				if err == nil {
					verifyWins.Add(1)
				}
			} else {
				_ = s.store.MarkFailed(ctx, rec.TokenID, record.FailureLedgerUnavailable)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	if verifyWins.Load() > 0 {
		s.Equal(record.StatusVerified, got.Status)
		s.True(got.IsVerified)
	} else {
		s.Equal(record.StatusFailed, got.Status)
	}
}

// TestRollbackLeavesRecordUntouched exercises the context-carried transaction:
// a rolled-back finalize must not change the stored status.
func (s *PostgresStoreSuite) TestRollbackLeavesRecordUntouched() {
	ctx := context.Background()
	rec := s.newRecord("TXN_20260314_42_INVOICE_092653_AB12CD34")
	s.Require().NoError(s.store.Create(ctx, rec))

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, tx)
	s.Require().NoError(s.store.MarkVerified(txCtx, rec.TokenID, record.Confirmation{
		LedgerTxRef: "0xfeed", LedgerBlock: 1, GasUsed: 1, VerifiedAt: time.Now().UTC(),
	}))
	s.Require().NoError(tx.Rollback())

	got, err := s.store.GetByTokenID(ctx, rec.TokenID)
	s.Require().NoError(err)
	s.Equal(record.StatusPending, got.Status)
	s.False(got.IsVerified)
}
