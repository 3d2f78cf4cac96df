package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritrail/internal/audit"
	"veritrail/internal/principal"
	"veritrail/internal/record"
	"veritrail/internal/tokenize"
	dErrors "veritrail/pkg/domain-errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeContent struct {
	locator string
	err     error
}

func (f *fakeContent) Put(context.Context, []byte, string) (string, error) {
	return f.locator, f.err
}

type captureSubmitter struct {
	mu        sync.Mutex
	records   []*record.Record
	addresses []string
}

func (c *captureSubmitter) Submit(rec *record.Record, principalAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	c.addresses = append(c.addresses, principalAddress)
}

type fixture struct {
	service   *Service
	records   *record.MemoryStore
	content   *fakeContent
	submitter *captureSubmitter
	inbox     chan audit.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records := record.NewMemoryStore()
	contentClient := &fakeContent{locator: "QmTestCID123"}
	submitter := &captureSubmitter{}
	inbox := make(chan audit.Event, 16)
	auditor := audit.NewPublisher(audit.NewMemoryStore(), inbox, testLogger())
	return &fixture{
		service:   NewService(records, contentClient, submitter, auditor, testLogger()),
		records:   records,
		content:   contentClient,
		submitter: submitter,
		inbox:     inbox,
	}
}

func testPrincipal() *principal.Principal {
	return &principal.Principal{
		ID:            42,
		CompanyName:   "Acme GmbH",
		LedgerAddress: "0x00000000000000000000000000000000000000aa",
		IsActive:      true,
	}
}

func validUpload() UploadInput {
	return UploadInput{
		Principal:   testPrincipal(),
		Type:        "INVOICE",
		AmountCents: 125000,
		Currency:    "EUR",
		Description: "quarterly invoice",
		FileName:    "invoice.pdf",
		FileData:    []byte("%PDF-1.4 test document"),
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	f.service.WithClock(func() time.Time { return at })

	rec, err := f.service.Upload(context.Background(), validUpload())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.TokenID, "TXN_20260314_42_INVOICE_092653_"), "token %s", rec.TokenID)
	assert.Equal(t, record.StatusPending, rec.Status)
	assert.Equal(t, tokenize.HashContent(validUpload().FileData), rec.ContentHash)
	assert.True(t, strings.HasPrefix(rec.DataHash, "0x"))
	assert.Len(t, rec.DataHash, 66)
	assert.Equal(t, "QmTestCID123", rec.ContentLocator)
	assert.Equal(t, int64(len(validUpload().FileData)), rec.FileSize)

	stored, err := f.records.GetByTokenID(context.Background(), rec.TokenID)
	require.NoError(t, err)
	assert.Equal(t, record.StatusPending, stored.Status)

	require.Len(t, f.submitter.records, 1)
	assert.Equal(t, rec.TokenID, f.submitter.records[0].TokenID)
	assert.Equal(t, testPrincipal().LedgerAddress, f.submitter.addresses[0])

	event := <-f.inbox
	assert.Equal(t, audit.ActionRecordCreated, event.Action)
	assert.Equal(t, rec.TokenID, event.TokenID)
	assert.Empty(t, event.Notes)
}

func TestUploadContentStoreOutage(t *testing.T) {
	f := newFixture(t)
	f.content.err = errors.New("connection refused")

	rec, err := f.service.Upload(context.Background(), validUpload())
	require.NoError(t, err, "a content store outage never fails the upload")

	wantLocator := "local_storage_" + strings.TrimPrefix(rec.ContentHash, "0x")[:16]
	assert.Equal(t, wantLocator, rec.ContentLocator)

	require.Len(t, f.submitter.records, 1, "the ledger write still happens")

	event := <-f.inbox
	assert.Contains(t, event.Notes, "fallback locator")
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*UploadInput)
		wantCode dErrors.Code
	}{
		{"unknown type", func(in *UploadInput) { in.Type = "DONATION" }, dErrors.CodeInvalidInput},
		{"unsupported currency", func(in *UploadInput) { in.Currency = "BTC" }, dErrors.CodeInvalidInput},
		{"zero amount", func(in *UploadInput) { in.AmountCents = 0 }, dErrors.CodeInvalidInput},
		{"negative amount", func(in *UploadInput) { in.AmountCents = -100 }, dErrors.CodeInvalidInput},
		{"missing file", func(in *UploadInput) { in.FileData = nil }, dErrors.CodeInvalidInput},
		{"no principal", func(in *UploadInput) { in.Principal = nil }, dErrors.CodeUnauthorized},
		{"inactive principal", func(in *UploadInput) { in.Principal.IsActive = false }, dErrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validUpload()
			tt.mutate(&in)

			_, err := f.service.Upload(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, dErrors.CodeOf(err))
			assert.Empty(t, f.submitter.records, "nothing reaches the coordinator")
		})
	}
}

func TestUploadDataHashBindsFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Upload(ctx, validUpload())
	require.NoError(t, err)

	changed := validUpload()
	changed.AmountCents = 125001
	second, err := f.service.Upload(ctx, changed)
	require.NoError(t, err)

	assert.NotEqual(t, first.DataHash, second.DataHash, "amount change produces a different data hash")
	assert.Equal(t, first.ContentHash, second.ContentHash, "same document, same content hash")
}
