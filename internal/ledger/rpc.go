package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"veritrail/internal/platform/config"
)

// zeroAddress is used for health probes; reading the entry count of the zero
// address exercises the full RPC path without side effects.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// RPCClient talks JSON-RPC over HTTP to the ledger node. One instance is
// shared by all in-flight submissions; it holds no per-call state beyond the
// request ID counter.
type RPCClient struct {
	endpoint       string
	httpc          *http.Client
	requestTimeout time.Duration
	confirmTimeout time.Duration
	nextID         atomic.Int64
}

// NewRPCClient builds a ledger client from config. The HTTP client carries no
// global timeout; each call bounds itself with a context so the long
// confirmation wait of SubmitEntry and the short read calls can coexist.
func NewRPCClient(cfg config.LedgerConfig) *RPCClient {
	return &RPCClient{
		endpoint:       cfg.RPCURL,
		httpc:          &http.Client{},
		requestTimeout: cfg.RequestTimeout,
		confirmTimeout: cfg.ConfirmTimeout,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wireReceipt struct {
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     int64  `json:"block_number"`
	GasUsed         int64  `json:"gas_used"`
	Success         bool   `json:"success"`
}

type wireEntry struct {
	TokenID         string `json:"token_id"`
	Principal       string `json:"principal"`
	Timestamp       int64  `json:"timestamp"`
	TransactionType string `json:"transaction_type"`
	Amount          int64  `json:"amount"`
	DataHash        string `json:"data_hash"`
	ContentLocator  string `json:"content_locator"`
	Verified        bool   `json:"verified"`
}

func (e wireEntry) toEntry() Entry {
	return Entry{
		TokenID:        e.TokenID,
		Principal:      e.Principal,
		Timestamp:      e.Timestamp,
		Type:           e.TransactionType,
		AmountCents:    e.Amount,
		DataHash:       e.DataHash,
		ContentLocator: e.ContentLocator,
		Verified:       e.Verified,
	}
}

// call performs one RPC round trip. Transport failures wrap ErrUnavailable;
// errors reported by the ledger surface as *RPCError.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", ErrUnavailable, method, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, method, err)
	}
	if envelope.Error != nil {
		return &RPCError{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// callFast bounds a read-path call with the short request timeout.
func (c *RPCClient) callFast(ctx context.Context, method string, params []any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	err := c.call(ctx, method, params, out)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: request timeout", ErrUnavailable, method)
	}
	return err
}

func (c *RPCClient) SetAuthorization(ctx context.Context, principal string, enabled bool) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	var wire wireReceipt
	err := c.call(ctx, "authorizeSME", []any{principal, enabled}, &wire)
	if errors.Is(err, context.DeadlineExceeded) {
		return Receipt{}, ErrConfirmationTimeout
	}
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxRef: wire.TransactionHash, Block: wire.BlockNumber, GasUsed: wire.GasUsed, Success: wire.Success}, nil
}

// SubmitEntry proposes one ledger write and blocks until the ledger confirms
// inclusion or the confirmation timeout elapses. A timeout is ambiguous: the
// entry may still be included, so callers must not retry blindly.
func (c *RPCClient) SubmitEntry(ctx context.Context, req SubmitRequest) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	params := []any{req.TokenID, req.Type, req.AmountCents, req.DataHash, req.ContentLocator}
	var wire wireReceipt
	err := c.call(ctx, "logTransaction", append(params, req.Principal), &wire)
	if errors.Is(err, context.DeadlineExceeded) {
		return Receipt{}, ErrConfirmationTimeout
	}
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{TxRef: wire.TransactionHash, Block: wire.BlockNumber, GasUsed: wire.GasUsed, Success: wire.Success}, nil
}

// ReadTrail performs a fresh, full read of the principal's entries. No cursor
// is cached; each call restarts from the ledger's current state.
func (c *RPCClient) ReadTrail(ctx context.Context, principal string) ([]Entry, error) {
	var wire []wireEntry
	if err := c.callFast(ctx, "getAuditTrail", []any{principal}, &wire); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(wire))
	for _, e := range wire {
		entries = append(entries, e.toEntry())
	}
	return entries, nil
}

func (c *RPCClient) VerifyEntry(ctx context.Context, tokenID, principal string) (bool, *Entry, error) {
	var wire struct {
		Exists bool       `json:"exists"`
		Entry  *wireEntry `json:"entry"`
	}
	if err := c.callFast(ctx, "verifyToken", []any{tokenID, principal}, &wire); err != nil {
		return false, nil, err
	}
	if !wire.Exists || wire.Entry == nil {
		return false, nil, nil
	}
	entry := wire.Entry.toEntry()
	return true, &entry, nil
}

func (c *RPCClient) VerifyIntegrity(ctx context.Context, tokenID, principal, expectedHash string) (bool, error) {
	var valid bool
	if err := c.callFast(ctx, "verifyDataIntegrity", []any{tokenID, principal, expectedHash}, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

func (c *RPCClient) CountEntries(ctx context.Context, principal string) (int64, error) {
	var count int64
	if err := c.callFast(ctx, "getTransactionCount", []any{principal}, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *RPCClient) IsAuthorized(ctx context.Context, principal string) (bool, error) {
	var authorized bool
	if err := c.callFast(ctx, "isAuthorizedSME", []any{principal}, &authorized); err != nil {
		return false, err
	}
	return authorized, nil
}

// Health exercises the read path against the zero address.
func (c *RPCClient) Health(ctx context.Context) error {
	_, err := c.CountEntries(ctx, zeroAddress)
	return err
}
