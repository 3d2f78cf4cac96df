package trail

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"veritrail/internal/platform/middleware"
	"veritrail/internal/record"
	"veritrail/pkg/platform/httputil"
)

// Handler exposes trail reads, verification and stats. All routes require an
// authenticated principal.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/audit-trail/{address}", h.handleGetTrail)
	r.Post("/api/verify/{tokenID}", h.handleVerify)
	r.Get("/api/principals/{address}/stats", h.handleStats)
}

type trailItem struct {
	TokenID        string     `json:"token_id"`
	Type           string     `json:"transaction_type"`
	AmountCents    int64      `json:"amount_cents"`
	Currency       string     `json:"currency"`
	Description    string     `json:"description,omitempty"`
	DataHash       string     `json:"data_hash"`
	ContentHash    string     `json:"content_hash"`
	ContentLocator string     `json:"content_locator,omitempty"`
	Status         string     `json:"status"`
	FailureKind    string     `json:"failure_kind,omitempty"`
	LedgerTxRef    string     `json:"ledger_tx_ref,omitempty"`
	LedgerVerified *bool      `json:"ledger_verified"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type trailResponse struct {
	Address      string      `json:"address"`
	Items        []trailItem `json:"items"`
	Total        int64       `json:"total"`
	LedgerOnline bool        `json:"ledger_online"`
}

func (h *Handler) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFrom(r.Context())
	address := chi.URLParam(r, "address")
	limit := queryInt(r, "limit", defaultTrailLimit)
	offset := queryInt(r, "offset", 0)

	trail, err := h.service.GetTrail(r.Context(), caller, address, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	items := make([]trailItem, 0, len(trail.Items))
	for _, item := range trail.Items {
		items = append(items, toTrailItem(item.Record, item.LedgerVerified))
	}
	httputil.WriteJSON(w, http.StatusOK, trailResponse{
		Address:      trail.Principal.LedgerAddress,
		Items:        items,
		Total:        trail.Total,
		LedgerOnline: trail.LedgerOnline,
	})
}

type verifyRequest struct {
	ContentHash string `json:"content_hash,omitempty"`
}

type verifyResponse struct {
	TokenID        string `json:"token_id"`
	Status         string `json:"status"`
	IsVerified     bool   `json:"is_verified"`
	LedgerVerified bool   `json:"ledger_verified"`
	IntegrityOK    *bool  `json:"integrity_ok,omitempty"`
	LedgerTxRef    string `json:"ledger_tx_ref,omitempty"`
	FailureKind    string `json:"failure_kind,omitempty"`
	DataHash       string `json:"data_hash"`
	ContentHash    string `json:"content_hash"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFrom(r.Context())
	tokenID := chi.URLParam(r, "tokenID")

	var req verifyRequest
	if r.ContentLength > 0 {
		var ok bool
		if req, ok = httputil.Decode[verifyRequest](w, r); !ok {
			return
		}
	}

	verification, err := h.service.Verify(r.Context(), caller, tokenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := verifyResponse{
		TokenID:        verification.Record.TokenID,
		Status:         string(verification.Record.Status),
		IsVerified:     verification.Record.IsVerified,
		LedgerVerified: verification.LedgerVerified,
		LedgerTxRef:    verification.Record.LedgerTxRef,
		FailureKind:    verification.Record.FailureKind,
		DataHash:       verification.Record.DataHash,
		ContentHash:    verification.Record.ContentHash,
	}
	if req.ContentHash != "" {
		ok := h.service.CheckIntegrity(r.Context(), caller, tokenID, req.ContentHash)
		resp.IntegrityOK = &ok
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Address          string  `json:"address"`
	Total            int64   `json:"total"`
	Verified         int64   `json:"verified"`
	Pending          int64   `json:"pending"`
	Failed           int64   `json:"failed"`
	LedgerCount      int64   `json:"ledger_count"`
	LedgerOnline     bool    `json:"ledger_online"`
	VerificationRate float64 `json:"verification_rate"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFrom(r.Context())
	address := chi.URLParam(r, "address")

	stats, err := h.service.GetStats(r.Context(), caller, address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statsResponse{
		Address:          address,
		Total:            stats.Total,
		Verified:         stats.Verified,
		Pending:          stats.Pending,
		Failed:           stats.Failed,
		LedgerCount:      stats.LedgerCount,
		LedgerOnline:     stats.LedgerOnline,
		VerificationRate: stats.VerificationRate,
	})
}

func toTrailItem(rec *record.Record, ledgerVerified *bool) trailItem {
	return trailItem{
		TokenID:        rec.TokenID,
		Type:           rec.Type,
		AmountCents:    rec.AmountCents,
		Currency:       rec.Currency,
		Description:    rec.Description,
		DataHash:       rec.DataHash,
		ContentHash:    rec.ContentHash,
		ContentLocator: rec.ContentLocator,
		Status:         string(rec.Status),
		FailureKind:    rec.FailureKind,
		LedgerTxRef:    rec.LedgerTxRef,
		LedgerVerified: ledgerVerified,
		VerifiedAt:     rec.VerifiedAt,
		CreatedAt:      rec.CreatedAt,
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
