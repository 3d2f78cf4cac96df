package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"veritrail/internal/platform/middleware"
	"veritrail/internal/record"
	dErrors "veritrail/pkg/domain-errors"
	"veritrail/pkg/platform/httputil"
)

// 16 MiB, matching the original upload cap.
const maxUploadBytes = 16 << 20

// Resubmitter re-enters ledger submission for a failed record.
type Resubmitter interface {
	Resubmit(ctx context.Context, tokenID string, principalID int64, principalAddress string) error
}

// Handler exposes transaction intake and resubmission. All routes require an
// authenticated principal.
type Handler struct {
	service     *Service
	resubmitter Resubmitter
	logger      *slog.Logger
}

func NewHandler(service *Service, resubmitter Resubmitter, logger *slog.Logger) *Handler {
	return &Handler{service: service, resubmitter: resubmitter, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/transactions", h.handleUpload)
	r.Post("/api/transactions/{tokenID}/resubmit", h.handleResubmit)
}

type uploadResponse struct {
	TokenID        string    `json:"token_id"`
	Status         string    `json:"status"`
	Type           string    `json:"transaction_type"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	DataHash       string    `json:"data_hash"`
	ContentHash    string    `json:"content_hash"`
	ContentLocator string    `json:"content_locator"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing principal"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed multipart form"))
		return
	}

	amountCents, err := parseAmount(r.FormValue("amount"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	fileName, fileData, err := readUploadFile(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Upload(r.Context(), UploadInput{
		Principal:   p,
		Type:        strings.ToUpper(strings.TrimSpace(r.FormValue("transaction_type"))),
		AmountCents: amountCents,
		Currency:    strings.ToUpper(strings.TrimSpace(r.FormValue("currency"))),
		Description: r.FormValue("description"),
		FileName:    fileName,
		FileData:    fileData,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "upload rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{
		TokenID:        rec.TokenID,
		Status:         string(rec.Status),
		Type:           rec.Type,
		Amount:         formatAmount(rec.AmountCents),
		Currency:       rec.Currency,
		DataHash:       rec.DataHash,
		ContentHash:    rec.ContentHash,
		ContentLocator: rec.ContentLocator,
		CreatedAt:      rec.CreatedAt,
	})
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing principal"))
		return
	}

	tokenID := chi.URLParam(r, "tokenID")
	if err := h.resubmitter.Resubmit(r.Context(), tokenID, p.ID, p.LedgerAddress); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"token_id": tokenID,
		"status":   string(record.StatusPending),
	})
}

func readUploadFile(r *http.Request) (string, []byte, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "transaction document is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "read uploaded file")
	}
	if len(data) > maxUploadBytes {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "uploaded file exceeds 16 MiB")
	}
	return header.Filename, data, nil
}

// parseAmount converts a decimal string like "1250.50" to cents without
// passing through floats.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is required")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount supports at most two decimal places")
	}
	for len(frac) < 2 {
		frac += "0"
	}

	// Digits only in both parts; ParseInt alone would accept a sign inside
	// the fractional field and silently mis-parse it.
	if !isDigits(whole) || !isDigits(frac) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is not a valid decimal number")
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is not a valid decimal number")
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount is not a valid decimal number")
	}
	return units*100 + cents, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
