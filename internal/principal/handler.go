package principal

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veritrail/pkg/platform/httputil"
)

// Handler exposes principal registration.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the principal routes. Registration is unauthenticated; it
// is how a principal obtains its API key.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/principals", h.handleRegister)
}

type registerRequest struct {
	CompanyName        string `json:"company_name"`
	LedgerAddress      string `json:"ledger_address"`
	Email              string `json:"email"`
	Phone              string `json:"phone,omitempty"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	PostalAddress      string `json:"postal_address,omitempty"`
	SubscriptionTier   string `json:"subscription_tier,omitempty"`
}

type registerResponse struct {
	ID               int64     `json:"id"`
	CompanyName      string    `json:"company_name"`
	LedgerAddress    string    `json:"ledger_address"`
	Email            string    `json:"email"`
	SubscriptionTier string    `json:"subscription_tier"`
	APIKey           string    `json:"api_key"`
	RegisteredAt     time.Time `json:"registered_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r)
	if !ok {
		return
	}

	p, apiKey, err := h.service.Register(r.Context(), RegisterInput{
		CompanyName:        req.CompanyName,
		LedgerAddress:      req.LedgerAddress,
		Email:              req.Email,
		Phone:              req.Phone,
		RegistrationNumber: req.RegistrationNumber,
		PostalAddress:      req.PostalAddress,
		SubscriptionTier:   Tier(req.SubscriptionTier),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "principal registration rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:               p.ID,
		CompanyName:      p.CompanyName,
		LedgerAddress:    p.LedgerAddress,
		Email:            p.Email,
		SubscriptionTier: string(p.SubscriptionTier),
		APIKey:           apiKey,
		RegisteredAt:     p.RegisteredAt,
	})
}
