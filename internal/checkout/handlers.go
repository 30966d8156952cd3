package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-checkout/internal/common"
)

// Handler exposes the quote service over HTTP.
type Handler struct {
	Svc *Service
}

type settleRequest struct {
	OrderID string `json:"orderId"`
}

// Routes mounts the checkout endpoints on r. writes wrap only the POST routes.
func (h *Handler) Routes(r chi.Router, writes ...func(http.Handler) http.Handler) {
	w := r.With(writes...)
	w.Post("/quote", h.Quote)
	r.Get("/quote/{id}", h.Get)
	w.Post("/quote/{id}/settle", h.Settle)
}

func (h *Handler) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return "", false
	}
	id, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return id, true
}

// Quote handles POST /checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var payload QuoteRequest
	if err := decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	q, err := h.Svc.Quote(r.Context(), customerID, payload)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": q})
}

// Get handles GET /checkout/quote/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Settle handles POST /checkout/quote/{id}/settle.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var payload settleRequest
	if err := decode(r, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	q, err := h.Svc.Settle(r.Context(), customerID, chi.URLParam(r, "id"), payload.OrderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId": payload.OrderID,
		"quote":   q,
	}})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
