package handlers

import (
	"net/http"

	"merchantpay/internal/middleware"
	"merchantpay/internal/money"
)

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	balance, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":            balance.UserID,
		"currency":           balance.Currency,
		"available":          money.FormatMinor(balance.Available),
		"pending":            money.FormatMinor(balance.Pending),
		"commission_balance": money.FormatMinor(balance.CommissionBalance),
		"updated_at":         balance.UpdatedAt,
	})
}

func (h *Handler) ListCommissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	limit, offset := pagination(r)
	commissions, err := h.commissions.ListByLeader(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, commissions)
}
