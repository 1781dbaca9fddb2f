package handlers

import (
	"net/http"

	"merchantpay/internal/middleware"
	"merchantpay/internal/models"
	"merchantpay/internal/payouts"

	"github.com/go-chi/chi/v5"
)

type payoutRequest struct {
	UserID        string  `json:"user_id"`
	Rail          string  `json:"rail"`
	Amount        string  `json:"amount"`
	Address       *string `json:"address"`
	IBAN          *string `json:"iban"`
	AccountNumber *string `json:"account_number"`
	SwiftBIC      *string `json:"swift_bic"`
	RoutingNumber *string `json:"routing_number"`
	BankName      *string `json:"bank_name"`
	AccountHolder *string `json:"account_holder"`
}

func (p payoutRequest) destination() models.Destination {
	return models.Destination{
		Address:       p.Address,
		IBAN:          p.IBAN,
		AccountNumber: p.AccountNumber,
		SwiftBIC:      p.SwiftBIC,
		RoutingNumber: p.RoutingNumber,
		BankName:      p.BankName,
		AccountHolder: p.AccountHolder,
	}
}

type payoutStatusRequest struct {
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	var req payoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	payout, err := h.withdrawals.Create(r.Context(), payouts.CreateRequest{
		UserID:      userID,
		Rail:        req.Rail,
		Amount:      amount,
		Destination: req.destination(),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, payout)
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)
	list, err := h.withdrawals.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) AdminUpdateWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.updatePayoutStatus(w, r, h.withdrawals)
}

// AdminCreateSettlement reserves funds for a settlement paid out on a
// merchant's behalf.
func (h *Handler) AdminCreateSettlement(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req payoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "user_id is required")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	payout, err := h.settlements.Create(r.Context(), payouts.CreateRequest{
		UserID:      req.UserID,
		Rail:        req.Rail,
		Amount:      amount,
		Destination: req.destination(),
		CreatedBy:   adminID,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, payout)
}

func (h *Handler) AdminUpdateSettlement(w http.ResponseWriter, r *http.Request) {
	h.updatePayoutStatus(w, r, h.settlements)
}

func (h *Handler) updatePayoutStatus(w http.ResponseWriter, r *http.Request, service PayoutService) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req payoutStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payout, err := service.UpdateStatus(r.Context(), payouts.UpdateRequest{
		ID:            chi.URLParam(r, "id"),
		Status:        req.Status,
		FailureReason: req.FailureReason,
		ActorID:       adminID,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payout)
}
