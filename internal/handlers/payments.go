package handlers

import (
	"net/http"
	"time"

	"merchantpay/internal/lifecycle"
	"merchantpay/internal/middleware"
	"merchantpay/internal/models"
	"merchantpay/internal/payments"

	"github.com/go-chi/chi/v5"
)

type createPaymentRequest struct {
	MerchantID        string     `json:"merchant_id"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	Description       string     `json:"description"`
	InvoiceNumber     string     `json:"invoice_number"`
	DueDate           *time.Time `json:"due_date"`
	CustomerName      string     `json:"customer_name"`
	CustomerEmail     string     `json:"customer_email"`
	CustomerPhone     string     `json:"customer_phone"`
	PaymentMethods    []string   `json:"payment_methods"`
	CommissionPercent *string    `json:"commission_percent"`
	BankRouteID       *string    `json:"bank_route_id"`
	CardRouteID       *string    `json:"card_route_id"`
}

type createPaymentResponse struct {
	models.PaymentRequest
	Token string `json:"token"`
}

// CreatePaymentRequest issues a payment link. Merchants create for
// themselves; only admins may pick the merchant or override the rate.
func (h *Handler) CreatePaymentRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	role, _ := middleware.RoleFromContext(r.Context())

	var req createPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	merchantID := userID
	if role == models.RoleAdmin && req.MerchantID != "" {
		merchantID = req.MerchantID
	}
	create := payments.CreateRequest{
		MerchantID:     merchantID,
		Amount:         amount,
		Currency:       req.Currency,
		Description:    req.Description,
		InvoiceNumber:  req.InvoiceNumber,
		DueDate:        req.DueDate,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		PaymentMethods: req.PaymentMethods,
		BankRouteID:    req.BankRouteID,
		CardRouteID:    req.CardRouteID,
	}
	if role == models.RoleAdmin {
		create.CommissionPercent, err = parsePercent(req.CommissionPercent)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
	}
	pr, err := h.payments.Create(r.Context(), create)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, createPaymentResponse{PaymentRequest: pr, Token: pr.Token})
}

func (h *Handler) ListPaymentRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, offset := pagination(r)
	list, err := h.payments.ListByMerchant(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) GetPaymentRequest(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.ownedPaymentRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, pr)
}

func (h *Handler) GetPaymentTimeline(w http.ResponseWriter, r *http.Request) {
	pr, ok := h.ownedPaymentRequest(w, r)
	if !ok {
		return
	}
	timeline, err := h.payments.Timeline(r.Context(), pr.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, timeline)
}

// ownedPaymentRequest loads the request in the URL. Other merchants'
// requests are reported as missing.
func (h *Handler) ownedPaymentRequest(w http.ResponseWriter, r *http.Request) (models.PaymentRequest, bool) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	role, _ := middleware.RoleFromContext(r.Context())
	pr, err := h.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return models.PaymentRequest{}, false
	}
	if role != models.RoleAdmin && pr.MerchantID != userID {
		respondError(w, http.StatusNotFound, "payment_request_not_found", "payment request not found")
		return models.PaymentRequest{}, false
	}
	return pr, true
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) AdminTransitionPayment(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.UserIDFromContext(r.Context())
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pr, err := h.payments.Transition(r.Context(), payments.TransitionRequest{
		ID:      chi.URLParam(r, "id"),
		Status:  lifecycle.PaymentStatus(req.Status),
		ActorID: adminID,
		Notes:   req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pr)
}
