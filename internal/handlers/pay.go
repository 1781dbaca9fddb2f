package handlers

import (
	"net/http"
	"time"

	"merchantpay/internal/lifecycle"
	"merchantpay/internal/models"
	"merchantpay/internal/money"
	"merchantpay/internal/psp"

	"github.com/go-chi/chi/v5"
)

// publicPayment is what the customer behind a payment link may see.
type publicPayment struct {
	ID               string                  `json:"id"`
	Amount           string                  `json:"amount"`
	Currency         string                  `json:"currency"`
	Description      string                  `json:"description"`
	InvoiceNumber    string                  `json:"invoice_number"`
	DueDate          *time.Time              `json:"due_date,omitempty"`
	CustomerName     string                  `json:"customer_name"`
	PaymentMethods   []string                `json:"payment_methods"`
	Status           lifecycle.PaymentStatus `json:"status"`
	VerificationType *string                 `json:"verification_type,omitempty"`
}

func newPublicPayment(pr models.PaymentRequest) publicPayment {
	view := publicPayment{
		ID:             pr.ID,
		Amount:         money.FormatMinor(pr.Amount),
		Currency:       pr.Currency,
		Description:    pr.Description,
		InvoiceNumber:  pr.InvoiceNumber,
		DueDate:        pr.DueDate,
		CustomerName:   pr.CustomerName,
		PaymentMethods: pr.PaymentMethods,
		Status:         pr.Status,
	}
	switch pr.Status {
	case lifecycle.StatusAwaiting3DSMS:
		kind := string(lifecycle.VerificationSMS)
		view.VerificationType = &kind
	case lifecycle.StatusAwaiting3DPush:
		kind := string(lifecycle.VerificationPush)
		view.VerificationType = &kind
	}
	return view
}

func (h *Handler) ViewPayment(w http.ResponseWriter, r *http.Request) {
	pr, err := h.payments.MarkViewed(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPublicPayment(pr))
}

type cardRequest struct {
	Number      string `json:"card_number"`
	Holder      string `json:"card_holder"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

type submissionResponse struct {
	ID       string               `json:"id"`
	Status   lifecycle.CardStatus `json:"status"`
	LastFour string               `json:"last_four"`
}

func (h *Handler) SubmitCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.cards.SubmitCard(r.Context(), chi.URLParam(r, "token"), psp.CardDetails{
		Number:      req.Number,
		Holder:      req.Holder,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	}, psp.ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, submissionResponse{ID: sub.ID, Status: sub.Status, LastFour: sub.LastFour})
}

type verificationRequest struct {
	Code     string `json:"code"`
	Approved *bool  `json:"approved"`
}

func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.cards.SubmitVerification(r.Context(), chi.URLParam(r, "token"), psp.VerificationRequest{
		Code:     req.Code,
		Approved: req.Approved,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, submissionResponse{ID: sub.ID, Status: sub.Status, LastFour: sub.LastFour})
}
