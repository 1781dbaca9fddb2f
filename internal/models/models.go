package models

import (
	"time"

	"merchantpay/internal/lifecycle"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	RoleMerchant       = "merchant"
	RoleMerchantLeader = "merchant_leader"
	RoleAdmin          = "admin"
)

const (
	MethodBankWire = "bank_wire"
	MethodCard     = "card"
)

type User struct {
	ID                string              `db:"id" json:"id"`
	Email             string              `db:"email" json:"email"`
	PasswordHash      string              `db:"password_hash" json:"-"`
	Role              string              `db:"role" json:"role"`
	MerchantLeaderID  *string             `db:"merchant_leader_id" json:"merchant_leader_id,omitempty"`
	CommissionPercent decimal.NullDecimal `db:"commission_percent" json:"commission_percent"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// Balance is the per-user aggregate every money movement funnels through.
// All amounts are minor units.
type Balance struct {
	UserID            string    `db:"user_id" json:"user_id"`
	Available         int64     `db:"available" json:"available"`
	Pending           int64     `db:"pending" json:"pending"`
	CommissionBalance int64     `db:"commission_balance" json:"commission_balance"`
	Currency          string    `db:"currency" json:"currency"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type PaymentRequest struct {
	ID                string                  `db:"id" json:"id"`
	MerchantID        string                  `db:"merchant_id" json:"merchant_id"`
	Amount            int64                   `db:"amount" json:"amount"`
	Currency          string                  `db:"currency" json:"currency"`
	Description       string                  `db:"description" json:"description"`
	InvoiceNumber     string                  `db:"invoice_number" json:"invoice_number"`
	DueDate           *time.Time              `db:"due_date" json:"due_date,omitempty"`
	CustomerName      string                  `db:"customer_name" json:"customer_name"`
	CustomerEmail     string                  `db:"customer_email" json:"customer_email"`
	CustomerPhone     string                  `db:"customer_phone" json:"customer_phone"`
	PaymentMethods    pq.StringArray          `db:"payment_methods" json:"payment_methods"`
	Status            lifecycle.PaymentStatus `db:"status" json:"status"`
	CommissionPercent decimal.Decimal         `db:"commission_percent" json:"commission_percent"`
	CommissionAmount  int64                   `db:"commission_amount" json:"commission_amount"`
	NetAmount         int64                   `db:"net_amount" json:"net_amount"`
	BankRouteID       *string                 `db:"bank_route_id" json:"bank_route_id,omitempty"`
	CardRouteID       *string                 `db:"card_route_id" json:"card_route_id,omitempty"`
	Token             string                  `db:"token" json:"-"`
	ViewedAt          *time.Time              `db:"viewed_at" json:"viewed_at,omitempty"`
	PaidAt            *time.Time              `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt         time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time               `db:"updated_at" json:"updated_at"`
}

// EffectiveAmount is what moves through the merchant's balance: the net
// amount once commission has been computed, otherwise the gross amount.
func (p PaymentRequest) EffectiveAmount() int64 {
	if p.NetAmount > 0 {
		return p.NetAmount
	}
	return p.Amount
}

func (p PaymentRequest) Accepts(method string) bool {
	for _, m := range p.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

type TimelineEntry struct {
	ID               string    `db:"id" json:"id"`
	PaymentRequestID string    `db:"payment_request_id" json:"payment_request_id"`
	FromStatus       string    `db:"from_status" json:"from_status"`
	ToStatus         string    `db:"to_status" json:"to_status"`
	ActorID          string    `db:"actor_id" json:"actor_id"`
	Notes            string    `db:"notes" json:"notes"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type CardSubmission struct {
	ID                   string               `db:"id" json:"id"`
	PaymentRequestID     string               `db:"payment_request_id" json:"payment_request_id"`
	CardNumber           string               `db:"card_number" json:"-"`
	CardHolder           string               `db:"card_holder" json:"-"`
	CardExpiry           string               `db:"card_expiry" json:"-"`
	CardCVV              string               `db:"card_cvv" json:"-"`
	LastFour             string               `db:"last_four" json:"last_four"`
	Status               lifecycle.CardStatus `db:"status" json:"status"`
	VerificationType     *string              `db:"verification_type" json:"verification_type,omitempty"`
	VerificationCode     *string              `db:"verification_code" json:"-"`
	VerificationAttempts int                  `db:"verification_attempts" json:"verification_attempts"`
	VerificationApproved *bool                `db:"verification_approved" json:"verification_approved,omitempty"`
	VerifiedAt           *time.Time           `db:"verified_at" json:"verified_at,omitempty"`
	ReviewedBy           *string              `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNotes          string               `db:"review_notes" json:"review_notes"`
	IPAddress            string               `db:"ip_address" json:"ip_address"`
	UserAgent            string               `db:"user_agent" json:"user_agent"`
	CreatedAt            time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time            `db:"updated_at" json:"updated_at"`
}

const (
	CommissionPending  = "pending"
	CommissionCredited = "credited"
)

type Commission struct {
	ID               string     `db:"id" json:"id"`
	UserID           string     `db:"user_id" json:"user_id"`
	MerchantID       string     `db:"merchant_id" json:"merchant_id"`
	PaymentRequestID string     `db:"payment_request_id" json:"payment_request_id"`
	Amount           int64      `db:"amount" json:"amount"`
	PaymentAmount    int64      `db:"payment_amount" json:"payment_amount"`
	Status           string     `db:"status" json:"status"`
	CreditedAt       *time.Time `db:"credited_at" json:"credited_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Destination is where a payout goes: a crypto address or bank details.
type Destination struct {
	Address       *string `db:"address" json:"address,omitempty"`
	IBAN          *string `db:"iban" json:"iban,omitempty"`
	AccountNumber *string `db:"account_number" json:"account_number,omitempty"`
	SwiftBIC      *string `db:"swift_bic" json:"swift_bic,omitempty"`
	RoutingNumber *string `db:"routing_number" json:"routing_number,omitempty"`
	BankName      *string `db:"bank_name" json:"bank_name,omitempty"`
	AccountHolder *string `db:"account_holder" json:"account_holder,omitempty"`
}

// Payout is the shared shape of withdrawals and settlements. Amount and Fee
// were both debited from available balance when the record was created.
type Payout struct {
	ID            string                 `db:"id" json:"id"`
	Reference     string                 `db:"reference" json:"reference"`
	UserID        string                 `db:"user_id" json:"user_id"`
	Rail          string                 `db:"rail" json:"rail"`
	Amount        int64                  `db:"amount" json:"amount"`
	Fee           int64                  `db:"fee" json:"fee"`
	Currency      string                 `db:"currency" json:"currency"`
	Status        lifecycle.PayoutStatus `db:"status" json:"status"`
	FailureReason *string                `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedBy     string                 `db:"created_by" json:"created_by"`
	CompletedAt   *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	ReleasedAt    *time.Time             `db:"released_at" json:"released_at,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time              `db:"updated_at" json:"updated_at"`
	Destination
}

func (p Payout) Reserved() int64 {
	return p.Amount + p.Fee
}
