package psp

import (
	"fmt"
	"strings"
	"time"

	"merchantpay/internal/apperr"
)

// CardDetails is what the customer types into the payment page. It never
// leaves this package unencrypted.
type CardDetails struct {
	Number      string
	Holder      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

func (c CardDetails) normalized() CardDetails {
	c.Number = digitsOnly(c.Number)
	c.Holder = strings.TrimSpace(c.Holder)
	c.CVV = strings.TrimSpace(c.CVV)
	if c.ExpiryYear >= 0 && c.ExpiryYear < 100 {
		c.ExpiryYear += 2000
	}
	return c
}

// Validate checks the number with the Luhn algorithm and rejects expired
// cards. now decides the current month.
func (c CardDetails) Validate(now time.Time) error {
	if len(c.Number) < 12 || len(c.Number) > 19 || !isValidCardNumber(c.Number) {
		return apperr.Validation("invalid_card_number", "card number is invalid")
	}
	if c.Holder == "" {
		return apperr.Validation("invalid_card_holder", "card holder is required")
	}
	if len(c.CVV) < 3 || len(c.CVV) > 4 || digitsOnly(c.CVV) != c.CVV {
		return apperr.Validation("invalid_cvv", "cvv must be 3 or 4 digits")
	}
	if !isValidExpiryDate(c.ExpiryMonth, c.ExpiryYear, now) {
		return apperr.Validation("invalid_expiry", "card is expired or expiry is malformed")
	}
	return nil
}

func (c CardDetails) expiry() string {
	return fmt.Sprintf("%02d/%04d", c.ExpiryMonth, c.ExpiryYear)
}

func isValidCardNumber(number string) bool {
	var sum int
	shouldDouble := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if shouldDouble {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		shouldDouble = !shouldDouble
	}
	return sum%10 == 0
}

func isValidExpiryDate(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	currentYear, currentMonth, _ := now.Date()
	return year > currentYear || (year == currentYear && month >= int(currentMonth))
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
