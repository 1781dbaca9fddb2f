package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMinor(t *testing.T) {
	cases := map[string]int64{
		"10":     1000,
		"10.5":   1050,
		"10.05":  1005,
		" 0.01 ": 1,
		"5000":   500000,
		"150.00": 15000,
		"49.990": 4999,
		"-3.20":  -320,
	}
	for input, want := range cases {
		got, err := ParseMinor(input)
		if err != nil {
			t.Fatalf("ParseMinor(%q) unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMinor(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseMinorRejects(t *testing.T) {
	if _, err := ParseMinor(""); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ParseMinor("abc"); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ParseMinor("1.005"); err != ErrTooManyDecimals {
		t.Fatalf("expected ErrTooManyDecimals, got %v", err)
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(4999); got != "49.99" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatMinor(-5); got != "-0.05" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestPercentOf(t *testing.T) {
	if got := PercentOf(500000, decimal.NewFromInt(30)); got != 150000 {
		t.Fatalf("expected 150000, got %d", got)
	}
	if got := PercentOf(20000, decimal.NewFromInt(5)); got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
	// 5% of 0.33 is 0.0165, rounds to 0.02
	if got := PercentOf(33, decimal.NewFromInt(5)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestApplyRate(t *testing.T) {
	if got := ApplyRate(10000, decimal.RequireFromString("0.0001")); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}
