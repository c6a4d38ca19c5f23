package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseLenient(t *testing.T) {
	tests := []struct {
		input string
		want  decimal.Decimal
	}{
		{"1000", decimal.NewFromInt(1000)},
		{" 12.5 ", decimal.RequireFromString("12.5")},
		{"", decimal.Zero},
		{"NaN", decimal.Zero},
		{"1,000", decimal.Zero},
		{"five", decimal.Zero},
	}

	for _, tt := range tests {
		if got := ParseLenient(tt.input); !got.Equal(tt.want) {
			t.Fatalf("ParseLenient(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestTransaction_Interest(t *testing.T) {
	tx := &Transaction{Principal: "1000", Rate: "5"}
	if got := tx.Interest(); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected 50, got %s", got)
	}

	malformed := &Transaction{Principal: "1000", Rate: "n/a"}
	if got := malformed.Interest(); !got.IsZero() {
		t.Fatalf("expected zero for malformed rate, got %s", got)
	}
}

func TestTransaction_InterestIsExact(t *testing.T) {
	tx := &Transaction{Principal: "0.123456789012345", Rate: "0.00001"}

	want := decimal.RequireFromString("0.0000000123456789012345")
	if got := tx.Interest(); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got := tx.Interest().String(); got != "0.0000000123456789012345" {
		t.Fatalf("unexpected rendering %s", got)
	}
}
