package banklens

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"15-01-2024", "15-01-2024"},
		{"15/01/2024", "15-01-2024"},
		{"2024-01-15", "15-01-2024"},
		{"15-Jan-2024", "15-01-2024"},
		{"15 Jan 2024", "15-01-2024"},
		{"Jan 15, 2024", "15-01-2024"},
		{"January 15, 2024", "15-01-2024"},
		{"15.01.2024", "15-01-2024"},
		{"  15-01-2024  ", "15-01-2024"},
	}

	for _, tt := range tests {
		got, parsed, err := NormalizeDate(tt.in)
		if err != nil {
			t.Errorf("NormalizeDate(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if parsed.IsZero() {
			t.Errorf("NormalizeDate(%q) returned zero time", tt.in)
		}
	}
}

func TestNormalizeDateInvalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "99-99-2024"} {
		if _, _, err := NormalizeDate(in); err == nil {
			t.Errorf("NormalizeDate(%q) expected error", in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in           string
		want         string
		wantCurrency string
	}{
		{"1234.56", "1234.56", ""},
		{"1,234.56", "1234.56", ""},
		{"₹1,234.56", "1234.56", "INR"},
		{"Rs. 500", "500", "INR"},
		{"INR 42.00", "42", "INR"},
		{"$99.95", "99.95", "USD"},
		{"-250.00", "-250", ""},
		{"(250.00)", "-250", ""},
		{"  1 234.56 ", "1234.56", ""},
	}

	for _, tt := range tests {
		got, currency, err := ParseAmount(tt.in)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if currency != tt.wantCurrency {
			t.Errorf("ParseAmount(%q) currency = %q, want %q", tt.in, currency, tt.wantCurrency)
		}
	}
}

func TestParseAmountInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "12x34"} {
		if _, _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) expected error", in)
		}
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		raw    string
		amount string
		want   TransactionType
	}{
		{"CREDIT", "100", Credit},
		{"credit", "100", Credit},
		{"CR", "-100", Credit},
		{"DEPOSIT", "100", Credit},
		{"DEBIT", "100", Debit},
		{"dr", "100", Debit},
		{"WITHDRAWAL", "100", Debit},
		{"", "100", Credit},
		{"", "-100", Debit},
		{"unknown", "-100", Debit},
	}

	for _, tt := range tests {
		got := InferType(tt.raw, decimal.RequireFromString(tt.amount))
		if got != tt.want {
			t.Errorf("InferType(%q, %s) = %s, want %s", tt.raw, tt.amount, got, tt.want)
		}
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"UPI/412345678901/payment/merchant@okaxis", "payment"},
		{"NEFT REF 000123456789 ACME CORP SALARY", "ACME CORP SALARY"},
		{"POS 520000112233 AMAZON RETAIL", "AMAZON RETAIL"},
		{"Grocery Store", "Grocery Store"},
		{"IMPS/P2A/435612345678/JOHN DOE", "P2A JOHN DOE"},
	}

	for _, tt := range tests {
		if got := CleanDescription(tt.in); got != tt.want {
			t.Errorf("CleanDescription(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTransaction(t *testing.T) {
	tx, warnings, err := NormalizeTransaction(
		"2024-01-15", "₹1,234.56", "", "DEBIT", "UPI/412345678901/groceries/shop@okicici", "10,000.00")
	if err != nil {
		t.Fatalf("NormalizeTransaction error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if tx.Date != "15-01-2024" {
		t.Errorf("date = %q, want 15-01-2024", tx.Date)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("amount = %s, want 1234.56", tx.Amount)
	}
	if tx.Type != Debit {
		t.Errorf("type = %s, want DEBIT", tx.Type)
	}
	if tx.Currency != "INR" {
		t.Errorf("currency = %q, want INR", tx.Currency)
	}
	if tx.Description != "groceries" {
		t.Errorf("description = %q, want %q", tx.Description, "groceries")
	}
	if !tx.Balance.Equal(decimal.RequireFromString("10000")) {
		t.Errorf("balance = %s, want 10000", tx.Balance)
	}
}

func TestNormalizeTransactionAmountsUnsigned(t *testing.T) {
	tx, _, err := NormalizeTransaction("15-01-2024", "-500.00", "INR", "", "atm withdrawal", "9500.00")
	if err != nil {
		t.Fatalf("NormalizeTransaction error: %v", err)
	}
	if tx.Type != Debit {
		t.Errorf("type = %s, want DEBIT", tx.Type)
	}
	if tx.Amount.IsNegative() {
		t.Errorf("amount should be unsigned, got %s", tx.Amount)
	}
	if !tx.Signed().Equal(decimal.RequireFromString("-500")) {
		t.Errorf("Signed() = %s, want -500", tx.Signed())
	}
}

func TestNormalizeTransactionBadDateWarns(t *testing.T) {
	tx, warnings, err := NormalizeTransaction("garbled", "100", "INR", "CREDIT", "salary", "100")
	if err != nil {
		t.Fatalf("NormalizeTransaction error: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning for unparseable date")
	}
	if tx.Date != "garbled" {
		t.Errorf("date = %q, want raw value kept", tx.Date)
	}
	if !tx.ParsedDate.IsZero() {
		t.Error("ParsedDate should be zero for unparseable date")
	}
}

func TestNormalizeTransactionUnknownCurrency(t *testing.T) {
	_, warnings, err := NormalizeTransaction("15-01-2024", "100", "XYZ", "CREDIT", "x", "100")
	if err != nil {
		t.Fatalf("NormalizeTransaction error: %v", err)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "unknown currency") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unknown currency warning, got %v", warnings)
	}
}

func TestNormalizeTransactionBadAmount(t *testing.T) {
	if _, _, err := NormalizeTransaction("15-01-2024", "??", "", "", "x", "100"); err == nil {
		t.Error("expected error for unparseable amount")
	}
	if _, _, err := NormalizeTransaction("15-01-2024", "100", "", "", "x", "??"); err == nil {
		t.Error("expected error for unparseable balance")
	}
}
