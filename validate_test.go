package banklens

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testTx(t *testing.T, date string, amount string, typ TransactionType, balance string) Transaction {
	t.Helper()
	parsed, err := time.Parse(CanonicalDateLayout, date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return Transaction{
		Date:       date,
		ParsedDate: parsed,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "INR",
		Type:       typ,
		Balance:    decimal.RequireFromString(balance),
	}
}

func TestValidateStatementClean(t *testing.T) {
	s := &Statement{Transactions: []Transaction{
		testTx(t, "01-01-2024", "1000", Credit, "1000"),
		testTx(t, "02-01-2024", "250", Debit, "750"),
		testTx(t, "05-01-2024", "500", Credit, "1250"),
	}}

	if warnings := ValidateStatement(s); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}

func TestValidateStatementBalanceMismatch(t *testing.T) {
	s := &Statement{Transactions: []Transaction{
		testTx(t, "01-01-2024", "1000", Credit, "1000"),
		testTx(t, "02-01-2024", "250", Debit, "800"), // should be 750
	}}

	warnings := ValidateStatement(s)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "does not follow from") {
		t.Errorf("unexpected warning: %s", warnings[0])
	}
	if !strings.Contains(warnings[0], "expected 750") {
		t.Errorf("warning should name the expected balance: %s", warnings[0])
	}
}

func TestValidateStatementChronology(t *testing.T) {
	s := &Statement{Transactions: []Transaction{
		testTx(t, "05-01-2024", "1000", Credit, "1000"),
		testTx(t, "02-01-2024", "250", Debit, "750"),
	}}

	warnings := ValidateStatement(s)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if !strings.Contains(warnings[0], "precedes") {
		t.Errorf("unexpected warning: %s", warnings[0])
	}
}

func TestValidateStatementSkipsUnparsedDates(t *testing.T) {
	unparsed := testTx(t, "02-01-2024", "250", Debit, "750")
	unparsed.ParsedDate = time.Time{}

	s := &Statement{Transactions: []Transaction{
		testTx(t, "05-01-2024", "1000", Credit, "1000"),
		unparsed,
	}}

	for _, w := range ValidateStatement(s) {
		if strings.Contains(w, "precedes") {
			t.Errorf("chronology check should skip unparsed dates: %s", w)
		}
	}
}

func TestValidateStatementEmpty(t *testing.T) {
	warnings := ValidateStatement(&Statement{})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "no transactions") {
		t.Errorf("expected empty statement warning, got %v", warnings)
	}
}

func TestStatementTotals(t *testing.T) {
	s := &Statement{Transactions: []Transaction{
		testTx(t, "01-01-2024", "1000", Credit, "1000"),
		testTx(t, "02-01-2024", "250", Debit, "750"),
		testTx(t, "03-01-2024", "50", Debit, "700"),
	}}

	credits, debits := s.Totals()
	if !credits.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("credits = %s, want 1000", credits)
	}
	if !debits.Equal(decimal.RequireFromString("300")) {
		t.Errorf("debits = %s, want 300", debits)
	}
	if !s.ClosingBalance().Equal(decimal.RequireFromString("700")) {
		t.Errorf("closing balance = %s, want 700", s.ClosingBalance())
	}
}
