package banklens

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// CanonicalDateLayout is the date form all transactions are normalized to.
const CanonicalDateLayout = "02-01-2006"

// dateLayouts are the inbound date forms accepted from statements and model
// output, tried in order.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"02-Jan-2006",
	"02 Jan 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"02.01.2006",
}

// NormalizeDate parses a date string in any accepted layout and returns it in
// DD-MM-YYYY form along with the parsed time.
func NormalizeDate(s string) (string, time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout), t, nil
		}
	}
	return "", time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// currencyMarkers maps symbols and codes found in amount strings to ISO codes.
// The original statements are INR or USD.
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"₹", "INR"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"INR", "INR"},
	{"$", "USD"},
	{"USD", "USD"},
}

// DetectCurrency returns the ISO currency code implied by markers in s, or ""
// when none is found.
func DetectCurrency(s string) string {
	for _, m := range currencyMarkers {
		if strings.Contains(s, m.marker) {
			return m.code
		}
	}
	return ""
}

// ParseAmount converts a raw amount string into a decimal, stripping currency
// symbols, commas, and whitespace. Parenthesized amounts are negative. The
// detected currency code (possibly "") is returned alongside.
func ParseAmount(s string) (decimal.Decimal, string, error) {
	currency := DetectCurrency(s)

	cleaned := s
	for _, m := range currencyMarkers {
		cleaned = strings.ReplaceAll(cleaned, m.marker, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case unicode.IsDigit(r), r == '.', r == '-', r == '+':
			b.WriteRune(r)
		case r == ',', unicode.IsSpace(r):
			// thousands separators and stray spaces
		default:
			return decimal.Zero, currency, fmt.Errorf("unparseable amount %q", s)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, currency, nil
}

// InferType maps a raw type string and signed amount to CREDIT or DEBIT.
// Explicit markers win; otherwise the amount sign decides, with positive
// amounts treated as credits.
func InferType(raw string, amount decimal.Decimal) TransactionType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CREDIT", "CR", "DEPOSIT":
		return Credit
	case "DEBIT", "DR", "WITHDRAWAL":
		return Debit
	}
	if amount.IsNegative() {
		return Debit
	}
	return Credit
}

// descriptionNoise are banking tokens stripped from descriptions. Merchant
// names, payment purposes, and recipient names are kept.
var descriptionNoise = map[string]bool{
	"UPI":  true,
	"NEFT": true,
	"IMPS": true,
	"RTGS": true,
	"ACH":  true,
	"POS":  true,
	"TXN":  true,
	"REF":  true,
	"INB":  true,
	"FT":   true,
	"DR":   true,
	"CR":   true,
}

// CleanDescription strips reference numbers, UPI handles, and banking
// boilerplate from a transaction description.
func CleanDescription(s string) string {
	// Statement descriptions often pack fields with slashes:
	// "UPI/412345678901/payment/merchant@okaxis".
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "\\", " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,:-")
		if trimmed == "" {
			continue
		}
		// UPI handles and emails.
		if strings.Contains(trimmed, "@") {
			continue
		}
		// Long digit runs are reference numbers.
		if isDigits(trimmed) && len(trimmed) >= 9 {
			continue
		}
		if descriptionNoise[strings.ToUpper(trimmed)] {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NormalizeTransaction builds a Transaction from raw model output fields.
// It returns the transaction plus any warnings produced while normalizing;
// an error is returned only when the amount or balance cannot be parsed.
func NormalizeTransaction(date, amount, currency, typ, description, balance string) (Transaction, []string, error) {
	var warnings []string

	amt, amtCurrency, err := ParseAmount(amount)
	if err != nil {
		return Transaction{}, nil, err
	}
	bal, _, err := ParseAmount(balance)
	if err != nil {
		return Transaction{}, nil, err
	}

	tx := Transaction{
		Type:        InferType(typ, amt),
		Description: CleanDescription(description),
		Balance:     bal,
	}

	// Amounts are stored unsigned; direction lives in Type.
	tx.Amount = amt.Abs()

	canonical, parsed, err := NormalizeDate(date)
	if err != nil {
		warnings = append(warnings, err.Error())
		tx.Date = strings.TrimSpace(date)
	} else {
		tx.Date = canonical
		tx.ParsedDate = parsed
	}

	switch {
	case currency != "":
		tx.Currency = normalizeCurrencyCode(currency, &warnings)
	case amtCurrency != "":
		tx.Currency = amtCurrency
	default:
		tx.Currency = "INR"
	}

	return tx, warnings, nil
}

func normalizeCurrencyCode(raw string, warnings *[]string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if c := DetectCurrency(code); c != "" {
		return c
	}
	*warnings = append(*warnings, fmt.Sprintf("unknown currency %q", raw))
	return code
}
