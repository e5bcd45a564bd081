package banklens

import "fmt"

// ValidateStatement checks chronology and running-balance continuity and
// returns warnings for each finding. Statements with OCR noise routinely
// trip these checks, so findings are advisory rather than fatal.
func ValidateStatement(s *Statement) []string {
	var warnings []string

	for i := 1; i < len(s.Transactions); i++ {
		prev, cur := s.Transactions[i-1], s.Transactions[i]

		if !prev.ParsedDate.IsZero() && !cur.ParsedDate.IsZero() && cur.ParsedDate.Before(prev.ParsedDate) {
			warnings = append(warnings, fmt.Sprintf(
				"transaction %d dated %s precedes transaction %d dated %s",
				i+1, cur.Date, i, prev.Date))
		}

		expected := prev.Balance.Add(cur.Signed())
		if !expected.Equal(cur.Balance) {
			warnings = append(warnings, fmt.Sprintf(
				"transaction %d balance %s does not follow from %s %s %s (expected %s)",
				i+1, cur.Balance, prev.Balance, signWord(cur.Type), cur.Amount, expected))
		}
	}

	if len(s.Transactions) == 0 {
		warnings = append(warnings, "no transactions were extracted")
	}

	return warnings
}

func signWord(t TransactionType) string {
	if t == Debit {
		return "minus"
	}
	return "plus"
}
