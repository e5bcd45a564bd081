package banklens

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	// Credit is a deposit or incoming amount.
	Credit TransactionType = "CREDIT"
	// Debit is a withdrawal or outgoing amount.
	Debit TransactionType = "DEBIT"
)

// Statement statuses as tracked by the serve layer.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// AccountHolder identifies the owner of the account on a statement.
type AccountHolder struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}

// Transaction is a single normalized statement line.
type Transaction struct {
	// Date in DD-MM-YYYY form.
	Date string `json:"date"`

	// ParsedDate is Date parsed for ordering checks. Zero when the date
	// could not be parsed.
	ParsedDate time.Time `json:"-"`

	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`

	// Balance is the closing balance after this transaction.
	Balance decimal.Decimal `json:"balance"`
}

// Signed returns the amount with a sign matching the transaction direction:
// positive for credits, negative for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Statement is a fully parsed bank statement.
type Statement struct {
	ID            string        `json:"id,omitempty"`
	AccountHolder AccountHolder `json:"account_holder"`
	Transactions  []Transaction `json:"transactions"`

	// Warnings are non-fatal validation findings (balance mismatches,
	// out-of-order dates, unknown currencies).
	Warnings []string `json:"warnings,omitempty"`

	SourceFiles []string  `json:"source_files,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Totals returns the sum of credits and debits on the statement.
func (s *Statement) Totals() (credits, debits decimal.Decimal) {
	for _, tx := range s.Transactions {
		switch tx.Type {
		case Credit:
			credits = credits.Add(tx.Amount)
		case Debit:
			debits = debits.Add(tx.Amount)
		}
	}
	return credits, debits
}

// ClosingBalance returns the balance after the last transaction, or zero for
// an empty statement.
func (s *Statement) ClosingBalance() decimal.Decimal {
	if len(s.Transactions) == 0 {
		return decimal.Zero
	}
	return s.Transactions[len(s.Transactions)-1].Balance
}
