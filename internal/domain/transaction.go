package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction row.
type TransactionType string

const (
	TransactionTypeLoan            TransactionType = "loan"
	TransactionTypeInjection       TransactionType = "injection"
	TransactionTypeDeposit         TransactionType = "deposit"
	TransactionTypeInterestIncome  TransactionType = "interest_income"
	TransactionTypeInterestExpense TransactionType = "interest_expense"
)

// TransactionStatus is the approval state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// Source tells user-entered rows apart from rows the service generates.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// SystemActor is written to created_by and creator_id of generated rows.
const SystemActor = "system"

// Transaction is a row of the shared transactions table.
//
// Principal and Rate are kept as the raw text the store returned; the UI
// writes them and nothing guarantees they parse.
type Transaction struct {
	CreatedAt time.Time
	ID        string
	Type      TransactionType
	Client    string
	Principal string
	Rate      string
	Status    TransactionStatus
	Remark    string
	SettleID  string
	SettleKey string
	Source    Source
	Timestamp string
	CreatedBy string
	CreatorID string
}

// IsApproved reports whether the row takes part in settlement math.
func (t *Transaction) IsApproved() bool {
	return t.Status == TransactionStatusApproved
}

// PrincipalAmount returns the principal, or zero when it is not numeric.
func (t *Transaction) PrincipalAmount() decimal.Decimal {
	return ParseLenient(t.Principal)
}

// RateAmount returns the rate percentage, or zero when it is not numeric.
func (t *Transaction) RateAmount() decimal.Decimal {
	return ParseLenient(t.Rate)
}

// Interest returns principal × rate / 100 without rounding.
func (t *Transaction) Interest() decimal.Decimal {
	return t.PrincipalAmount().Mul(t.RateAmount()).Shift(-2)
}

// ParseLenient parses a decimal string and treats anything unparseable as zero.
func ParseLenient(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}

	return d
}
