package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// SettleKeyMarker prefixes the period key inside a remark.
	SettleKeyMarker = "autoSettleKey:"

	// SettlementClient is the client label of generated rows.
	SettlementClient = "System Interest Settlement"

	// DisplayTimeLayout renders the human-readable timestamp column.
	DisplayTimeLayout = "2006/1/2 15:04:05"

	periodDayLayout  = "2006-01-02"
	periodHourLayout = "2006-01-02-15"
)

// SkipReason explains why a run wrote nothing. The set is closed; a run
// blocked by a concurrent one for the same key reports SkipAlreadySettled.
type SkipReason string

const (
	SkipOutsideWindow  SkipReason = "outside_settle_window"
	SkipAlreadySettled SkipReason = "already_settled"
	SkipNoInterest     SkipReason = "no_interest"
)

// Window is the weekly slot in which scheduled runs may settle.
type Window struct {
	Weekday time.Weekday
	Hour    int
	Minutes int
}

// DefaultWindow opens Monday 00:00 to 00:02 inclusive.
var DefaultWindow = Window{Weekday: time.Monday, Hour: 0, Minutes: 3}

// Validate checks the window fields are in range.
func (w Window) Validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("%w: weekday %d", ErrInvalidWindow, w.Weekday)
	}
	if w.Hour < 0 || w.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidWindow, w.Hour)
	}
	if w.Minutes < 1 || w.Minutes > 60 {
		return fmt.Errorf("%w: width %d minutes", ErrInvalidWindow, w.Minutes)
	}
	return nil
}

// Contains reports whether t, already in the settlement zone, is inside the window.
func (w Window) Contains(t time.Time) bool {
	return t.Weekday() == w.Weekday && t.Hour() == w.Hour && t.Minute() < w.Minutes
}

// Mode selects the settlement cadence.
type Mode struct {
	TestMode bool
	Window   Window
}

// PeriodKey returns the settlement period of t: the calendar date, or the
// date and hour in test mode.
func (m Mode) PeriodKey(t time.Time) string {
	if m.TestMode {
		return t.Format(periodHourLayout)
	}
	return t.Format(periodDayLayout)
}

// Gated reports whether a scheduled call at t must be skipped.
func (m Mode) Gated(t time.Time) bool {
	return !m.TestMode && !m.Window.Contains(t)
}

// MarkerFor returns the remark marker of a period key.
func MarkerFor(key string) string {
	return SettleKeyMarker + key
}

// MarkerPattern returns a regular expression matching the marker of key as a
// whole whitespace-delimited token, so a day key never matches the marker of
// an hour key on the same date. The syntax is valid for both Go and Postgres.
func MarkerPattern(key string) string {
	return `(^|\s)` + regexp.QuoteMeta(MarkerFor(key)) + `(\s|$)`
}

// RemarkMarks reports whether remark carries the marker of key.
func RemarkMarks(remark, key string) bool {
	if !strings.Contains(remark, MarkerFor(key)) {
		return false
	}
	return regexp.MustCompile(MarkerPattern(key)).MatchString(remark)
}

// KeyFromRemark extracts the period key embedded in a remark.
func KeyFromRemark(remark string) (string, bool) {
	i := strings.Index(remark, SettleKeyMarker)
	if i < 0 {
		return "", false
	}

	rest := remark[i+len(SettleKeyMarker):]
	if j := strings.IndexAny(rest, " \r\n\t"); j >= 0 {
		rest = rest[:j]
	}

	return rest, rest != ""
}

// InterestTotals holds the per-category interest of one run.
type InterestTotals struct {
	Loan      decimal.Decimal
	Injection decimal.Decimal
	Deposit   decimal.Decimal
}

// Aggregate sums principal × rate / 100 per category over approved rows.
// Rows of other types or statuses are ignored.
func Aggregate(rows []*Transaction) InterestTotals {
	totals := InterestTotals{
		Loan:      decimal.Zero,
		Injection: decimal.Zero,
		Deposit:   decimal.Zero,
	}

	for _, row := range rows {
		if row == nil || !row.IsApproved() {
			continue
		}

		switch row.Type {
		case TransactionTypeLoan:
			totals.Loan = totals.Loan.Add(row.Interest())
		case TransactionTypeInjection:
			totals.Injection = totals.Injection.Add(row.Interest())
		case TransactionTypeDeposit:
			totals.Deposit = totals.Deposit.Add(row.Interest())
		}
	}

	return totals
}

// SettlementBatch is everything one run needs to persist.
type SettlementBatch struct {
	Key          string
	SettleID     string
	Totals       InterestTotals
	Transactions []*Transaction
	TestMode     bool
	CreatedAt    time.Time
}

// NewSettlementID returns the batch id shared by every row of a run.
func NewSettlementID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

type category struct {
	source  TransactionType
	kind    TransactionType
	amount  decimal.Decimal
	subject string
}

// BuildSettlement turns totals into settlement rows for the categories with
// strictly positive interest. now must already be in the settlement zone.
func BuildSettlement(key string, totals InterestTotals, now time.Time, newID func() string) *SettlementBatch {
	settleID := NewSettlementID(now)
	batch := &SettlementBatch{
		Key:       key,
		SettleID:  settleID,
		Totals:    totals,
		CreatedAt: now,
	}

	categories := []category{
		{TransactionTypeLoan, TransactionTypeInterestIncome, totals.Loan, "Loan interest income"},
		{TransactionTypeInjection, TransactionTypeInterestExpense, totals.Injection, "Injection interest expense"},
		{TransactionTypeDeposit, TransactionTypeInterestExpense, totals.Deposit, "Deposit interest expense"},
	}

	for _, c := range categories {
		if !c.amount.IsPositive() {
			continue
		}

		batch.Transactions = append(batch.Transactions, &Transaction{
			CreatedAt: now,
			ID:        newID(),
			Type:      c.kind,
			Client:    SettlementClient,
			Principal: c.amount.String(),
			Rate:      "0",
			Status:    TransactionStatusApproved,
			Remark:    fmt.Sprintf("%s settled automatically for %s (%s)\n%s", c.subject, key, c.source, MarkerFor(key)),
			SettleID:  settleID,
			SettleKey: key,
			Source:    SourceSystem,
			Timestamp: now.Format(DisplayTimeLayout),
			CreatedBy: SystemActor,
			CreatorID: SystemActor,
		})
	}

	return batch
}

// SettlementRun is a ledger entry recording a completed run.
type SettlementRun struct {
	Key               string
	SettleID          string
	Inserted          int
	LoanInterest      decimal.Decimal
	InjectionInterest decimal.Decimal
	DepositInterest   decimal.Decimal
	TestMode          bool
	CreatedAt         time.Time
}

// Run returns the ledger entry for the batch.
func (b *SettlementBatch) Run() *SettlementRun {
	return &SettlementRun{
		Key:               b.Key,
		SettleID:          b.SettleID,
		Inserted:          len(b.Transactions),
		LoanInterest:      b.Totals.Loan,
		InjectionInterest: b.Totals.Injection,
		DepositInterest:   b.Totals.Deposit,
		TestMode:          b.TestMode,
		CreatedAt:         b.CreatedAt,
	}
}
