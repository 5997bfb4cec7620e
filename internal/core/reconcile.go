package core

import (
	"errors"
	"fmt"
)

const (
	BankDeposit BankTxnKind = "deposit"
	BankPayment BankTxnKind = "payment"
)

type BankTxnKind string

// BankTransaction is a register line offered for clearing. Amount is
// always positive; Kind carries the direction.
type BankTransaction struct {
	ID     string      `json:"id"`
	Date   Date        `json:"date"`
	Kind   BankTxnKind `json:"kind"`
	Payee  string      `json:"payee,omitempty"`
	Number string      `json:"number,omitempty"`
	Amount Money       `json:"amount"`
}

var (
	ErrDuplicateTxn = errors.New("duplicate transaction id")
	ErrUnknownTxn   = errors.New("unknown transaction id")
)

// Reconciliation matches a bank statement against cleared register lines.
type Reconciliation struct {
	Account             string
	StatementDate       Date
	BeginningBalance    Money
	StatementEndBalance Money
	ServiceCharge       Money
	InterestEarned      Money
	Transactions        []BankTransaction
	Cleared             *Selection[string]
}

// NewReconciliation starts a reconciliation with nothing cleared.
func NewReconciliation(account string, beginning, statementEnd Money, txns []BankTransaction) *Reconciliation {
	return &Reconciliation{
		Account:             account,
		BeginningBalance:    beginning,
		StatementEndBalance: statementEnd,
		Transactions:        txns,
		Cleared:             NewSelection[string](),
	}
}

func (r *Reconciliation) Validate() error {
	seen := make(map[string]struct{}, len(r.Transactions))
	for _, t := range r.Transactions {
		if t.ID == "" {
			return errors.New("transaction without id")
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTxn, t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.Kind != BankDeposit && t.Kind != BankPayment {
			return fmt.Errorf("transaction %s: invalid kind %q", t.ID, t.Kind)
		}
		if t.Amount.IsNegative() {
			return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidAmount)
		}
	}
	if r.ServiceCharge.IsNegative() || r.InterestEarned.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// Toggle clears or un-clears a transaction.
func (r *Reconciliation) Toggle(id string) (bool, error) {
	for _, t := range r.Transactions {
		if t.ID == id {
			if r.Cleared == nil {
				r.Cleared = NewSelection[string]()
			}
			return r.Cleared.Toggle(id), nil
		}
	}
	return false, ErrUnknownTxn
}

func (r *Reconciliation) clearedOf(kind BankTxnKind) Money {
	var total Money
	for _, t := range r.Transactions {
		if t.Kind == kind && r.Cleared.Has(t.ID) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func (r *Reconciliation) ClearedDeposits() Money { return r.clearedOf(BankDeposit) }
func (r *Reconciliation) ClearedPayments() Money { return r.clearedOf(BankPayment) }

// ClearedBalance = beginning + cleared deposits - cleared payments
// - service charge + interest earned.
func (r *Reconciliation) ClearedBalance() Money {
	return r.BeginningBalance.
		Add(r.ClearedDeposits()).
		Sub(r.ClearedPayments()).
		Sub(r.ServiceCharge).
		Add(r.InterestEarned)
}

// Difference is statement end balance minus cleared balance.
func (r *Reconciliation) Difference() Money {
	return r.StatementEndBalance.Sub(r.ClearedBalance())
}

// IsReconciled holds when the difference is under one cent, which in
// integer cents means exactly zero.
func (r *Reconciliation) IsReconciled() bool {
	return r.Difference().Abs().Cents < 1
}

// ReconciliationSummary is the derived state shown beside the clearing list.
type ReconciliationSummary struct {
	ClearedDeposits Money `json:"cleared_deposits"`
	ClearedPayments Money `json:"cleared_payments"`
	ClearedBalance  Money `json:"cleared_balance"`
	Difference      Money `json:"difference"`
	ClearedCount    int   `json:"cleared_count"`
	IsReconciled    bool  `json:"is_reconciled"`
}

func (r *Reconciliation) Summary() ReconciliationSummary {
	return ReconciliationSummary{
		ClearedDeposits: r.ClearedDeposits(),
		ClearedPayments: r.ClearedPayments(),
		ClearedBalance:  r.ClearedBalance(),
		Difference:      r.Difference(),
		ClearedCount:    r.Cleared.Len(),
		IsReconciled:    r.IsReconciled(),
	}
}

// ClearedIDs lists the cleared transaction ids in register order.
func (r *Reconciliation) ClearedIDs() []string {
	var ids []string
	for _, t := range r.Transactions {
		if r.Cleared.Has(t.ID) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Statement is the serialized form of a reconciliation: a bank statement
// plus the ids cleared so far.
type Statement struct {
	Account             string            `json:"account"`
	StatementDate       Date              `json:"statement_date"`
	BeginningBalance    Money             `json:"beginning_balance"`
	StatementEndBalance Money             `json:"statement_end_balance"`
	ServiceCharge       Money             `json:"service_charge"`
	InterestEarned      Money             `json:"interest_earned"`
	Transactions        []BankTransaction `json:"transactions"`
	Cleared             []string          `json:"cleared"`
}

// Reconciliation validates the statement and replays its cleared ids.
func (s Statement) Reconciliation() (*Reconciliation, error) {
	r := NewReconciliation(s.Account, s.BeginningBalance, s.StatementEndBalance, s.Transactions)
	r.StatementDate = s.StatementDate
	r.ServiceCharge = s.ServiceCharge
	r.InterestEarned = s.InterestEarned
	if err := r.Validate(); err != nil {
		return nil, err
	}
	for _, id := range s.Cleared {
		if r.Cleared.Has(id) {
			continue
		}
		if _, err := r.Toggle(id); err != nil {
			return nil, fmt.Errorf("%w: %s", err, id)
		}
	}
	return r, nil
}

// Statement serializes r.
func (r *Reconciliation) Statement() Statement {
	return Statement{
		Account:             r.Account,
		StatementDate:       r.StatementDate,
		BeginningBalance:    r.BeginningBalance,
		StatementEndBalance: r.StatementEndBalance,
		ServiceCharge:       r.ServiceCharge,
		InterestEarned:      r.InterestEarned,
		Transactions:        r.Transactions,
		Cleared:             r.ClearedIDs(),
	}
}
