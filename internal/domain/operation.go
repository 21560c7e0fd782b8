package domain

import "time"

// OperationKind classifies a ledger posting.
type OperationKind string

const (
	OperationKindPayment    OperationKind = "payment"    // trade settlement
	OperationKindCommission OperationKind = "commission" // broker fee
	OperationKindPayIn      OperationKind = "pay_in"     // sandbox deposit
)

// OperationState mirrors the broker's operation states. Every operation the
// simulator posts is executed.
type OperationState string

const (
	OperationStateUnspecified OperationState = ""
	OperationStateExecuted    OperationState = "executed"
	OperationStateCancelled   OperationState = "cancelled"
)

// Operation is a settled posting to an account. Payment is signed: negative
// amounts leave the account. Operations are append-only.
type Operation struct {
	OperationID  string
	AccountID    string
	InstrumentID string
	OrderID      string
	Kind         OperationKind
	Direction    Direction // empty for pay-ins
	State        OperationState
	Payment      Money
	Price        Money // execution price per unit, zero for non-trades
	Quantity     int64 // units, zero for non-trades
	Date         time.Time
}
