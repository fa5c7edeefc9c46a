package domain

import "github.com/shopspring/decimal"

// OperationKind is the event that triggered a balance adjustment
type OperationKind string

const (
	OperationSave   OperationKind = "SAVE"
	OperationDelete OperationKind = "DELETE"
)

// BalanceDelta is the signed amount by which a broker's cash balance changes
// in response to one transaction event
type BalanceDelta struct {
	Broker string
	Amount decimal.Decimal
}

var minusOne = decimal.NewFromInt(-1)

// ComputeDelta converts a transaction and the operation applied to it into a signed delta.
// Logic:
//  1. gross = price x quantity
//  2. BUY adds the fee to the cost, SELL subtracts it from the proceeds
//  3. SAVE+BUY and DELETE+SELL decrease cash, so the net amount is negated
func ComputeDelta(t Transaction, op OperationKind) BalanceDelta {
	gross := t.Price.Mul(decimal.NewFromInt(t.Quantity))

	var net decimal.Decimal
	if t.Type == TransactionTypeBuy {
		net = gross.Add(t.Fee)
	} else {
		net = gross.Sub(t.Fee)
	}

	if shouldNegate(t.Type, op) {
		net = net.Mul(minusOne)
	}

	return BalanceDelta{
		Broker: t.Broker,
		Amount: net,
	}
}

func shouldNegate(t TransactionType, op OperationKind) bool {
	return (t == TransactionTypeBuy && op == OperationSave) ||
		(t == TransactionTypeSell && op == OperationDelete)
}
