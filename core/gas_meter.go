// SPDX-License-Identifier: BUSL-1.1
package core

// GasTracker accumulates gas spent during a single contract execution
// and aborts with OutOfGas once the accumulated cost would exceed the
// execution's gas limit. It is not safe for concurrent use; one tracker
// is created per call/deploy and discarded at the end of the operation.
type GasTracker struct {
	limit uint64
	used  uint64
}

// NewGasTracker creates a tracker bounded by limit gas units.
func NewGasTracker(limit uint64) *GasTracker {
	return &GasTracker{limit: limit}
}

// Charge adds cost to the accumulated total, returning KindOutOfGas if
// the limit would be exceeded. On error the tracker's Used() is left at
// its pre-charge value: the caller must not commit state for this op.
func (g *GasTracker) Charge(cost uint64) error {
	next := g.used + cost
	if next < g.used || next > g.limit {
		return NewError(KindOutOfGas, "gas limit exceeded")
	}
	g.used = next
	return nil
}

// ChargeOp charges the fixed cost of op.
func (g *GasTracker) ChargeOp(op Op) error { return g.Charge(GasCost(op)) }

// Used returns the gas spent so far.
func (g *GasTracker) Used() uint64 { return g.used }

// Limit returns the tracker's configured ceiling.
func (g *GasTracker) Limit() uint64 { return g.limit }

// Remaining returns the gas still available before OutOfGas.
func (g *GasTracker) Remaining() uint64 {
	if g.used >= g.limit {
		return 0
	}
	return g.limit - g.used
}
