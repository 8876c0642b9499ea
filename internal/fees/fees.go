// Package fees computes the cooperative's cut of a completed transaction.
// It is pure: the fee percentage is an immutable value injected at
// construction time by whoever owns it (the escrow contract and the
// transaction coordinator), never mutable shared state.
package fees

import "github.com/shopspring/decimal"

// MaxFeePercentage is the hard upper bound for the platform fee, enforced
// at contract initialization.
const MaxFeePercentage = 10

// ValidFeePercentage reports whether pct is an acceptable platform fee.
func ValidFeePercentage(pct int) bool {
	return pct >= 0 && pct <= MaxFeePercentage
}

// Split divides a gross amount into the seller's share and the cooperative
// fee: fee = amount * pct / 100, seller = amount - fee. The two always sum
// back to the input, so escrow funds are conserved by construction.
func Split(amount decimal.Decimal, pct int) (sellerAmount, fee decimal.Decimal) {
	fee = amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
	sellerAmount = amount.Sub(fee)
	return sellerAmount, fee
}
