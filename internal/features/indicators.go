package features

import (
	"math"
	"time"

	"github.com/niruguard/niruguard/internal/model"
)

// Thresholds of the red-flag rules.
const (
	// RoundAmountFloor: only amounts strictly above it can be round.
	RoundAmountFloor = 1000
	// RoundAmountStep: round amounts are whole multiples of it.
	RoundAmountStep = 1000
	// NewSupplierMaxAwards: suppliers with at most this many contracts count
	// as new.
	NewSupplierMaxAwards = 3
)

// IsDirect reports whether the procurement method is a direct award. Only an
// exact case-insensitive "direct" qualifies.
func IsDirect(method string) bool {
	return model.ParseMethod(method) == model.MethodDirect
}

// IsRoundAmount reports whether amount is above RoundAmountFloor and an exact
// multiple of RoundAmountStep.
func IsRoundAmount(amount float64) bool {
	return amount > RoundAmountFloor && math.Mod(amount, RoundAmountStep) == 0
}

// SuspiciousTiming reports whether work was scheduled to start before the
// contract was signed. A missing or unparseable date never flags.
func SuspiciousTiming(signed, start *time.Time) bool {
	if signed == nil || start == nil {
		return false
	}
	return start.Before(*signed)
}

// NewSupplierDirectDeal reports a direct award to a supplier with few
// contracts.
func NewSupplierDirectDeal(awardCount int, direct bool) bool {
	return direct && awardCount <= NewSupplierMaxAwards
}
