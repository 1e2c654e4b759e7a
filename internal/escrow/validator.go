package escrow

import (
	"fmt"

	"github.com/efreitasn/commandledger/internal/domain"
)

// Quote breaks an accepted deposit down against the command it backs.
// Base + Margin + Excess == deposit.
type Quote struct {
	Base   domain.U128 // amount × price per product
	Margin domain.U128 // part of the surplus kept as margin
	Excess domain.U128 // surplus beyond the margin
}

// Validator decides whether a deposit is sufficient to back a command.
type Validator struct {
	policy MarginPolicy
}

// NewValidator creates a Validator using the given margin policy. A nil
// policy means NoMargin.
func NewValidator(policy MarginPolicy) *Validator {
	if policy == nil {
		policy = NoMargin{}
	}
	return &Validator{policy: policy}
}

// Policy returns the active margin policy.
func (v *Validator) Policy() MarginPolicy {
	return v.policy
}

// Validate checks deposit against amount × price. A deposit below the
// base price is always rejected with domain.ErrInsufficientDeposit. The
// margin is taken out of the surplus only, so it never turns an
// otherwise sufficient deposit into a rejection.
func (v *Validator) Validate(deposit, amount, price domain.U128) (Quote, error) {
	base, err := amount.Mul(price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: amount × price overflows 128 bits", domain.ErrInvalidPrice)
	}
	if deposit.LessThan(base) {
		return Quote{}, fmt.Errorf("%w: deposit %s is below the base price %s",
			domain.ErrInsufficientDeposit, deposit, base)
	}

	surplus, _ := deposit.Sub(base)
	margin := v.policy.Margin(base).Min(surplus)
	excess, _ := surplus.Sub(margin)

	return Quote{Base: base, Margin: margin, Excess: excess}, nil
}
