package escrow

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/commandledger/internal/domain"
)

// MarginPolicy computes the margin the ledger keeps on top of a
// command's base price (amount × price per product).
type MarginPolicy interface {
	Name() string
	Margin(base domain.U128) domain.U128
}

// NoMargin keeps nothing above the base price.
type NoMargin struct{}

func (NoMargin) Name() string { return "none" }

func (NoMargin) Margin(domain.U128) domain.U128 { return domain.U128{} }

// FlatMargin keeps a fixed amount per command.
type FlatMargin struct {
	Amount domain.U128
}

func (p FlatMargin) Name() string { return "flat" }

func (p FlatMargin) Margin(domain.U128) domain.U128 { return p.Amount }

// BasisPointsMargin keeps a fraction of the base price, in basis points
// (1/100 of a percent), rounded down.
type BasisPointsMargin struct {
	BPS uint32
}

func (p BasisPointsMargin) Name() string { return "bps" }

func (p BasisPointsMargin) Margin(base domain.U128) domain.U128 {
	scaled := base.Decimal().Mul(decimal.NewFromInt(int64(p.BPS)))
	q, _ := scaled.QuoRem(decimal.NewFromInt(10_000), 0)
	m, err := domain.U128FromDecimal(q)
	if err != nil {
		// Only reachable for BPS > 10000 on bases near 2^128.
		return base
	}
	return m
}

// ParsePolicy builds a MarginPolicy from its configuration name and
// value: "none", "flat" with a U128 amount, or "bps" with an integer.
func ParsePolicy(name, value string) (MarginPolicy, error) {
	switch name {
	case "", "none":
		return NoMargin{}, nil
	case "flat":
		amount, err := domain.ParseU128(value)
		if err != nil {
			return nil, fmt.Errorf("flat margin: %w", err)
		}
		return FlatMargin{Amount: amount}, nil
	case "bps":
		bps, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bps margin: %q is not a valid basis point value", value)
		}
		return BasisPointsMargin{BPS: uint32(bps)}, nil
	}
	return nil, fmt.Errorf("unknown margin policy %q, must be one of: none, flat, bps", name)
}
