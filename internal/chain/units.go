package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ales-api/internal/models"
	"github.com/shopspring/decimal"
)

// etherDecimals is the number of wei digits in one ether
const etherDecimals = 18

// ParseEther converts a decimal ETH string into wei. An empty string is zero.
// Negative amounts and more than 18 fractional digits are rejected.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return new(big.Int), nil
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", models.ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", models.ErrInvalidAmount, amount)
	}

	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", models.ErrInvalidAmount, amount, etherDecimals)
	}
	return wei.BigInt(), nil
}

// FormatEther renders wei as a decimal ETH string without trailing zeros
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
