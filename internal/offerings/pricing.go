package offerings

import (
	"math"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/validate"
)

var hundred = decimal.NewFromInt(100)

// OwnershipPercentage returns the share of the asset one token represents.
// An explicit positive value always wins. Otherwise it is derived from the
// token and share prices, rounded half-up to four decimals, and null when
// the share price is zero.
func OwnershipPercentage(explicit decimal.NullDecimal, pricePerShare, tokenPrice money.Cents) decimal.NullDecimal {
	if explicit.Valid && explicit.Decimal.IsPositive() {
		return decimal.NullDecimal{Decimal: explicit.Decimal.Round(4), Valid: true}
	}
	if pricePerShare <= 0 {
		return decimal.NullDecimal{}
	}
	pct := decimal.NewFromInt(int64(tokenPrice)).
		Div(decimal.NewFromInt(int64(pricePerShare))).
		Mul(hundred).
		Round(4)
	return decimal.NullDecimal{Decimal: pct, Valid: true}
}

// Allocation is how a purchase draws on offering inventory. Units whole
// shares leave the counter; TokenBalance is the unsold value left on the
// share most recently broken into tokens.
type Allocation struct {
	Units        int64
	TokenBalance money.Cents
}

// Allocate converts a purchase into whole shares taken from inventory.
// Tokens are fractions of a share: they are paid out of the open token
// balance first and only break a new share when that balance runs out, so
// the integer counter never oversells and no token value is lost.
func Allocate(shares, tokens int64, pricePerShare, tokenPrice, balance money.Cents) (Allocation, error) {
	if shares < 0 || tokens < 0 {
		return Allocation{}, validate.Field("shares", "must not be negative")
	}
	if shares == 0 && tokens == 0 {
		return Allocation{}, validate.Field("shares", "at least one share or token is required")
	}
	if balance < 0 {
		balance = 0
	}
	alloc := Allocation{Units: shares, TokenBalance: balance}
	if tokens == 0 {
		return alloc, nil
	}
	if pricePerShare <= 0 || tokenPrice <= 0 {
		return Allocation{}, validate.Field("tokens", "offering does not sell tokens")
	}

	value := decimal.NewFromInt(tokens).Mul(decimal.NewFromInt(int64(tokenPrice)))
	open := decimal.NewFromInt(int64(balance))
	if value.LessThanOrEqual(open) {
		alloc.TokenBalance = money.Cents(open.Sub(value).IntPart())
		return alloc, nil
	}
	pps := decimal.NewFromInt(int64(pricePerShare))
	broken := value.Sub(open).Div(pps).Ceil()
	if !broken.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64 - shares)) {
		return Allocation{}, validate.Field("tokens", "quantity too large")
	}
	alloc.Units += broken.IntPart()
	alloc.TokenBalance = money.Cents(open.Add(broken.Mul(pps)).Sub(value).IntPart())
	return alloc, nil
}

// SoldOut reports whether nothing is left to sell once available whole
// shares remain and balance is still open for tokens.
func SoldOut(available int64, balance, tokenPrice money.Cents) bool {
	if available > 0 {
		return false
	}
	return tokenPrice <= 0 || balance < tokenPrice
}

// Amount is shares × price_per_share + tokens × token_price.
func Amount(shares, tokens int64, pricePerShare, tokenPrice money.Cents) (money.Cents, error) {
	total := decimal.NewFromInt(shares).Mul(decimal.NewFromInt(int64(pricePerShare))).
		Add(decimal.NewFromInt(tokens).Mul(decimal.NewFromInt(int64(tokenPrice))))
	if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount too large")
	}
	return money.Cents(total.IntPart()), nil
}
