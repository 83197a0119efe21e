package fees

import (
	"fmt"

	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/shopspring/decimal"
)

var (
	cardTransactionRate   = decimal.RequireFromString("0.03")
	pointsTransactionRate = decimal.RequireFromString("0.01")
)

// Breakdown is the frozen split of an order price. The four parts always sum
// to Price.
type Breakdown struct {
	Price          money.Cents `json:"price_cents"`
	PlatformFee    money.Cents `json:"platform_fee_cents"`
	TransactionFee money.Cents `json:"transaction_fee_cents"`
	SalesTax       money.Cents `json:"sales_tax_cents"`
	SellerEarnings money.Cents `json:"seller_earnings_cents"`
}

// Calculator computes marketplace fees from injected platform and tax rates.
type Calculator struct {
	platformRate decimal.Decimal
	taxRate      decimal.Decimal
}

// NewCalculator validates rates expressed as fractions (0.10 = 10%).
func NewCalculator(platformRate, taxRate decimal.Decimal) (*Calculator, error) {
	if platformRate.IsNegative() {
		return nil, fmt.Errorf("platform rate must not be negative")
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("sales tax rate must not be negative")
	}
	worst := platformRate.Add(taxRate).Add(cardTransactionRate)
	if worst.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("combined fee rates %s exceed 100%% of price", worst.String())
	}
	return &Calculator{platformRate: platformRate, taxRate: taxRate}, nil
}

// TransactionRate returns the payment rail rate for method.
func TransactionRate(method enums.PaymentMethod) (decimal.Decimal, error) {
	switch method {
	case enums.PaymentMethodCard:
		return cardTransactionRate, nil
	case enums.PaymentMethodBelievePoints:
		return pointsTransactionRate, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}
}

// Compute splits price into platform fee, transaction fee, sales tax and
// seller earnings. Each fee is floored to the cent; the rounding residual is
// assigned to the platform fee.
func (c *Calculator) Compute(price money.Cents, method enums.PaymentMethod) (Breakdown, error) {
	if price < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	txRate, err := TransactionRate(method)
	if err != nil {
		return Breakdown{}, err
	}

	platformExact := decimal.NewFromInt(int64(price)).Mul(c.platformRate)
	txExact := decimal.NewFromInt(int64(price)).Mul(txRate)
	taxExact := decimal.NewFromInt(int64(price)).Mul(c.taxRate)

	platform := price.MulRateFloor(c.platformRate)
	transaction := price.MulRateFloor(txRate)
	tax := price.MulRateFloor(c.taxRate)

	// The ideal seller share is price minus the exact fees. Flooring it as
	// well leaves a residual of whole cents that belongs to the platform.
	sellerExact := decimal.NewFromInt(int64(price)).Sub(platformExact).Sub(txExact).Sub(taxExact)
	seller := money.Cents(sellerExact.Floor().IntPart())
	residual := price - platform - transaction - tax - seller
	platform += residual

	if seller < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "fee configuration exceeds price")
	}

	return Breakdown{
		Price:          price,
		PlatformFee:    platform,
		TransactionFee: transaction,
		SalesTax:       tax,
		SellerEarnings: seller,
	}, nil
}
