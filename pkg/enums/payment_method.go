package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how a buyer settles an order or share purchase.
type PaymentMethod string

const (
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodBelievePoints PaymentMethod = "believe_points"
)

// paymentMethodAliases maps legacy client values onto canonical methods.
var paymentMethodAliases = map[string]PaymentMethod{
	"wallet": PaymentMethodBelievePoints,
}

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodBelievePoints,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod, accepting
// "wallet" as an alias of believe_points.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if alias, ok := paymentMethodAliases[normalized]; ok {
		return alias, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// UnmarshalText canonicalizes aliases on decode. Unknown values are kept
// verbatim so request validation can report them per field.
func (p *PaymentMethod) UnmarshalText(text []byte) error {
	if parsed, err := ParsePaymentMethod(string(text)); err == nil {
		*p = parsed
		return nil
	}
	*p = PaymentMethod(text)
	return nil
}
