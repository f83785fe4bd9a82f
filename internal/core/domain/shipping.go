package domain

import "fmt"

// ShippingOption is one row of the shipping-method table: the flat fee and
// the transit time contracted for a method code.
type ShippingOption struct {
	Fee         Money
	TransitDays int
}

// ShippingTable maps a method code (e.g. "std", "exp", "smd") to its option.
// Fees are configuration, not hard-coded business data.
type ShippingTable map[string]ShippingOption

func (t ShippingTable) Lookup(method string) (ShippingOption, error) {
	opt, ok := t[method]
	if !ok {
		return ShippingOption{}, fmt.Errorf("%w: %q", ErrUnknownShippingMethod, method)
	}
	return opt, nil
}
