package payload

import "fmt"

// MissingPriceError is returned when a required symbol has no usable price.
type MissingPriceError struct {
	Symbol string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("missing price for %s", e.Symbol)
}

// InvalidInputError is returned when a purchase request is rejected before computation.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid purchase input: " + e.Reason
}

func invalidf(format string, a ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, a...)}
}
