package utils

import "errors"

// Business-rule error taxonomy. Write paths wrap these with fmt.Errorf("%w: ...")
// and callers classify with errors.Is; every wrapped occurrence rolls the
// enclosing transaction back before reaching the caller.
var (
	// ErrNotFound covers any tenant-scoped entity lookup miss (customer,
	// invoice, product, payment).
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientStock is returned when a GOODS line requests more than
	// the available stock quantity. The whole invoice transaction aborts.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidState covers operations disallowed by the invoice state
	// machine and payments outside (0, balanceDue].
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation covers malformed input that safe coercion cannot absorb,
	// e.g. a missing required payment amount.
	ErrValidation = errors.New("validation failed")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
