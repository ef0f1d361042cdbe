package pos

import "errors"

// All failures in this package are caller-correctable: prior state is left
// unchanged and the operation can be retried with corrected input.
var (
	ErrInvalidSelection    = errors.New("size or color not offered for this item")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidDiscount     = errors.New("discount percent must be between 0 and 100")
	ErrInvalidTaxRate      = errors.New("tax rate percent must be between 0 and 100")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInsufficientPayment = errors.New("amount received is less than the total due")
	ErrAlreadySettled      = errors.New("sale already settled")
	ErrNoTenderPending     = errors.New("no checkout in progress")
	ErrUnknownItem         = errors.New("unknown catalog item")
	ErrUnknownLineItem     = errors.New("no such line item in cart")
	ErrUnknownMethod       = errors.New("unsupported payment method")
)
