package invoice

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateInvoiceNumber = errors.New("invoice number already used")
	ErrInactiveSalesPerson    = errors.New("sales person is not active")
	ErrUnknownInvoice         = errors.New("unknown invoice")
	ErrAlreadyReversed        = errors.New("invoice already reversed")
	ErrNotReversible          = errors.New("a reversing invoice cannot be reversed")
)

// InsufficientStockError names the offending product and the shortfall.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   float64
	Available   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (id %d): requested %v, available %v",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}
