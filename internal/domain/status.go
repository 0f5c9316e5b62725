package domain

import "fmt"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCooking   OrderStatus = "cooking"
	StatusServed    OrderStatus = "served"
	StatusCompleted OrderStatus = "completed"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var nextStatus = map[OrderStatus]OrderStatus{
	StatusPending: StatusCooking,
	StatusCooking: StatusServed,
	StatusServed:  StatusCompleted,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCooking, StatusServed, StatusCompleted:
		return true
	}
	return false
}

// Next returns the single allowed successor. Completed has none.
func (s OrderStatus) Next() (OrderStatus, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

func (s OrderStatus) Terminal() bool { return s == StatusCompleted }

// CheckTransition accepts only the single forward edge from 'from'.
func CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	n, ok := from.Next()
	if !ok || n != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
