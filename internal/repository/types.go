package repository

import "time"

// PaymentListFilter filters the admin payment listing.
type PaymentListFilter struct {
	UserID      uint
	Method      string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// OrderListFilter filters a user's order listing.
type OrderListFilter struct {
	UserID   uint
	Status   string
	OrderNo  string
	Page     int
	PageSize int
}
