package models

import (
	"time"

	"gorm.io/gorm"
)

// Order is the durable record of a fulfilled purchase. Exactly one order
// exists per completed payment; line items are copies, not live references.
type Order struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                       // primary key
	OrderNo         string         `gorm:"uniqueIndex;not null" json:"order_no"`                       // external-facing number
	UserID          uint           `gorm:"index;not null" json:"user_id"`                              // owning user
	PaymentID       uint           `gorm:"uniqueIndex;not null" json:"payment_id"`                     // completed payment, one order each
	Status          string         `gorm:"index;not null" json:"status"`                               // pending/processing/shipped/delivered/cancelled
	ItemsPrice      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"items_price"`   // sum of line totals
	TaxPrice        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"tax_price"`     // tax on items subtotal
	ShippingPrice   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_price"` // flat or free
	TotalPrice      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`   // items + tax + shipping
	BillingAddress  Address        `gorm:"type:json" json:"billing_address"`                           // snapshot from payment
	ShippingAddress Address        `gorm:"type:json" json:"shipping_address"`                          // snapshot from payment
	PaidAt          *time.Time     `gorm:"index" json:"paid_at"`                                       // payment completion time
	DeliveredAt     *time.Time     `gorm:"index" json:"delivered_at"`                                  // delivery time
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                                    // created timestamp
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                                    // updated timestamp
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                             // soft delete

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"` // line item copies
}

// TableName sets the table name.
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one line copied from the cart snapshot at materialization.
// Prices here never change when the catalog does.
type OrderItem struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                     // primary key
	OrderID     uint           `gorm:"index;not null" json:"order_id"`                           // owning order
	ProductKind string         `gorm:"type:varchar(20);not null" json:"product_kind"`            // tire / wheel / product
	ProductID   uint           `gorm:"index;not null" json:"product_id"`                         // catalog item id
	Name        string         `gorm:"not null" json:"name"`                                     // name snapshot
	Thumbnail   string         `gorm:"type:text" json:"thumbnail"`                               // image snapshot
	UnitPrice   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // price at materialization
	Quantity    int            `gorm:"not null" json:"quantity"`                                 // units sold
	TotalPrice  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // unit price x quantity
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                  // created timestamp
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                  // updated timestamp
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                           // soft delete
}

// TableName sets the table name.
func (OrderItem) TableName() string {
	return "order_items"
}
