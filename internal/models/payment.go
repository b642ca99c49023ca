package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is one attempt to pay for one cart's contents. Amount and cart
// reference are immutable after creation; only status and gateway metadata
// change afterwards.
type Payment struct {
	ID              uint           `gorm:"primarykey" json:"id"`                                // primary key
	PaymentNo       string         `gorm:"uniqueIndex;not null" json:"payment_no"`              // external-facing number
	UserID          uint           `gorm:"index;not null" json:"user_id"`                       // paying user
	CartID          uint           `gorm:"index;not null" json:"cart_id"`                       // cart being paid for
	Method          string         `gorm:"not null" json:"method"`                              // stripe / paypal
	Amount          Money          `gorm:"type:decimal(20,2);not null" json:"amount"`           // equals cart total at creation
	Currency        string         `gorm:"not null" json:"currency"`                            // ISO currency code
	Status          string         `gorm:"index;not null" json:"status"`                        // pending/completed/failed/refunded/expired
	TransactionID   string         `gorm:"index" json:"transaction_id"`                         // opaque gateway handle
	GatewayPayload  JSON           `gorm:"type:json" json:"gateway_payload"`                    // raw gateway response
	BillingAddress  Address        `gorm:"type:json" json:"billing_address"`                    // snapshot at intent time
	ShippingAddress Address        `gorm:"type:json" json:"shipping_address"`                   // snapshot at intent time
	RedirectURL     string         `gorm:"type:text" json:"redirect_url"`                       // approval URL for redirect flows
	PaidAt          *time.Time     `gorm:"index" json:"paid_at"`                                // completion time
	ExpiresAt       *time.Time     `gorm:"index" json:"expires_at"`                             // pending deadline
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                             // created timestamp
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                             // updated timestamp
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                                      // soft delete
}

// TableName sets the table name.
func (Payment) TableName() string {
	return "payments"
}
