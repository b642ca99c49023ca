package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart is one user's cart. At most one cart exists per user; clearing the
// cart removes its items but keeps the row.
type Cart struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                     // primary key
	UserID     uint           `gorm:"uniqueIndex;not null" json:"user_id"`                      // owning user
	TotalPrice Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // derived sum of item totals
	TotalItems int            `gorm:"not null;default:0" json:"total_items"`                    // derived sum of quantities
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                                  // created timestamp
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                                  // updated timestamp
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                           // soft delete

	Items []CartItem `gorm:"foreignKey:CartID" json:"items"` // line items
}

// TableName sets the table name.
func (Cart) TableName() string {
	return "carts"
}

// CartItem is one (kind, product) line in a cart. Re-adding the same pair
// increments Quantity instead of inserting a second row.
type CartItem struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                            // primary key
	CartID      uint           `gorm:"not null;uniqueIndex:idx_cart_kind_product" json:"cart_id"`       // owning cart
	ProductKind string         `gorm:"type:varchar(20);not null;uniqueIndex:idx_cart_kind_product" json:"product_kind"` // tire / wheel / product
	ProductID   uint           `gorm:"not null;uniqueIndex:idx_cart_kind_product" json:"product_id"`    // catalog item id
	Name        string         `gorm:"not null" json:"name"`                                            // name snapshot at add time
	Thumbnail   string         `gorm:"type:text" json:"thumbnail"`                                      // image snapshot at add time
	Price       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`              // unit price snapshot at add time
	Quantity    int            `gorm:"not null" json:"quantity"`                                        // units requested
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                                         // created timestamp
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                                         // updated timestamp
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                                  // soft delete
}

// TableName sets the table name.
func (CartItem) TableName() string {
	return "cart_items"
}

// Ref returns the catalog reference for this line.
func (i CartItem) Ref() ProductRef {
	return ProductRef{Kind: i.ProductKind, ID: i.ProductID}
}
