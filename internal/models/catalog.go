package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductRef identifies one catalog item across the three catalog tables.
type ProductRef struct {
	Kind string `json:"product_kind"` // tire / wheel / product
	ID   uint   `json:"product_id"`
}

// Tire catalog record.
type Tire struct {
	ID        uint           `gorm:"primarykey" json:"id"`                                // primary key
	Name      string         `gorm:"not null" json:"name"`                                // display name
	Brand     string         `gorm:"index" json:"brand"`                                  // manufacturer
	Size      string         `gorm:"index" json:"size"`                                   // e.g. 225/45R17
	LoadIndex string         `json:"load_index"`                                          // e.g. 94W
	Season    string         `json:"season"`                                              // all-season / summer / winter
	Price     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`  // unit price
	Stock     int            `gorm:"not null;default:0" json:"stock"`                     // units on hand
	Thumbnail string         `gorm:"type:text" json:"thumbnail"`                          // image URL
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`              // visible in storefront
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                             // created timestamp
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                             // updated timestamp
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                      // soft delete
}

// TableName sets the table name.
func (Tire) TableName() string {
	return "tires"
}

// Wheel catalog record.
type Wheel struct {
	ID          uint           `gorm:"primarykey" json:"id"`                               // primary key
	Name        string         `gorm:"not null" json:"name"`                               // display name
	Brand       string         `gorm:"index" json:"brand"`                                 // manufacturer
	Diameter    string         `gorm:"index" json:"diameter"`                              // e.g. 17x8
	BoltPattern string         `json:"bolt_pattern"`                                       // e.g. 5x114.3
	Finish      string         `json:"finish"`                                             // e.g. gloss black
	Price       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // unit price
	Stock       int            `gorm:"not null;default:0" json:"stock"`                    // units on hand
	Thumbnail   string         `gorm:"type:text" json:"thumbnail"`                         // image URL
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`             // visible in storefront
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                            // created timestamp
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                            // updated timestamp
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                     // soft delete
}

// TableName sets the table name.
func (Wheel) TableName() string {
	return "wheels"
}

// Product is the generic accessory catalog record.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`                               // primary key
	Name      string         `gorm:"not null" json:"name"`                               // display name
	Brand     string         `gorm:"index" json:"brand"`                                 // manufacturer
	Category  string         `gorm:"index" json:"category"`                              // e.g. lug-nuts, sensors
	Price     Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // unit price
	Stock     int            `gorm:"not null;default:0" json:"stock"`                    // units on hand
	Thumbnail string         `gorm:"type:text" json:"thumbnail"`                         // image URL
	IsActive  bool           `gorm:"not null;default:true" json:"is_active"`             // visible in storefront
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                            // created timestamp
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                            // updated timestamp
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                                     // soft delete
}

// TableName sets the table name.
func (Product) TableName() string {
	return "products"
}
