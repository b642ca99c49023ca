package repository

import (
	"errors"
	"time"

	"github.com/treadline/internal/models"

	"gorm.io/gorm"
)

// CartRepository is the cart data access interface.
type CartRepository interface {
	GetByUserID(userID uint) (*models.Cart, error)
	GetByID(id uint) (*models.Cart, error)
	EnsureForUser(userID uint) (*models.Cart, error)
	FindItem(cartID uint, ref models.ProductRef) (*models.CartItem, error)
	CreateItem(item *models.CartItem) error
	UpdateItemQuantity(itemID uint, quantity int) error
	UpdateItemPrice(itemID uint, price models.Money) error
	DeleteItem(itemID uint) error
	ClearItems(cartID uint) error
	UpdateTotals(cartID uint, totalPrice models.Money, totalItems int) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository is the GORM implementation.
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository creates a cart repository.
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// GetByUserID fetches the user's cart with items, nil when absent.
func (r *GormCartRepository) GetByUserID(userID uint) (*models.Cart, error) {
	var cart models.Cart
	result := r.db.Preload("Items").Where("user_id = ?", userID).Limit(1).Find(&cart)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &cart, nil
}

// GetByID fetches a cart with items, nil when absent.
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.Preload("Items").First(&cart, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// EnsureForUser returns the user's cart, creating an empty one when missing.
func (r *GormCartRepository) EnsureForUser(userID uint) (*models.Cart, error) {
	cart, err := r.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	now := time.Now()
	cart = &models.Cart{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindItem fetches the cart line for one catalog reference, nil when absent.
func (r *GormCartRepository) FindItem(cartID uint, ref models.ProductRef) (*models.CartItem, error) {
	var item models.CartItem
	result := r.db.Where("cart_id = ? AND product_kind = ? AND product_id = ?", cartID, ref.Kind, ref.ID).
		Limit(1).Find(&item)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &item, nil
}

// CreateItem inserts a cart line.
func (r *GormCartRepository) CreateItem(item *models.CartItem) error {
	return r.db.Create(item).Error
}

// UpdateItemQuantity sets a cart line's quantity.
func (r *GormCartRepository) UpdateItemQuantity(itemID uint, quantity int) error {
	return r.db.Model(&models.CartItem{}).Where("id = ?", itemID).Update("quantity", quantity).Error
}

// UpdateItemPrice refreshes a cart line's unit price snapshot.
func (r *GormCartRepository) UpdateItemPrice(itemID uint, price models.Money) error {
	return r.db.Model(&models.CartItem{}).Where("id = ?", itemID).Update("price", price).Error
}

// DeleteItem removes a cart line. Hard delete: a soft-deleted line would
// still hold the unique (cart, kind, product) slot against re-adding.
func (r *GormCartRepository) DeleteItem(itemID uint) error {
	return r.db.Unscoped().Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

// ClearItems removes every line from a cart. Clearing an already empty cart
// is a no-op.
func (r *GormCartRepository) ClearItems(cartID uint) error {
	return r.db.Unscoped().Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// UpdateTotals writes the derived totals after a mutation.
func (r *GormCartRepository) UpdateTotals(cartID uint, totalPrice models.Money, totalItems int) error {
	return r.db.Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]interface{}{
		"total_price": totalPrice,
		"total_items": totalItems,
	}).Error
}
