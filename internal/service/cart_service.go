package service

import (
	"strings"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/repository"

	"github.com/shopspring/decimal"
)

// AddItemInput is the cart add/increment request.
type AddItemInput struct {
	UserID      uint
	ProductKind string
	ProductID   uint
	Quantity    int
}

// CartSnapshotLine is one resolved cart line with the current catalog price.
type CartSnapshotLine struct {
	ItemID    uint              `json:"item_id"`
	Ref       models.ProductRef `json:"ref"`
	Name      string            `json:"name"`
	Thumbnail string            `json:"thumbnail"`
	UnitPrice models.Money      `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	LineTotal models.Money      `json:"line_total"`
}

// CartSnapshot is the priced view of a cart at one instant. Checkout prices
// always come from a snapshot, never from stored cart rows.
type CartSnapshot struct {
	CartID        uint               `json:"cart_id"`
	Lines         []CartSnapshotLine `json:"lines"`
	ItemsPrice    models.Money       `json:"items_price"`
	TaxPrice      models.Money       `json:"tax_price"`
	ShippingPrice models.Money       `json:"shipping_price"`
	TotalPrice    models.Money       `json:"total_price"`
	TotalItems    int                `json:"total_items"`
}

// CartService manages cart contents and resolves checkout snapshots.
type CartService struct {
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	checkout    config.CheckoutConfig
}

// NewCartService creates a cart service.
func NewCartService(cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository, checkout config.CheckoutConfig) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		checkout:    checkout,
	}
}

// GetCart returns the user's cart, creating an empty one when missing.
func (s *CartService) GetCart(userID uint) (*models.Cart, error) {
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	return s.cartRepo.EnsureForUser(userID)
}

// AddItem adds a catalog item to the cart. Adding an item already in the
// cart increments its quantity instead of inserting a second line.
func (s *CartService) AddItem(input AddItemInput) (*models.Cart, error) {
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	if input.Quantity <= 0 {
		return nil, ErrQuantityInvalid
	}
	ref := models.ProductRef{Kind: strings.ToLower(strings.TrimSpace(input.ProductKind)), ID: input.ProductID}
	item, err := s.catalogRepo.GetByRef(ref)
	if err != nil {
		if err == repository.ErrUnknownProductKind {
			return nil, ErrProductKindInvalid
		}
		return nil, err
	}
	if item == nil || !item.IsActive {
		return nil, ErrProductUnavailable
	}

	cart, err := s.cartRepo.EnsureForUser(input.UserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cartRepo.FindItem(cart.ID, ref)
	if err != nil {
		return nil, err
	}
	requested := input.Quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if requested > item.Stock {
		return nil, ErrInsufficientStock
	}

	if existing != nil {
		if err := s.cartRepo.UpdateItemQuantity(existing.ID, requested); err != nil {
			return nil, err
		}
	} else {
		now := time.Now()
		line := &models.CartItem{
			CartID:      cart.ID,
			ProductKind: ref.Kind,
			ProductID:   ref.ID,
			Name:        item.Name,
			Thumbnail:   item.Thumbnail,
			Price:       item.Price,
			Quantity:    input.Quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.cartRepo.CreateItem(line); err != nil {
			return nil, err
		}
	}
	return s.refreshTotals(cart.ID, input.UserID)
}

// UpdateItemQuantity sets one line's quantity. Quantity 0 removes the line.
func (s *CartService) UpdateItemQuantity(userID, itemID uint, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, ErrQuantityInvalid
	}
	cart, item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		if err := s.cartRepo.DeleteItem(item.ID); err != nil {
			return nil, err
		}
		return s.refreshTotals(cart.ID, userID)
	}
	catalogItem, err := s.catalogRepo.GetByRef(item.Ref())
	if err != nil {
		return nil, err
	}
	if catalogItem == nil || !catalogItem.IsActive {
		return nil, ErrProductUnavailable
	}
	if quantity > catalogItem.Stock {
		return nil, ErrInsufficientStock
	}
	if err := s.cartRepo.UpdateItemQuantity(item.ID, quantity); err != nil {
		return nil, err
	}
	return s.refreshTotals(cart.ID, userID)
}

// RemoveItem deletes one line from the user's cart.
func (s *CartService) RemoveItem(userID, itemID uint) (*models.Cart, error) {
	cart, item, err := s.ownedItem(userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.DeleteItem(item.ID); err != nil {
		return nil, err
	}
	return s.refreshTotals(cart.ID, userID)
}

// Clear removes every line from the user's cart. Clearing an empty cart
// succeeds and changes nothing.
func (s *CartService) Clear(userID uint) (*models.Cart, error) {
	cart, err := s.cartRepo.EnsureForUser(userID)
	if err != nil {
		return nil, err
	}
	if err := s.cartRepo.ClearItems(cart.ID); err != nil {
		return nil, err
	}
	return s.refreshTotals(cart.ID, userID)
}

// ResolveSnapshot re-resolves each cart line against the catalog and prices
// the whole cart with current unit prices. Read-only; a line whose product
// vanished or went inactive fails the resolve, as does a quantity the
// current stock cannot cover.
func (s *CartService) ResolveSnapshot(userID uint) (*CartSnapshot, error) {
	cart, err := s.cartRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	snapshot := &CartSnapshot{
		CartID: cart.ID,
		Lines:  make([]CartSnapshotLine, 0, len(cart.Items)),
	}
	itemsPrice := decimal.Zero
	for _, line := range cart.Items {
		catalogItem, err := s.catalogRepo.GetByRef(line.Ref())
		if err != nil {
			return nil, err
		}
		if catalogItem == nil || !catalogItem.IsActive {
			return nil, ErrProductUnavailable
		}
		if line.Quantity <= 0 {
			return nil, ErrQuantityInvalid
		}
		if line.Quantity > catalogItem.Stock {
			return nil, ErrInsufficientStock
		}
		lineTotal := catalogItem.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		snapshot.Lines = append(snapshot.Lines, CartSnapshotLine{
			ItemID:    line.ID,
			Ref:       line.Ref(),
			Name:      catalogItem.Name,
			Thumbnail: catalogItem.Thumbnail,
			UnitPrice: catalogItem.Price,
			Quantity:  line.Quantity,
			LineTotal: models.NewMoneyFromDecimal(lineTotal),
		})
		itemsPrice = itemsPrice.Add(lineTotal)
		snapshot.TotalItems += line.Quantity
	}

	snapshot.ItemsPrice = models.NewMoneyFromDecimal(itemsPrice)
	snapshot.TaxPrice = models.NewMoneyFromDecimal(itemsPrice.Mul(decimal.NewFromFloat(s.checkout.TaxRate)))
	snapshot.ShippingPrice = s.shippingFor(itemsPrice)
	total := itemsPrice.Add(snapshot.TaxPrice.Decimal).Add(snapshot.ShippingPrice.Decimal)
	snapshot.TotalPrice = models.NewMoneyFromDecimal(total)
	return snapshot, nil
}

// SyncSnapshotPrices writes resolved unit prices back onto the stored cart
// lines, so a later materialization prices the order exactly as charged.
func (s *CartService) SyncSnapshotPrices(snapshot *CartSnapshot) error {
	if snapshot == nil {
		return nil
	}
	for _, line := range snapshot.Lines {
		if err := s.cartRepo.UpdateItemPrice(line.ItemID, line.UnitPrice); err != nil {
			return err
		}
	}
	return nil
}

// shippingFor applies the flat rate below the free-shipping threshold.
func (s *CartService) shippingFor(itemsPrice decimal.Decimal) models.Money {
	threshold := decimal.NewFromFloat(s.checkout.FreeShippingThreshold)
	if threshold.IsPositive() && itemsPrice.GreaterThanOrEqual(threshold) {
		return models.Money{}
	}
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(s.checkout.ShippingFlat))
}

// ownedItem loads one cart line and checks it belongs to the user's cart.
func (s *CartService) ownedItem(userID, itemID uint) (*models.Cart, *models.CartItem, error) {
	if userID == 0 || itemID == 0 {
		return nil, nil, ErrCartItemNotFound
	}
	cart, err := s.cartRepo.GetByUserID(userID)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil {
		return nil, nil, ErrCartItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return cart, &cart.Items[i], nil
		}
	}
	return nil, nil, ErrCartItemNotFound
}

// refreshTotals recomputes the derived totals from the stored lines.
func (s *CartService) refreshTotals(cartID, userID uint) (*models.Cart, error) {
	cart, err := s.cartRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartItemNotFound
	}
	totalPrice := decimal.Zero
	totalItems := 0
	for _, line := range cart.Items {
		totalPrice = totalPrice.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		totalItems += line.Quantity
	}
	cart.TotalPrice = models.NewMoneyFromDecimal(totalPrice)
	cart.TotalItems = totalItems
	if err := s.cartRepo.UpdateTotals(cart.ID, cart.TotalPrice, cart.TotalItems); err != nil {
		return nil, err
	}
	return cart, nil
}
