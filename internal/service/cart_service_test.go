package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tire{},
		&models.Wheel{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	cartRepo := repository.NewCartRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	return NewCartService(cartRepo, catalogRepo, testCheckoutConfig()), db
}

func seedCartTire(t *testing.T, db *gorm.DB, price float64, stock int) *models.Tire {
	t.Helper()
	now := time.Now()
	tire := &models.Tire{
		Name:      "Winter 205/55R16",
		Brand:     "Roadgrip",
		Size:      "205/55R16",
		Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(tire).Error; err != nil {
		t.Fatalf("create tire failed: %v", err)
	}
	return tire
}

func seedCartWheel(t *testing.T, db *gorm.DB, price float64, stock int) *models.Wheel {
	t.Helper()
	now := time.Now()
	wheel := &models.Wheel{
		Name:      "Alloy 17x7.5",
		Brand:     "Spinline",
		Diameter:  "17",
		Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(wheel).Error; err != nil {
		t.Fatalf("create wheel failed: %v", err)
	}
	return wheel
}

func TestCartAddItemUpsertIncrements(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 120, 10)

	cart, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(cart.Items))
	}

	cart, err = cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("re-adding must not add a second line, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", cart.Items[0].Quantity)
	}
	if cart.TotalItems != 4 {
		t.Fatalf("expected total items 4, got %d", cart.TotalItems)
	}
	if got := cart.TotalPrice.String(); got != "480.00" {
		t.Fatalf("expected total 480.00, got %s", got)
	}
}

func TestCartAddItemMixedKinds(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 120, 10)
	wheel := seedCartWheel(t, db, 250, 8)

	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 1}); err != nil {
		t.Fatalf("add tire failed: %v", err)
	}
	cart, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindWheel, ProductID: wheel.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add wheel failed: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
	if got := cart.TotalPrice.String(); got != "370.00" {
		t.Fatalf("expected total 370.00, got %s", got)
	}
}

func TestCartAddItemValidation(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 120, 3)

	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: "engine", ProductID: 1, Quantity: 1}); !errors.Is(err, ErrProductKindInvalid) {
		t.Fatalf("expected ErrProductKindInvalid, got %v", err)
	}
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: 9999, Quantity: 1}); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 0}); !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 4}); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// inactive product rejected
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 1}); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable for inactive, got %v", err)
	}
}

func TestCartUpdateQuantityAndRemove(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 100, 10)

	cart, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	itemID := cart.Items[0].ID

	cart, err = cartService.UpdateItemQuantity(1, itemID, 5)
	if err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}
	if cart.Items[0].Quantity != 5 || cart.TotalItems != 5 {
		t.Fatalf("expected quantity 5, got %d (totals %d)", cart.Items[0].Quantity, cart.TotalItems)
	}

	// another user cannot touch the line
	if _, err := cartService.UpdateItemQuantity(2, itemID, 1); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}

	// quantity 0 removes the line
	cart, err = cartService.UpdateItemQuantity(1, itemID, 0)
	if err != nil {
		t.Fatalf("zero quantity failed: %v", err)
	}
	if len(cart.Items) != 0 || cart.TotalItems != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(cart.Items))
	}

	// line can be re-added after removal
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 1}); err != nil {
		t.Fatalf("re-add after remove failed: %v", err)
	}
}

func TestCartClearIdempotent(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 100, 10)
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 3}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	cart, err := cartService.Clear(1)
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(cart.Items) != 0 || cart.TotalItems != 0 || !cart.TotalPrice.IsZero() {
		t.Fatalf("expected empty cart after clear")
	}

	// clearing again succeeds and changes nothing
	if _, err := cartService.Clear(1); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
}

func TestResolveSnapshotUsesFreshPrices(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 100, 10)
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// catalog price changes after the line was added
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).
		Update("price", models.NewMoneyFromDecimal(decimal.NewFromInt(150))).Error; err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	snapshot, err := cartService.ResolveSnapshot(1)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got := snapshot.Lines[0].UnitPrice.String(); got != "150.00" {
		t.Fatalf("snapshot must price from the catalog, got %s", got)
	}
	if got := snapshot.ItemsPrice.String(); got != "300.00" {
		t.Fatalf("expected items 300.00, got %s", got)
	}
	if got := snapshot.TaxPrice.String(); got != "24.00" {
		t.Fatalf("expected tax 24.00, got %s", got)
	}
	if got := snapshot.ShippingPrice.String(); got != "15.00" {
		t.Fatalf("expected flat shipping, got %s", got)
	}
	if got := snapshot.TotalPrice.String(); got != "339.00" {
		t.Fatalf("expected total 339.00, got %s", got)
	}
}

func TestResolveSnapshotFreeShippingThreshold(t *testing.T) {
	cartService, db := setupCartServiceTest(t)
	tire := seedCartTire(t, db, 250, 10)
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	snapshot, err := cartService.ResolveSnapshot(1)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !snapshot.ShippingPrice.IsZero() {
		t.Fatalf("expected free shipping at the threshold, got %s", snapshot.ShippingPrice.String())
	}
}

func TestResolveSnapshotFailsClosed(t *testing.T) {
	cartService, db := setupCartServiceTest(t)

	if _, err := cartService.ResolveSnapshot(1); !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}

	tire := seedCartTire(t, db, 100, 2)
	if _, err := cartService.AddItem(AddItemInput{UserID: 1, ProductKind: constants.ProductKindTire, ProductID: tire.ID, Quantity: 2}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// stock shrinks below the requested quantity
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).Update("stock", 1).Error; err != nil {
		t.Fatalf("shrink stock failed: %v", err)
	}
	if _, err := cartService.ResolveSnapshot(1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// product disappears entirely
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := cartService.ResolveSnapshot(1); !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
}
