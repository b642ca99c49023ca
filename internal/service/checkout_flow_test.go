package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/queue"
	"github.com/treadline/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeGateway struct {
	session      *GatewaySession
	createErr    error
	confirmation *GatewayConfirmation
	confirmErr   error
	createCalls  int
	confirmCalls int
	lastCreate   GatewaySessionInput
}

func (g *fakeGateway) Name() string {
	return constants.PaymentMethodStripe
}

func (g *fakeGateway) CreateSession(ctx context.Context, input GatewaySessionInput) (*GatewaySession, error) {
	g.createCalls++
	g.lastCreate = input
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.session, nil
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, providerRef string) (*GatewayConfirmation, error) {
	g.confirmCalls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmation, nil
}

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Currency:              "USD",
		TaxRate:               0.08,
		ShippingFlat:          15,
		FreeShippingThreshold: 500,
		PendingExpireMinutes:  30,
	}
}

func setupCheckoutTest(t *testing.T) (*PaymentService, *CartService, *gorm.DB, *fakeGateway) {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_flow_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tire{},
		&models.Wheel{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Payment{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	checkout := testCheckoutConfig()
	cartRepo := repository.NewCartRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	cartService := NewCartService(cartRepo, catalogRepo, checkout)
	orderService := NewOrderService(orderRepo, cartRepo, catalogRepo, checkout)

	gateway := &fakeGateway{
		session: &GatewaySession{
			TransactionID: "cs_test_1",
			RedirectURL:   "https://checkout.example.com/cs_test_1",
		},
	}
	gateways := GatewayRegistry{constants.PaymentMethodStripe: gateway}

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}

	paymentService := NewPaymentService(paymentRepo, cartService, orderService, gateways, queueClient, checkout)
	return paymentService, cartService, db, gateway
}

func seedCheckoutTire(t *testing.T, db *gorm.DB, price float64, stock int) *models.Tire {
	t.Helper()
	now := time.Now()
	tire := &models.Tire{
		Name:      "All-Season 225/45R17",
		Brand:     "Roadgrip",
		Size:      "225/45R17",
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

func addTireToCart(t *testing.T, cartService *CartService, userID uint, tire *models.Tire, quantity int) {
	t.Helper()
	if _, err := cartService.AddItem(AddItemInput{
		UserID:      userID,
		ProductKind: constants.ProductKindTire,
		ProductID:   tire.ID,
		Quantity:    quantity,
	}); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
}

func createPendingPayment(t *testing.T, paymentService *PaymentService, userID uint) *models.Payment {
	t.Helper()
	result, err := paymentService.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		UserID: userID,
		Method: constants.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("create payment intent failed: %v", err)
	}
	return result.Payment
}

func tireStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var tire models.Tire
	if err := db.First(&tire, id).Error; err != nil {
		t.Fatalf("load tire failed: %v", err)
	}
	return tire.Stock
}

func TestCreatePaymentIntentRecordsPendingPayment(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)

	result, err := paymentService.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		UserID: 1,
		Method: constants.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("create payment intent failed: %v", err)
	}
	if gateway.createCalls != 1 {
		t.Fatalf("expected 1 gateway session, got %d", gateway.createCalls)
	}
	if result.Payment.Status != constants.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", result.Payment.Status)
	}
	// 2 x 100 items, 8% tax, 15 flat shipping
	if got := result.Payment.Amount.String(); got != "231.00" {
		t.Fatalf("expected amount 231.00, got %s", got)
	}
	if result.Payment.TransactionID != "cs_test_1" {
		t.Fatalf("expected recorded gateway handle, got %q", result.Payment.TransactionID)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected redirect URL")
	}
	if result.Payment.ExpiresAt == nil {
		t.Fatal("expected pending deadline")
	}
	// intent never touches stock
	if stock := tireStock(t, db, tire.ID); stock != 10 {
		t.Fatalf("expected stock 10 after intent, got %d", stock)
	}
}

func TestCreatePaymentIntentEmptyCart(t *testing.T) {
	paymentService, _, _, _ := setupCheckoutTest(t)

	_, err := paymentService.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		UserID: 1,
		Method: constants.PaymentMethodStripe,
	})
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestCreatePaymentIntentGatewayDownMarksFailed(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	gateway.createErr = ErrGatewayUnavailable
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)

	_, err := paymentService.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		UserID: 1,
		Method: constants.PaymentMethodStripe,
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	var payment models.Payment
	if err := db.Order("id desc").First(&payment).Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusFailed {
		t.Fatalf("expected failed payment after gateway error, got %s", payment.Status)
	}
}

func TestVerifyPaymentCompletesAndMaterializes(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	paidAt := time.Now()
	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "231.00",
		Currency:  "USD",
		PaidAt:    &paidAt,
	}

	result, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:      1,
		PaymentID:   payment.ID,
		ProviderRef: "cs_test_1",
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Payment.Status != constants.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", result.Payment.Status)
	}
	if result.Payment.PaidAt == nil {
		t.Fatal("expected paid_at set")
	}
	if result.Order == nil {
		t.Fatal("expected materialized order")
	}
	if result.Order.PaymentID != payment.ID {
		t.Fatalf("order bound to payment %d, want %d", result.Order.PaymentID, payment.ID)
	}
	if got := result.Order.TotalPrice.String(); got != "231.00" {
		t.Fatalf("expected order total 231.00, got %s", got)
	}
	if len(result.Order.Items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(result.Order.Items))
	}
	if result.Order.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", result.Order.Items[0].Quantity)
	}

	if stock := tireStock(t, db, tire.ID); stock != 8 {
		t.Fatalf("expected stock 8 after materialization, got %d", stock)
	}

	cart, err := cartService.GetCart(1)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(cart.Items) != 0 || cart.TotalItems != 0 {
		t.Fatalf("expected cleared cart, got %d items", len(cart.Items))
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "231.00",
		Currency:  "USD",
	}

	first, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	second, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}

	if gateway.confirmCalls != 1 {
		t.Fatalf("expected gateway confirmed once, got %d", gateway.confirmCalls)
	}
	if second.Order == nil || second.Order.ID != first.Order.ID {
		t.Fatalf("expected same order on duplicate verify")
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected exactly one order, got %d", orderCount)
	}
	if stock := tireStock(t, db, tire.ID); stock != 8 {
		t.Fatalf("expected stock decremented once, got %d", stock)
	}
}

func TestVerifyPaymentStockUnderflowKeepsPaymentCompleted(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 5)
	addTireToCart(t, cartService, 1, tire, 5)
	payment := createPendingPayment(t, paymentService, 1)

	// stock vanishes between intent and confirmation
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).Update("stock", 3).Error; err != nil {
		t.Fatalf("shrink stock failed: %v", err)
	}

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
	}

	result, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Payment.Status != constants.PaymentStatusCompleted {
		t.Fatalf("charge stands: expected completed, got %s", result.Payment.Status)
	}
	if result.Order != nil {
		t.Fatal("expected no order after underflow")
	}

	// rollback leaves stock untouched
	if stock := tireStock(t, db, tire.ID); stock != 3 {
		t.Fatalf("expected stock 3 after rollback, got %d", stock)
	}
	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
}

func TestVerifyPaymentProviderPendingLeavesPaymentPending(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: false,
		Status:    constants.PaymentStatusPending,
	}

	_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrPaymentNotSettled) {
		t.Fatalf("expected ErrPaymentNotSettled, got %v", err)
	}

	reloaded, err := paymentService.GetPaymentForUser(payment.ID, 1)
	if err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusPending {
		t.Fatalf("expected still pending, got %s", reloaded.Status)
	}
	if stock := tireStock(t, db, tire.ID); stock != 10 {
		t.Fatalf("expected untouched stock, got %d", stock)
	}
}

func TestVerifyPaymentProviderDeclinedMarksFailed(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: false,
		Status:    constants.PaymentStatusFailed,
	}

	_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}

	reloaded, err := paymentService.GetPaymentForUser(payment.ID, 1)
	if err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", reloaded.Status)
	}
	if stock := tireStock(t, db, tire.ID); stock != 10 {
		t.Fatalf("expected untouched stock, got %d", stock)
	}

	// terminal: a later confirmation attempt does not resurrect the payment
	_, err = paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrPaymentAlreadyFinalized) {
		t.Fatalf("expected ErrPaymentAlreadyFinalized, got %v", err)
	}
}

func TestVerifyPaymentAmountMismatchRejected(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "100.00",
		Currency:  "USD",
	}

	_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}

	reloaded, err := paymentService.GetPaymentForUser(payment.ID, 1)
	if err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusPending {
		t.Fatalf("mismatch must not complete the payment, got %s", reloaded.Status)
	}
}

func TestVerifyPaymentRefMismatchRejected(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{Succeeded: true, Status: constants.PaymentStatusCompleted}

	_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:      1,
		PaymentID:   payment.ID,
		ProviderRef: "cs_someone_elses_session",
	})
	if !errors.Is(err, ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
	if gateway.confirmCalls != 0 {
		t.Fatalf("mismatched ref must not reach the provider, got %d calls", gateway.confirmCalls)
	}
}

func TestVerifyPaymentOwnerScoped(t *testing.T) {
	paymentService, cartService, db, _ := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    2,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound for another user, got %v", err)
	}
}

func TestPriceImmutabilityAfterCatalogChange(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	// catalog price changes mid-checkout
	if err := db.Model(&models.Tire{}).Where("id = ?", tire.ID).
		Update("price", models.NewMoneyFromDecimal(decimal.NewFromInt(999))).Error; err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "231.00",
		Currency:  "USD",
	}
	result, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got := result.Order.Items[0].UnitPrice.String(); got != "100.00" {
		t.Fatalf("order must keep the charged price, got %s", got)
	}
	if got := result.Order.TotalPrice.String(); got != "231.00" {
		t.Fatalf("order total must equal the charged amount, got %s", got)
	}
}

func TestRefundOnlyFromCompleted(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	if _, err := paymentService.Refund(payment.ID); !errors.Is(err, ErrPaymentAlreadyFinalized) {
		t.Fatalf("expected refund of pending payment rejected, got %v", err)
	}

	gateway.confirmation = &GatewayConfirmation{Succeeded: true, Status: constants.PaymentStatusCompleted}
	if _, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{UserID: 1, PaymentID: payment.ID}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	refunded, err := paymentService.Refund(payment.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}

	// repeat refunds settle on the same row
	again, err := paymentService.Refund(payment.ID)
	if err != nil {
		t.Fatalf("duplicate refund failed: %v", err)
	}
	if again.Status != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", again.Status)
	}
}

func TestCreatePaymentIntentPassesDeadlineToGateway(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)

	payment := createPendingPayment(t, paymentService, 1)
	if gateway.lastCreate.ExpiresAt == nil {
		t.Fatal("expected the pending deadline on the session input")
	}
	if payment.ExpiresAt == nil || !gateway.lastCreate.ExpiresAt.Equal(*payment.ExpiresAt) {
		t.Fatalf("session deadline %v must match the payment deadline %v", gateway.lastCreate.ExpiresAt, payment.ExpiresAt)
	}
}

func TestVerifyPaymentRecoversChargeAfterExpiry(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	// the expiry worker fires before the buyer comes back
	expired, err := paymentService.ExpirePayment(payment.ID, time.Now().Add(31*time.Minute))
	if err != nil || !expired {
		t.Fatalf("expire failed: %v (expired=%v)", err, expired)
	}

	// but the provider charged the card at minute 31
	paidAt := time.Now()
	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "231.00",
		Currency:  "USD",
		PaidAt:    &paidAt,
	}

	result, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if err != nil {
		t.Fatalf("a confirmed charge must never read as failure, got %v", err)
	}
	if gateway.confirmCalls != 1 {
		t.Fatalf("expected the provider consulted, got %d calls", gateway.confirmCalls)
	}
	if result.Payment.Status != constants.PaymentStatusCompleted {
		t.Fatalf("expected recovered payment completed, got %s", result.Payment.Status)
	}
	if result.Order == nil {
		t.Fatal("expected materialized order for the recovered charge")
	}
	if stock := tireStock(t, db, tire.ID); stock != 8 {
		t.Fatalf("expected stock 8 after recovery, got %d", stock)
	}
}

func TestVerifyPaymentExpiredUnpaidStaysExpired(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	expired, err := paymentService.ExpirePayment(payment.ID, time.Now().Add(31*time.Minute))
	if err != nil || !expired {
		t.Fatalf("expire failed: %v (expired=%v)", err, expired)
	}

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: false,
		Status:    constants.PaymentStatusExpired,
	}

	_, err = paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
		UserID:    1,
		PaymentID: payment.ID,
	})
	if !errors.Is(err, ErrPaymentAlreadyFinalized) {
		t.Fatalf("expected ErrPaymentAlreadyFinalized, got %v", err)
	}
	if gateway.confirmCalls != 1 {
		t.Fatalf("expected the provider consulted before rejecting, got %d calls", gateway.confirmCalls)
	}

	reloaded, err := paymentService.GetPaymentForUser(payment.ID, 1)
	if err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusExpired {
		t.Fatalf("expected still expired, got %s", reloaded.Status)
	}
	if stock := tireStock(t, db, tire.ID); stock != 10 {
		t.Fatalf("expected untouched stock, got %d", stock)
	}
}

func TestVerifyPaymentConcurrentSingleOrder(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	// one connection so racing transactions serialize at the database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 2)
	payment := createPendingPayment(t, paymentService, 1)

	gateway.confirmation = &GatewayConfirmation{
		Succeeded: true,
		Status:    constants.PaymentStatusCompleted,
		Amount:    "231.00",
		Currency:  "USD",
	}

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{
				UserID:    1,
				PaymentID: payment.ID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent verify failed: %v", err)
		}
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected exactly one order, got %d", orderCount)
	}
	if stock := tireStock(t, db, tire.ID); stock != 8 {
		t.Fatalf("expected stock decremented exactly once, got %d", stock)
	}
}

func TestExpirePaymentOnlyPending(t *testing.T) {
	paymentService, cartService, db, gateway := setupCheckoutTest(t)
	tire := seedCheckoutTire(t, db, 100, 10)
	addTireToCart(t, cartService, 1, tire, 1)
	payment := createPendingPayment(t, paymentService, 1)

	// before the deadline nothing happens
	expired, err := paymentService.ExpirePayment(payment.ID, time.Now())
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired {
		t.Fatal("payment expired before its deadline")
	}

	expired, err = paymentService.ExpirePayment(payment.ID, time.Now().Add(31*time.Minute))
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if !expired {
		t.Fatal("expected payment expired past its deadline")
	}
	reloaded, err := paymentService.GetPaymentForUser(payment.ID, 1)
	if err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", reloaded.Status)
	}

	// a completed payment is never expired
	addTireToCart(t, cartService, 2, tire, 1)
	second := createPendingPayment(t, paymentService, 2)
	gateway.confirmation = &GatewayConfirmation{Succeeded: true, Status: constants.PaymentStatusCompleted}
	if _, err := paymentService.VerifyPayment(context.Background(), VerifyPaymentInput{UserID: 2, PaymentID: second.ID}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	expired, err = paymentService.ExpirePayment(second.ID, time.Now().Add(31*time.Minute))
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired {
		t.Fatal("completed payment must not expire")
	}
}
