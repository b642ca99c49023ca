package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/provider"
	"github.com/treadline/internal/queue"
	"github.com/treadline/internal/repository"
	"github.com/treadline/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) *Consumer {
	t.Helper()

	dsn := fmt.Sprintf("file:worker_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Tire{}, &models.Wheel{}, &models.Product{},
		&models.Cart{}, &models.CartItem{}, &models.Payment{},
		&models.Order{}, &models.OrderItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	models.DB = db

	checkout := config.CheckoutConfig{
		Currency:              "USD",
		TaxRate:               0.08,
		ShippingFlat:          15,
		FreeShippingThreshold: 500,
		PendingExpireMinutes:  30,
	}

	cartRepo := repository.NewCartRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client: %v", err)
	}

	cartService := service.NewCartService(cartRepo, catalogRepo, checkout)
	orderService := service.NewOrderService(orderRepo, cartRepo, catalogRepo, checkout)
	paymentService := service.NewPaymentService(paymentRepo, cartService, orderService, service.GatewayRegistry{}, queueClient, checkout)

	return NewConsumer(&provider.Container{
		PaymentRepo:    paymentRepo,
		PaymentService: paymentService,
	})
}

func seedWorkerPayment(t *testing.T, status string, expiresAt time.Time) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		PaymentNo: fmt.Sprintf("TLP%d", time.Now().UnixNano()),
		UserID:    1,
		CartID:    1,
		Method:    constants.PaymentMethodStripe,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(231)),
		Currency:  "USD",
		Status:    status,
		ExpiresAt: &expiresAt,
	}
	if err := models.DB.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return payment
}

func TestHandlePaymentExpireMarksOverduePending(t *testing.T) {
	consumer := setupWorkerTest(t)
	payment := seedWorkerPayment(t, constants.PaymentStatusPending, time.Now().Add(-time.Minute))

	task, err := queue.NewPaymentExpireTask(queue.PaymentExpirePayload{PaymentID: payment.ID})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := consumer.handlePaymentExpire(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var got models.Payment
	if err := models.DB.First(&got, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if got.Status != constants.PaymentStatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}

func TestHandlePaymentExpireLeavesCompletedAlone(t *testing.T) {
	consumer := setupWorkerTest(t)
	payment := seedWorkerPayment(t, constants.PaymentStatusCompleted, time.Now().Add(-time.Minute))

	task, err := queue.NewPaymentExpireTask(queue.PaymentExpirePayload{PaymentID: payment.ID})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := consumer.handlePaymentExpire(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var got models.Payment
	if err := models.DB.First(&got, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if got.Status != constants.PaymentStatusCompleted {
		t.Fatalf("expected completed to stay, got %s", got.Status)
	}
}

func TestHandlePaymentExpireUnknownPaymentAcked(t *testing.T) {
	consumer := setupWorkerTest(t)

	task, err := queue.NewPaymentExpireTask(queue.PaymentExpirePayload{PaymentID: 9999})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := consumer.handlePaymentExpire(context.Background(), task); err != nil {
		t.Fatalf("expected unknown payment to be acked, got %v", err)
	}
}

func TestHandlePaymentReconcileAlertAcked(t *testing.T) {
	consumer := setupWorkerTest(t)
	payment := seedWorkerPayment(t, constants.PaymentStatusCompleted, time.Now().Add(time.Hour))

	task, err := queue.NewPaymentReconcileAlertTask(queue.PaymentReconcileAlertPayload{
		PaymentID: payment.ID,
		Reason:    "order materialization failed",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := consumer.handlePaymentReconcileAlert(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
