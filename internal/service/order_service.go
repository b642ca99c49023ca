package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/treadline/internal/config"
	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// allowedOrderTransitions is the forward-only order progression. Cancel is
// reachable only before shipment; delivered is terminal.
var allowedOrderTransitions = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCancelled:  true,
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusShipped:   true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusShipped: {
		constants.OrderStatusDelivered: true,
	},
}

// OrderService materializes orders from completed payments and manages
// their lifecycle.
type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	catalogRepo repository.CatalogRepository
	checkout    config.CheckoutConfig
}

// NewOrderService creates an order service.
func NewOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, catalogRepo repository.CatalogRepository, checkout config.CheckoutConfig) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		catalogRepo: catalogRepo,
		checkout:    checkout,
	}
}

// MaterializeFromPayment turns one completed payment into one order.
// Idempotent on payment id: when the order already exists it is returned
// unchanged. Order row, per-line stock decrements and cart clearing commit
// or roll back together.
func (s *OrderService) MaterializeFromPayment(payment *models.Payment) (*models.Order, error) {
	if payment == nil || payment.ID == 0 {
		return nil, ErrPaymentInvalid
	}

	existing, err := s.orderRepo.GetByPaymentID(payment.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var order *models.Order
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		cartRepo := s.cartRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)

		// Re-check inside the transaction; the unique index on payment_id
		// backstops any race that slips past this read.
		created, err := orderRepo.GetByPaymentID(payment.ID)
		if err != nil {
			return err
		}
		if created != nil {
			order = created
			return nil
		}

		cart, err := cartRepo.GetByID(payment.CartID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrCartEmpty
		}

		now := time.Now()
		itemsPrice := decimal.Zero
		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, line := range cart.Items {
			if line.Quantity <= 0 {
				return ErrQuantityInvalid
			}
			lineTotal := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, models.OrderItem{
				ProductKind: line.ProductKind,
				ProductID:   line.ProductID,
				Name:        line.Name,
				Thumbnail:   line.Thumbnail,
				UnitPrice:   line.Price,
				Quantity:    line.Quantity,
				TotalPrice:  models.NewMoneyFromDecimal(lineTotal),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			itemsPrice = itemsPrice.Add(lineTotal)
		}

		taxPrice := itemsPrice.Mul(decimal.NewFromFloat(s.checkout.TaxRate)).Round(2)
		shippingPrice := s.shippingFor(itemsPrice)
		totalPrice := itemsPrice.Add(taxPrice).Add(shippingPrice.Decimal)

		order = &models.Order{
			OrderNo:         generateOrderNo(),
			UserID:          payment.UserID,
			PaymentID:       payment.ID,
			Status:          constants.OrderStatusPending,
			ItemsPrice:      models.NewMoneyFromDecimal(itemsPrice),
			TaxPrice:        models.NewMoneyFromDecimal(taxPrice),
			ShippingPrice:   shippingPrice,
			TotalPrice:      models.NewMoneyFromDecimal(totalPrice),
			BillingAddress:  payment.BillingAddress,
			ShippingAddress: payment.ShippingAddress,
			PaidAt:          payment.PaidAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := orderRepo.Create(order, items); err != nil {
			return err
		}

		for _, line := range cart.Items {
			rows, err := catalogRepo.DecrementStock(line.Ref(), line.Quantity)
			if err != nil {
				return err
			}
			if rows == 0 {
				logger.Warnw("order_stock_underflow",
					"payment_id", payment.ID,
					"product_kind", line.ProductKind,
					"product_id", line.ProductID,
					"quantity", line.Quantity,
				)
				return ErrStockUnderflow
			}
		}

		if err := cartRepo.ClearItems(cart.ID); err != nil {
			return err
		}
		return cartRepo.UpdateTotals(cart.ID, models.Money{}, 0)
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_materialized",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"payment_id", payment.ID,
		"user_id", payment.UserID,
		"total_price", order.TotalPrice.String(),
	)
	return order, nil
}

// GetByIDForUser fetches one order scoped to its owner.
func (s *OrderService) GetByIDForUser(orderID, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListByUser lists one user's orders, newest first.
func (s *OrderService) ListByUser(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if filter.UserID == 0 {
		return nil, 0, ErrUserNotFound
	}
	return s.orderRepo.ListByUser(filter)
}

// ListAdmin lists orders across users for the back office.
func (s *OrderService) ListAdmin(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// GetByID fetches one order without owner scoping.
func (s *OrderService) GetByID(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves an order along the forward-only progression. Delivered
// stamps delivered_at; any transition outside the table is rejected.
func (s *OrderService) UpdateStatus(orderID uint, newStatus string) (*models.Order, error) {
	newStatus = strings.ToLower(strings.TrimSpace(newStatus))
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !allowedOrderTransitions[order.Status][newStatus] {
		return nil, ErrOrderStatusInvalid
	}

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	if newStatus == constants.OrderStatusDelivered {
		updates["delivered_at"] = now
	}
	if err := s.orderRepo.UpdateStatus(order.ID, newStatus, updates); err != nil {
		return nil, err
	}

	logger.Infow("order_status_updated",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"from", order.Status,
		"to", newStatus,
	)
	return s.orderRepo.GetByID(order.ID)
}

// shippingFor applies the flat rate below the free-shipping threshold.
func (s *OrderService) shippingFor(itemsPrice decimal.Decimal) models.Money {
	threshold := decimal.NewFromFloat(s.checkout.FreeShippingThreshold)
	if threshold.IsPositive() && itemsPrice.GreaterThanOrEqual(threshold) {
		return models.Money{}
	}
	return models.NewMoneyFromDecimal(decimal.NewFromFloat(s.checkout.ShippingFlat))
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("TLO%s%s", now, randNumeric(6))
}

func generatePaymentNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("TLP%s%s", now, randNumeric(6))
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteString(n.String())
	}
	return b.String()
}
