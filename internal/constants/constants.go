package constants

// Order status constants
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment status constants
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusExpired   = "expired"
)

// Payment method constants
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodPaypal = "paypal"
)

// Product kind constants
const (
	ProductKindTire    = "tire"
	ProductKindWheel   = "wheel"
	ProductKindProduct = "product"
)

// User role constants
const (
	UserRoleCustomer = "customer"
	UserRoleAdmin    = "admin"
)

// DefaultCurrency is used when a payment does not carry one explicitly.
const DefaultCurrency = "USD"

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Async task type names
const (
	TaskPaymentExpire         = "payment:expire"
	TaskPaymentReconcileAlert = "payment:reconcile_alert"
)

// Context keys shared between middleware and handlers
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)

// HTTP header names
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
)
