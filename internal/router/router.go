package router

import (
	"fmt"
	"strings"

	"github.com/treadline/internal/cache"
	"github.com/treadline/internal/config"
	adminhandlers "github.com/treadline/internal/http/handlers/admin"
	publichandlers "github.com/treadline/internal/http/handlers/public"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine with all API routes.
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "tl"
	}
	redisClient := cache.Client()
	verifyRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:verify", redisPrefix),
		WindowSeconds: 60,
		MaxRequests:   cfg.Checkout.VerifyRateLimitPerMin,
		Message:       "too many verification attempts",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", publicHandler.Login)
		}

		// Provider callbacks carry their own signature check, so they stay
		// outside the JWT group.
		apiV1.POST("/webhooks/stripe", publicHandler.StripeWebhook)

		user := apiV1.Group("")
		user.Use(JWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			user.GET("/cart", publicHandler.GetCart)
			user.POST("/cart/items", publicHandler.AddCartItem)
			user.PUT("/cart/items/:item_id", publicHandler.UpdateCartItem)
			user.DELETE("/cart/items/:item_id", publicHandler.RemoveCartItem)
			user.DELETE("/cart", publicHandler.ClearCart)

			user.POST("/payment/create-payment-intent", publicHandler.CreatePaymentIntent)
			user.POST("/payment/verify-stripe", RateLimitMiddleware(redisClient, verifyRule, KeyByIPAndUser), publicHandler.VerifyStripePayment)
			user.POST("/payment/verify-paypal", RateLimitMiddleware(redisClient, verifyRule, KeyByIPAndUser), publicHandler.VerifyPaypalPayment)
			user.GET("/payment/:id", publicHandler.GetPayment)

			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:id", publicHandler.GetOrder)
		}

		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey), AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/orders", adminHandler.ListOrders)
			admin.GET("/orders/:id", adminHandler.GetOrder)
			admin.PUT("/orders/:id/status", adminHandler.UpdateOrderStatus)
			admin.GET("/payments", adminHandler.ListPayments)
			admin.POST("/payments/:id/refund", adminHandler.RefundPayment)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
