package provider

import (
	"github.com/treadline/internal/authz"
	"github.com/treadline/internal/cache"
	"github.com/treadline/internal/config"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/models"
	"github.com/treadline/internal/queue"
	"github.com/treadline/internal/repository"
	"github.com/treadline/internal/service"
)

// Container holds the wired dependencies shared by HTTP and worker services.
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo    repository.UserRepository
	CatalogRepo repository.CatalogRepository
	CartRepo    repository.CartRepository
	PaymentRepo repository.PaymentRepository
	OrderRepo   repository.OrderRepository

	// Services
	AuthzService    *authz.Service
	AuthService     *service.AuthService
	CartService     *service.CartService
	OrderService    *service.OrderService
	PaymentService  *service.PaymentService
	GatewayRegistry service.GatewayRegistry
}

// NewContainer wires everything up. models.InitDB must have run first.
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.CatalogRepo = repository.NewCatalogRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.GatewayRegistry = service.NewGatewayRegistry(c.Config)

	c.AuthService = service.NewAuthService(c.Config, c.UserRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.CatalogRepo, c.Config.Checkout)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.CartRepo, c.CatalogRepo, c.Config.Checkout)
	c.PaymentService = service.NewPaymentService(c.PaymentRepo, c.CartService, c.OrderService, c.GatewayRegistry, c.QueueClient, c.Config.Checkout)
}
