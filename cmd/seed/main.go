package main

import (
	"log"
	"os"
	"strings"

	"github.com/treadline/internal/authz"
	"github.com/treadline/internal/config"
	"github.com/treadline/internal/logger"
	"github.com/treadline/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("failed to migrate database: %v", err)
	}

	tires := []models.Tire{
		{
			Name:      "Michelin Pilot Sport 4S",
			Brand:     "Michelin",
			Size:      "245/40R18",
			LoadIndex: "97Y",
			Season:    "summer",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(289.99)),
			Stock:     40,
			Thumbnail: "https://images.example.com/tires/pilot-sport-4s.jpg",
			IsActive:  true,
		},
		{
			Name:      "Bridgestone Blizzak WS90",
			Brand:     "Bridgestone",
			Size:      "225/45R17",
			LoadIndex: "91H",
			Season:    "winter",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(174.50)),
			Stock:     64,
			Thumbnail: "https://images.example.com/tires/blizzak-ws90.jpg",
			IsActive:  true,
		},
		{
			Name:      "Continental TrueContact Tour",
			Brand:     "Continental",
			Size:      "215/55R17",
			LoadIndex: "94V",
			Season:    "all-season",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(142.00)),
			Stock:     120,
			Thumbnail: "https://images.example.com/tires/truecontact-tour.jpg",
			IsActive:  true,
		},
		{
			Name:      "Goodyear Eagle F1 Asymmetric 6",
			Brand:     "Goodyear",
			Size:      "255/35R19",
			LoadIndex: "96Y",
			Season:    "summer",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(312.75)),
			Stock:     0,
			Thumbnail: "https://images.example.com/tires/eagle-f1-a6.jpg",
			IsActive:  true,
		},
	}
	for _, tire := range tires {
		var existing models.Tire
		if err := models.DB.Where("name = ? AND size = ?", tire.Name, tire.Size).First(&existing).Error; err != nil {
			if err := models.DB.Create(&tire).Error; err != nil {
				stdLog.Printf("failed to create tire %s: %v", tire.Name, err)
			} else {
				stdLog.Printf("created tire: %s %s", tire.Name, tire.Size)
			}
		} else {
			stdLog.Printf("tire already exists: %s %s", tire.Name, tire.Size)
		}
	}

	wheels := []models.Wheel{
		{
			Name:        "Enkei RPF1",
			Brand:       "Enkei",
			Diameter:    "17x8",
			BoltPattern: "5x114.3",
			Finish:      "silver",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(265.00)),
			Stock:       32,
			Thumbnail:   "https://images.example.com/wheels/rpf1.jpg",
			IsActive:    true,
		},
		{
			Name:        "BBS CH-R",
			Brand:       "BBS",
			Diameter:    "19x8.5",
			BoltPattern: "5x112",
			Finish:      "satin black",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(689.00)),
			Stock:       16,
			Thumbnail:   "https://images.example.com/wheels/ch-r.jpg",
			IsActive:    true,
		},
		{
			Name:        "Method Race Wheels MR305",
			Brand:       "Method",
			Diameter:    "17x8.5",
			BoltPattern: "6x139.7",
			Finish:      "matte black",
			Price:       models.NewMoneyFromDecimal(decimal.NewFromFloat(231.00)),
			Stock:       48,
			Thumbnail:   "https://images.example.com/wheels/mr305.jpg",
			IsActive:    true,
		},
	}
	for _, wheel := range wheels {
		var existing models.Wheel
		if err := models.DB.Where("name = ? AND diameter = ?", wheel.Name, wheel.Diameter).First(&existing).Error; err != nil {
			if err := models.DB.Create(&wheel).Error; err != nil {
				stdLog.Printf("failed to create wheel %s: %v", wheel.Name, err)
			} else {
				stdLog.Printf("created wheel: %s %s", wheel.Name, wheel.Diameter)
			}
		} else {
			stdLog.Printf("wheel already exists: %s %s", wheel.Name, wheel.Diameter)
		}
	}

	products := []models.Product{
		{
			Name:      "Gorilla Acorn Lug Nut Kit",
			Brand:     "Gorilla",
			Category:  "lug-nuts",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(42.99)),
			Stock:     200,
			Thumbnail: "https://images.example.com/products/gorilla-lug-nuts.jpg",
			IsActive:  true,
		},
		{
			Name:      "Schrader TPMS Sensor 433MHz",
			Brand:     "Schrader",
			Category:  "sensors",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(58.50)),
			Stock:     150,
			Thumbnail: "https://images.example.com/products/schrader-tpms.jpg",
			IsActive:  true,
		},
		{
			Name:      "Hub Centric Ring Set 73.1-64.1",
			Brand:     "Treadline",
			Category:  "hub-rings",
			Price:     models.NewMoneyFromDecimal(decimal.NewFromFloat(14.99)),
			Stock:     500,
			Thumbnail: "https://images.example.com/products/hub-rings.jpg",
			IsActive:  true,
		},
	}
	for _, product := range products {
		var existing models.Product
		if err := models.DB.Where("name = ?", product.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&product).Error; err != nil {
				stdLog.Printf("failed to create product %s: %v", product.Name, err)
			} else {
				stdLog.Printf("created product: %s", product.Name)
			}
		} else {
			stdLog.Printf("product already exists: %s", product.Name)
		}
	}

	seedAdmin(stdLog)

	stdLog.Println("seed completed")
}

// seedAdmin creates the bootstrap admin account and grants it the admin
// role. Controlled by TL_ADMIN_EMAIL / TL_ADMIN_PASSWORD so no default
// credential ships in code.
func seedAdmin(stdLog *log.Logger) {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("TL_ADMIN_EMAIL")))
	password := os.Getenv("TL_ADMIN_PASSWORD")
	if email == "" || password == "" {
		stdLog.Printf("TL_ADMIN_EMAIL or TL_ADMIN_PASSWORD not set, skipping admin seed")
		return
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("failed to bootstrap roles: %v", err)
	}

	var user models.User
	if err := models.DB.Where("email = ?", email).First(&user).Error; err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Fatalf("failed to hash admin password: %v", err)
		}
		user = models.User{
			Email:        email,
			PasswordHash: string(hash),
			Name:         "Administrator",
			Role:         "admin",
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Fatalf("failed to create admin user: %v", err)
		}
		stdLog.Printf("created admin user: %s", email)
	} else {
		stdLog.Printf("admin user already exists: %s", email)
	}

	if err := authzService.SetUserRoles(user.ID, []string{"role:admin"}); err != nil {
		stdLog.Fatalf("failed to grant admin role: %v", err)
	}
	stdLog.Printf("granted role:admin to user %d", user.ID)
}
