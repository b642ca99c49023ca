package repository

import (
	"errors"

	"github.com/treadline/internal/constants"
	"github.com/treadline/internal/models"

	"gorm.io/gorm"
)

// CatalogItem is the uniform read view over the three catalog tables.
type CatalogItem struct {
	Ref       models.ProductRef
	Name      string
	Brand     string
	Price     models.Money
	Stock     int
	Thumbnail string
	IsActive  bool
}

// ErrUnknownProductKind is returned for a kind outside the dispatch table.
var ErrUnknownProductKind = errors.New("unknown product kind")

// CatalogRepository resolves and mutates catalog items by tagged reference.
type CatalogRepository interface {
	GetByRef(ref models.ProductRef) (*CatalogItem, error)
	DecrementStock(ref models.ProductRef, quantity int) (int64, error)
	WithTx(tx *gorm.DB) *GormCatalogRepository
}

// GormCatalogRepository is the GORM implementation.
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a catalog repository.
func NewCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormCatalogRepository) WithTx(tx *gorm.DB) *GormCatalogRepository {
	if tx == nil {
		return r
	}
	return &GormCatalogRepository{db: tx}
}

// catalogStore adapts one catalog table to the uniform item view.
type catalogStore interface {
	get(db *gorm.DB, id uint) (*CatalogItem, error)
	decrementStock(db *gorm.DB, id uint, quantity int) (int64, error)
}

// catalogStores maps the kind discriminator to its table adapter. Consumers
// dispatch through this table instead of switching on the kind themselves.
var catalogStores = map[string]catalogStore{
	constants.ProductKindTire:    tireStore{},
	constants.ProductKindWheel:   wheelStore{},
	constants.ProductKindProduct: productStore{},
}

// GetByRef fetches one catalog item, nil when absent.
func (r *GormCatalogRepository) GetByRef(ref models.ProductRef) (*CatalogItem, error) {
	store, ok := catalogStores[ref.Kind]
	if !ok {
		return nil, ErrUnknownProductKind
	}
	return store.get(r.db, ref.ID)
}

// DecrementStock atomically subtracts quantity from the item's stock. The
// floor check runs inside the UPDATE itself; a result of 0 rows means the
// decrement would have gone negative and nothing was changed.
func (r *GormCatalogRepository) DecrementStock(ref models.ProductRef, quantity int) (int64, error) {
	if ref.ID == 0 || quantity <= 0 {
		return 0, errors.New("invalid stock decrement params")
	}
	store, ok := catalogStores[ref.Kind]
	if !ok {
		return 0, ErrUnknownProductKind
	}
	return store.decrementStock(r.db, ref.ID, quantity)
}

type tireStore struct{}

func (tireStore) get(db *gorm.DB, id uint) (*CatalogItem, error) {
	var row models.Tire
	result := db.Where("id = ?", id).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &CatalogItem{
		Ref:       models.ProductRef{Kind: constants.ProductKindTire, ID: row.ID},
		Name:      row.Name,
		Brand:     row.Brand,
		Price:     row.Price,
		Stock:     row.Stock,
		Thumbnail: row.Thumbnail,
		IsActive:  row.IsActive,
	}, nil
}

func (tireStore) decrementStock(db *gorm.DB, id uint, quantity int) (int64, error) {
	result := db.Model(&models.Tire{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	return result.RowsAffected, result.Error
}

type wheelStore struct{}

func (wheelStore) get(db *gorm.DB, id uint) (*CatalogItem, error) {
	var row models.Wheel
	result := db.Where("id = ?", id).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &CatalogItem{
		Ref:       models.ProductRef{Kind: constants.ProductKindWheel, ID: row.ID},
		Name:      row.Name,
		Brand:     row.Brand,
		Price:     row.Price,
		Stock:     row.Stock,
		Thumbnail: row.Thumbnail,
		IsActive:  row.IsActive,
	}, nil
}

func (wheelStore) decrementStock(db *gorm.DB, id uint, quantity int) (int64, error) {
	result := db.Model(&models.Wheel{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	return result.RowsAffected, result.Error
}

type productStore struct{}

func (productStore) get(db *gorm.DB, id uint) (*CatalogItem, error) {
	var row models.Product
	result := db.Where("id = ?", id).Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &CatalogItem{
		Ref:       models.ProductRef{Kind: constants.ProductKindProduct, ID: row.ID},
		Name:      row.Name,
		Brand:     row.Brand,
		Price:     row.Price,
		Stock:     row.Stock,
		Thumbnail: row.Thumbnail,
		IsActive:  row.IsActive,
	}, nil
}

func (productStore) decrementStock(db *gorm.DB, id uint, quantity int) (int64, error) {
	result := db.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	return result.RowsAffected, result.Error
}
