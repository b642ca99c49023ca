package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/treadline/internal/models"
)

const cartCacheTTL = 5 * time.Minute

func cartKey(userID uint) string {
	return fmt.Sprintf("cart:user:%d", userID)
}

// GetCart reads a user's cached cart view.
func GetCart(ctx context.Context, userID uint) (*models.Cart, bool, error) {
	if userID == 0 {
		return nil, false, nil
	}
	var cart models.Cart
	hit, err := GetJSON(ctx, cartKey(userID), &cart)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &cart, true, nil
}

// SetCart caches a user's cart view.
func SetCart(ctx context.Context, userID uint, cart *models.Cart) error {
	if userID == 0 || cart == nil {
		return nil
	}
	return SetJSON(ctx, cartKey(userID), cart, cartCacheTTL)
}

// DelCart drops the cached view. Called after every cart mutation and
// after checkout clears the cart.
func DelCart(ctx context.Context, userID uint) error {
	if userID == 0 {
		return nil
	}
	return Del(ctx, cartKey(userID))
}
