package public

import (
	"strconv"

	"github.com/treadline/internal/cache"
	"github.com/treadline/internal/http/response"
	"github.com/treadline/internal/service"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest adds one catalog item to the cart.
type AddCartItemRequest struct {
	ProductKind string `json:"product_kind" binding:"required"`
	ProductID   uint   `json:"product_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest changes one line's quantity. Zero removes the line.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart returns the caller's cart.
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	if cached, hit, err := cache.GetCart(c.Request.Context(), uid); err == nil && hit {
		response.Success(c, cached)
		return
	}

	cart, err := h.CartService.GetCart(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "cart fetch failed", err)
		return
	}

	_ = cache.SetCart(c.Request.Context(), uid, cart)
	response.Success(c, cart)
}

// AddCartItem adds an item or increments an existing line.
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	cart, err := h.CartService.AddItem(service.AddItemInput{
		UserID:      uid,
		ProductKind: req.ProductKind,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}

	_ = cache.DelCart(c.Request.Context(), uid)
	response.Success(c, cart)
}

// UpdateCartItem sets one line's quantity.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("item_id"), 10, 64)
	if err != nil || itemID == 0 {
		respondError(c, response.CodeBadRequest, "cart item id invalid", nil)
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	cart, err := h.CartService.UpdateItemQuantity(uid, uint(itemID), *req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}

	_ = cache.DelCart(c.Request.Context(), uid)
	response.Success(c, cart)
}

// RemoveCartItem deletes one line.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("item_id"), 10, 64)
	if err != nil || itemID == 0 {
		respondError(c, response.CodeBadRequest, "cart item id invalid", nil)
		return
	}

	cart, err := h.CartService.RemoveItem(uid, uint(itemID))
	if err != nil {
		respondCartError(c, err)
		return
	}

	_ = cache.DelCart(c.Request.Context(), uid)
	response.Success(c, cart)
}

// ClearCart removes every line. Clearing an empty cart succeeds.
func (h *Handler) ClearCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	cart, err := h.CartService.Clear(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "cart update failed", err)
		return
	}

	_ = cache.DelCart(c.Request.Context(), uid)
	response.Success(c, cart)
}
