package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// getCart returns the session's cart, creating an empty one if absent
func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.carts.GetOrCreate(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// addCartItem adds a product to the cart
func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "productId and a quantity of at least 1 are required"})
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), c.Param("sessionId"), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// updateCartItem sets a line's quantity; zero or less removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity is required"})
		return
	}

	cart, err := h.carts.UpdateItem(c.Request.Context(), c.Param("sessionId"), c.Param("itemId"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// removeCartItem removes a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.carts.RemoveItem(c.Request.Context(), c.Param("sessionId"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.carts.Clear(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
