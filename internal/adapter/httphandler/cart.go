package httphandler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/niksmo/keyshop/internal/core/port"
)

type cartHandler struct {
	cart        port.CartService
	checkout    port.CheckoutService
	mediaPrefix string
}

func registerCart(r gin.IRouter, s Services, mediaPrefix string) {
	h := cartHandler{s.Cart, s.Checkout, mediaPrefix}
	r.GET("/cart", h.get)
	r.POST("/cart/items", h.add)
	r.PUT("/cart/items/:product_id", h.update)
	r.DELETE("/cart/items/:product_id", h.remove)
	r.DELETE("/cart", h.clear)
	r.POST("/checkout", h.checkoutCart)
}

func (h cartHandler) get(c *gin.Context) {
	const op = "cartHandler.get"

	cart, err := h.cart.Cart(c.Request.Context(), sessionID(c))
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toCart(cart, h.mediaPrefix))
}

// POST /cart/items adds one unit when quantity is omitted.
func (h cartHandler) add(c *gin.Context) {
	const op = "cartHandler.add"

	var req struct {
		ProductID int64 `json:"product_id" binding:"required"`
		Quantity  *int  `json:"quantity"`
	}
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	cart, err := h.cart.AddToCart(
		c.Request.Context(), sessionID(c), req.ProductID, qty,
	)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toCart(cart, h.mediaPrefix))
}

func (h cartHandler) update(c *gin.Context) {
	const op = "cartHandler.update"

	productID, err := pathID(c, "product_id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	var req updateCartItemRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	cart, err := h.cart.UpdateCartLine(
		c.Request.Context(), sessionID(c), productID, req.Quantity,
	)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toCart(cart, h.mediaPrefix))
}

func (h cartHandler) remove(c *gin.Context) {
	const op = "cartHandler.remove"

	productID, err := pathID(c, "product_id")
	if err != nil {
		writeError(c, op, err)
		return
	}

	cart, err := h.cart.RemoveFromCart(
		c.Request.Context(), sessionID(c), productID,
	)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toCart(cart, h.mediaPrefix))
}

func (h cartHandler) clear(c *gin.Context) {
	const op = "cartHandler.clear"

	if err := h.cart.ClearCart(c.Request.Context(), sessionID(c)); err != nil {
		writeError(c, op, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /checkout buys the whole cart. Keys are sent to the given email.
func (h cartHandler) checkoutCart(c *gin.Context) {
	const op = "cartHandler.checkoutCart"

	var req checkoutRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, op, err)
		return
	}

	p, err := h.checkout.Checkout(c.Request.Context(), sessionID(c), req.Email)
	if err != nil {
		writeError(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, toPurchase(p))
}
