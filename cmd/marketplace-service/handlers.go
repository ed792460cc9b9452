package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/mercado-mp/internal/cart"
	"github.com/MikeMC777/mercado-mp/internal/catalog"
	"github.com/MikeMC777/mercado-mp/internal/httpx"
	"github.com/MikeMC777/mercado-mp/internal/order"
)

// envelope is the uniform response shape for every operation.
// swagger:model
type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, code int, msg string, data any) {
	c.JSON(code, envelope{OK: code < 400, Message: msg, Data: data})
}

// fail maps the error taxonomy onto HTTP codes. Anything unrecognized is a
// persistence failure already rolled back; the caller gets a generic
// retryable message, the log gets the detail.
func fail(c *gin.Context, err error) {
	var lineErr *order.LineError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrNotFound):
		respond(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, cart.ErrSelfPurchase),
		errors.Is(err, cart.ErrInsufficientStock),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrStatusNotFound),
		errors.As(err, &lineErr):
		respond(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition):
		respond(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, order.ErrConfiguration):
		respond(c, http.StatusInternalServerError, err.Error(), nil)
	default:
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v unhandled error: %v", rid, err)
		respond(c, http.StatusServiceUnavailable, "temporary failure, please retry", nil)
	}
}

// @Summary Get one catalog item
// @Produce json
// @Success 200 {object} envelope
// @Router /items/{id} [get]
func getItemHandler(items catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		it, err := items.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "item", it)
	}
}

// @Summary List the buyer's cart
// @Router /cart [get]
func listCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		lines, err := svc.List(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "cart", lines)
	}
}

// @Summary Add an item to the cart (merges with an existing line)
// @Param body body cart.AddLineRequest true "line"
// @Router /cart [post]
func addToCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddLineRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ItemID == "" {
			respond(c, http.StatusBadRequest, "item_id and quantity are required", nil)
			return
		}
		line, err := svc.AddLine(c.Request.Context(), httpx.UserID(c), req.ItemID, req.Quantity)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "added to cart", line)
	}
}

// @Summary Set a line's quantity
// @Router /cart/{itemID} [put]
func updateCartItemHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.UpdateLineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "quantity is required", nil)
			return
		}
		line, removed, err := svc.UpdateLine(c.Request.Context(), httpx.UserID(c), c.Param("itemID"), req.Quantity)
		if err != nil {
			fail(c, err)
			return
		}
		if removed {
			respond(c, http.StatusOK, "item no longer available, removed from cart", nil)
			return
		}
		respond(c, http.StatusOK, "cart updated", line)
	}
}

// @Summary Remove one line
// @Router /cart/{itemID} [delete]
func removeFromCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RemoveLine(c.Request.Context(), httpx.UserID(c), c.Param("itemID")); err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "removed from cart", nil)
	}
}

// @Summary Clear the cart
// @Router /cart [delete]
func clearCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.ClearCart(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "cart cleared", gin.H{"removed": n})
	}
}

// @Summary Pre-flight the cart without mutating it
// @Router /cart/validate [get]
func validateCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := svc.Validate(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "cart validated", rep)
	}
}

// @Summary Drop every line whose item is no longer purchasable
// @Router /cart/cleanup [post]
func cleanupCartHandler(svc *cart.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.Cleanup(c.Request.Context(), httpx.UserID(c))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "cart cleaned", gin.H{"removed": n})
	}
}

// @Summary Convert the cart into an order
// @Param body body order.CheckoutRequest true "checkout"
// @Router /orders [post]
func createOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond(c, http.StatusBadRequest, "invalid payload", nil)
			return
		}
		res, err := svc.Checkout(c.Request.Context(), httpx.UserID(c), order.CheckoutInput{
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Notes:           req.Notes,
		})
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusCreated, "order created", res)
	}
}

// @Summary List the buyer's orders
// @Router /orders [get]
func listOrdersHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		orders, err := svc.List(c.Request.Context(), httpx.UserID(c), limit, offset)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "orders", orders)
	}
}

// @Summary Get one order with its lines
// @Router /orders/{id} [get]
func getOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, lines, err := svc.Get(c.Request.Context(), httpx.UserID(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "order", gin.H{"order": o, "lines": lines})
	}
}

// @Summary Cancel an order, restoring stock
// @Router /orders/{id}/cancel [post]
func cancelOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.Cancel(c.Request.Context(), httpx.UserID(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "order cancelled", o)
	}
}

// @Summary Apply a lifecycle transition
// @Param body body order.UpdateStatusRequest true "target status"
// @Router /orders/{id}/status [put]
func updateOrderStatusHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
			respond(c, http.StatusBadRequest, "status is required", nil)
			return
		}
		// every transition is attributed to the token's subject
		log.Printf("[order] status update order=%s target=%s by user=%d",
			c.Param("id"), req.Status, httpx.UserID(c))
		o, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, http.StatusOK, "status updated", gin.H{
			"order": o,
			"next":  order.Transitions(o.Status),
		})
	}
}
