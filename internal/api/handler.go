package api

import (
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/recovery"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService     *service.CartService
	checkoutService *service.CheckoutService
	paths           recovery.PathStore
}

// NewHandler creates a new HTTP handler
func NewHandler(cartService *service.CartService, checkoutService *service.CheckoutService, paths recovery.PathStore) *Handler {
	return &Handler{
		cartService:     cartService,
		checkoutService: checkoutService,
		paths:           paths,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/carts/:session", h.getCart)
		v1.POST("/carts/:session/items", h.addItem)
		v1.PATCH("/carts/:session/items", h.updateQuantity)
		v1.DELETE("/carts/:session/items", h.removeItem)
		v1.DELETE("/carts/:session", h.clearCart)

		v1.POST("/checkout/:session", h.beginCheckout)
		v1.POST("/checkout/:session/address", h.setAddress)
		v1.POST("/checkout/:session/shipping", h.selectShipping)
		v1.POST("/checkout/:session/confirm", h.confirm)
		v1.POST("/checkout/:session/legacy-session", h.legacySession)

		v1.GET("/success", h.successArrival)
		v1.POST("/recover/:session", h.savePath)
		v1.GET("/recover/:session", h.consumePath)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type addItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size,omitempty"`
}

func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.cartService.AddItem(c.Request.Context(), c.Param("session"), req.ProductID, req.Size)
	if err != nil {
		// An unknown product or size is the shopper's 404; everything
		// else (repository, transport) keeps its own status.
		if apperr.IsKind(err, apperr.KindValidation) {
			c.JSON(http.StatusNotFound, gin.H{"error": apperr.UserMessage(err)})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateQuantityRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required"`
	Size      string `json:"size,omitempty"`
}

func (h *Handler) updateQuantity(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.cartService.UpdateQuantity(c.Request.Context(), c.Param("session"), req.ProductID, *req.Quantity, req.Size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type removeItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size,omitempty"`
}

func (h *Handler) removeItem(c *gin.Context) {
	var req removeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.cartService.RemoveItem(c.Request.Context(), c.Param("session"), req.ProductID, req.Size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cartService.GetCart(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), c.Param("session"), "user_request"); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) beginCheckout(c *gin.Context) {
	resp, err := h.checkoutService.Begin(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

type setAddressRequest struct {
	Address  models.Address `json:"address" binding:"required"`
	Complete bool           `json:"complete"`
}

func (h *Handler) setAddress(c *gin.Context) {
	var req setAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.checkoutService.SetAddress(c.Request.Context(), c.Param("session"), req.Address, req.Complete)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type selectShippingRequest struct {
	OptionID    string `json:"option_id" binding:"required"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func (h *Handler) selectShipping(c *gin.Context) {
	var req selectShippingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.checkoutService.SelectShipping(c.Request.Context(), c.Param("session"), req.OptionID, req.PhoneNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) confirm(c *gin.Context) {
	result, err := h.checkoutService.Confirm(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) legacySession(c *gin.Context) {
	session, err := h.checkoutService.LegacySession(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// successArrival handles arrival at the success route. A recognized order
// marker clears the session's cart exactly once.
func (h *Handler) successArrival(c *gin.Context) {
	sessionID := c.Query("session")
	target := recovery.SuccessPath + "?" + c.Request.URL.RawQuery

	cleared, err := h.checkoutService.Watcher().Observe(c.Request.Context(), sessionID, target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"cleared": cleared,
	})
}

type savePathRequest struct {
	Path string `json:"path" binding:"required"`
}

func (h *Handler) savePath(c *gin.Context) {
	var req savePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.paths.SavePath(c.Request.Context(), c.Param("session"), req.Path); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) consumePath(c *gin.Context) {
	path, err := h.paths.ConsumePath(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// writeError maps an orchestration error to a status and user-visible
// message. Nothing on the cart or checkout path is allowed to escape
// unhandled.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsKind(err, apperr.KindValidation):
		status = http.StatusUnprocessableEntity
	case apperr.IsKind(err, apperr.KindProvider):
		status = http.StatusPaymentRequired
	case apperr.IsKind(err, apperr.KindConfiguration), apperr.IsKind(err, apperr.KindFormat):
		status = http.StatusServiceUnavailable
	case apperr.IsKind(err, apperr.KindAPI), apperr.IsKind(err, apperr.KindNetwork):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": apperr.UserMessage(err)})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
