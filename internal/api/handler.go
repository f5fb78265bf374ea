package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports connectivity of a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	products *service.ProductService
	carts    *service.CartService
	orders   *service.OrderService
	auth     *service.AuthService

	db    Pinger
	redis Pinger

	uploadDir      string
	uploadBasePath string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	products *service.ProductService,
	carts *service.CartService,
	orders *service.OrderService,
	auth *service.AuthService,
	db Pinger,
	redis Pinger,
	uploadDir, uploadBasePath string,
) *Handler {
	return &Handler{
		products:       products,
		carts:          carts,
		orders:         orders,
		auth:           auth,
		db:             db,
		redis:          redis,
		uploadDir:      uploadDir,
		uploadBasePath: uploadBasePath,
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

	router.Static(h.uploadBasePath, h.uploadDir)

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products", h.requireAuth(), h.requireCapability(models.CapabilityManageCatalog), h.createProduct)
		api.PUT("/products/:id", h.requireAuth(), h.requireCapability(models.CapabilityManageCatalog), h.updateProduct)
		api.DELETE("/products/:id", h.requireAuth(), h.requireCapability(models.CapabilityManageCatalog), h.deleteProduct)

		api.GET("/cart/:sessionId", h.getCart)
		api.POST("/cart/:sessionId/items", h.addCartItem)
		api.PUT("/cart/:sessionId/items/:itemId", h.updateCartItem)
		api.DELETE("/cart/:sessionId/items/:itemId", h.removeCartItem)
		api.DELETE("/cart/:sessionId", h.clearCart)

		api.POST("/orders", h.checkout)
		api.GET("/orders", h.listOrders)
		api.GET("/orders/:id", h.getOrder)
		api.GET("/orders/customer/:email", h.getOrdersByEmail)
		api.PUT("/orders/:id/status", h.setOrderStatus)
	}
}

// healthCheck reports liveness plus datastore connectivity state
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbState := "connected"
	if err := h.db.Ping(ctx); err != nil {
		dbState = "disconnected"
	}
	redisState := "connected"
	if err := h.redis.Ping(ctx); err != nil {
		redisState = "disconnected"
	}

	status := "healthy"
	if dbState != "connected" {
		status = "unhealthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"postgres":  gin.H{"state": dbState},
		"redis":     gin.H{"state": redisState},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// readinessCheck fails while the primary datastore is unreachable
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// respondError maps the business error taxonomy onto HTTP status codes.
// Every error body carries a human-readable message field.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrEmailTaken):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrCheckoutBusy):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{"message": err.Error()})
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + param})
		return 0, false
	}
	return id, true
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
