package api

import (
	"net/http"
	"strconv"
	"time"

	"teenprint-core/internal/apperrors"
	"teenprint-core/internal/models"
	"teenprint-core/internal/service"
	"teenprint-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	couponService  *service.CouponService
	orderService   *service.OrderService
	paymentService *service.PaymentService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	couponService *service.CouponService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
) *Handler {
	return &Handler{
		cartService:    cartService,
		couponService:  couponService,
		orderService:   orderService,
		paymentService: paymentService,
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
		cart := v1.Group("/cart", requireUser())
		{
			cart.GET("", h.getCart)
			cart.POST("/add", h.addCartItem)
			cart.PUT("/item/:id", h.updateCartItem)
			cart.DELETE("/item/:id", h.removeCartItem)
			cart.POST("/coupon/apply", h.applyCoupon)
			cart.DELETE("/coupon", h.removeCoupon)
			cart.DELETE("/clear", h.clearCart)
		}

		orders := v1.Group("/orders", requireUser())
		{
			orders.POST("", h.createOrder)
			orders.GET("", h.listOrders)
			orders.GET("/:id", h.getOrder)
			orders.POST("/:id/verify-payment", h.verifyPayment)
			orders.POST("/:id/cancel", h.cancelOrder)
		}

		admin := v1.Group("/admin")
		{
			admin.PUT("/orders/:id/status", h.updateOrderStatus)
			admin.POST("/coupons", h.createCoupon)
			admin.GET("/coupons", h.listCoupons)
			admin.PATCH("/coupons/:code", h.setCouponActive)
		}
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

// requireUser extracts the caller-authenticated user identity. Auth
// itself lives upstream; the gateway forwards the id in a header.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || userID < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid X-User-ID header",
			})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64("userID")
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid " + name + " path parameter",
		})
		return 0, false
	}
	return id, true
}

// respondError maps the error taxonomy to HTTP statuses. Idempotency
// no-ops are reported as success.
func respondError(c *gin.Context, err error) {
	body := gin.H{
		"code":  apperrors.CodeOf(err),
		"error": err.Error(),
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case apperrors.KindBusiness:
		c.JSON(http.StatusUnprocessableEntity, body)
	case apperrors.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case apperrors.KindTransient:
		body["retryable"] = true
		c.JSON(http.StatusServiceUnavailable, body)
	case apperrors.KindNoop:
		c.JSON(http.StatusOK, gin.H{
			"code":   apperrors.CodeOf(err),
			"status": "already processed",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "Internal",
			"error": "internal server error",
		})
	}
}

func (h *Handler) getCart(c *gin.Context) {
	priced, err := h.cartService.GetCart(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	priced, err := h.cartService.AddItem(c.Request.Context(), userID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	priced, err := h.cartService.UpdateQuantity(c.Request.Context(), userID(c), itemID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	itemID, ok := pathID(c, "id")
	if !ok {
		return
	}

	priced, err := h.cartService.RemoveItem(c.Request.Context(), userID(c), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) applyCoupon(c *gin.Context) {
	var req service.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	priced, err := h.cartService.ApplyCoupon(c.Request.Context(), userID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) removeCoupon(c *gin.Context) {
	priced, err := h.cartService.RemoveCoupon(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, priced)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// createOrder snapshots the cart into an order. For online payment
// methods the gateway order is created in the same request so the
// client can open checkout immediately.
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	uid := userID(c)
	order, err := h.orderService.CreateOrder(c.Request.Context(), uid, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"order": order}
	if models.IsOnlinePayment(order.PaymentMethod) {
		payment, err := h.paymentService.InitiatePayment(c.Request.Context(), order.ID, uid)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["payment"] = payment
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	detail, err := h.orderService.GetOrder(c.Request.Context(), orderID, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) verifyPayment(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.paymentService.VerifyPayment(c.Request.Context(), orderID, userID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	// Scope the cancellation to the caller's own order.
	if _, err := h.orderService.GetOrder(c.Request.Context(), orderID, userID(c)); err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), orderID, "customer")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateStatusRequest is the admin status transition payload.
type UpdateStatusRequest struct {
	Status   string               `json:"status" binding:"required"`
	Tracking *models.TrackingInfo `json:"tracking,omitempty"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	var order *models.Order
	var err error
	if req.Status == models.OrderStatusCancelled {
		order, err = h.orderService.Cancel(c.Request.Context(), orderID, "admin")
	} else {
		order, err = h.orderService.AdvanceStatus(c.Request.Context(), orderID, req.Status, req.Tracking)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) createCoupon(c *gin.Context) {
	var coupon models.Coupon
	if err := c.ShouldBindJSON(&coupon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.couponService.Create(c.Request.Context(), &coupon); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *Handler) listCoupons(c *gin.Context) {
	coupons, err := h.couponService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons})
}

// SetCouponActiveRequest toggles a coupon's active flag.
type SetCouponActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *Handler) setCouponActive(c *gin.Context) {
	var req SetCouponActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	code := c.Param("code")
	if err := h.couponService.SetActive(c.Request.Context(), code, *req.IsActive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "is_active": *req.IsActive})
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
