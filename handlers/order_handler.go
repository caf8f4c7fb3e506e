package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ShopAPI/events"
	"ShopAPI/middleware"
	"ShopAPI/models"
	"ShopAPI/store"
)

type orderItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=10000"`
}

type createOrderRequest struct {
	OrderItems      []orderItemRequest     `json:"orderItems" binding:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required"`
}

// publishOrder 發送訂單事件，失敗只記錄不影響回應
func (h *Handler) publishOrder(c *gin.Context, eventType string, order *models.Order) {
	event := events.NewOrderEvent(eventType, order, h.now())
	if err := h.Events.PublishOrder(c.Request.Context(), event); err != nil {
		h.log(c).Warn().Err(err).Str("order_id", order.ID).Str("event", eventType).Msg("無法發送訂單事件")
	}
}

// canAccessOrder 只有訂單擁有者或admin可以查看
func canAccessOrder(c *gin.Context, order *models.Order) bool {
	return order.UserID == middleware.CurrentUserID(c) || middleware.IsAdmin(c)
}

// CreateOrderHandler 送出訂單並扣除庫存，價格一律以商品目前售價計算
// @Summary create an order
// @Tags orders
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param order body createOrderRequest true "order"
// @Success 201 {object} models.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders [post]
func (h *Handler) CreateOrderHandler(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order data", err)
		return
	}
	ctx := c.Request.Context()

	order := &models.Order{
		UserID:          middleware.CurrentUserID(c),
		Items:           make([]models.OrderItem, 0, len(req.OrderItems)),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
	productIDs := make([]string, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		product, err := h.Store.GetProduct(ctx, item.Product)
		if err != nil {
			respondStoreError(c, "Product not found", err)
			return
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
		productIDs = append(productIDs, product.ID)
	}
	models.PriceOrder(order)

	if err := h.Store.CreateOrder(ctx, order); err != nil {
		h.log(c).Warn().Err(err).Strs("product_ids", productIDs).Msg("建立訂單失敗")
		if errors.Is(err, store.ErrInsufficientStock) {
			respondError(c, http.StatusBadRequest, "Insufficient stock", err)
			return
		}
		respondStoreError(c, "Failed to create order", err)
		return
	}
	//庫存已變動
	h.invalidateProducts(c, productIDs...)
	h.publishOrder(c, events.OrderCreated, order)

	c.JSON(http.StatusCreated, order)
}

// GetMyOrdersHandler 查詢自己的訂單列表
// @Summary list own orders
// @Tags orders
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.Order
// @Router /orders/myorders [get]
func (h *Handler) GetMyOrdersHandler(c *gin.Context) {
	orders, err := h.Store.ListOrders(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderListHandler 查詢所有訂單
// @Summary list all orders
// @Tags orders
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.Order
// @Failure 403 {object} map[string]string
// @Router /orders [get]
func (h *Handler) GetOrderListHandler(c *gin.Context) {
	orders, err := h.Store.ListOrders(c.Request.Context(), "")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load orders", err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderHandler 查詢訂單詳細資訊，非擁有者視為不存在
// @Summary fetch an order
// @Tags orders
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "order id"
// @Success 200 {object} models.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (h *Handler) GetOrderHandler(c *gin.Context) {
	order, err := h.Store.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, "Order not found", err)
		return
	}
	if !canAccessOrder(c, order) {
		respondError(c, http.StatusNotFound, "Order not found", store.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context, status models.OrderStatus, eventType string) {
	ctx := c.Request.Context()
	id := c.Param("id")

	order, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		respondStoreError(c, "Order not found", err)
		return
	}
	if !canAccessOrder(c, order) {
		respondError(c, http.StatusNotFound, "Order not found", store.ErrNotFound)
		return
	}

	order, err = h.Store.UpdateOrderStatus(ctx, id, status, h.now())
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			respondError(c, http.StatusBadRequest, "Order cannot be marked as "+string(status), err)
			return
		}
		respondStoreError(c, "Failed to update order status", err)
		return
	}
	h.publishOrder(c, eventType, order)

	c.JSON(http.StatusOK, order)
}

// PayOrderHandler 將訂單標記為已付款
// @Summary mark an order as paid
// @Tags orders
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "order id"
// @Success 200 {object} models.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/pay [put]
func (h *Handler) PayOrderHandler(c *gin.Context) {
	h.updateOrderStatus(c, models.OrderStatusPaid, events.OrderPaid)
}

// DeliverOrderHandler 將已付款訂單標記為已送達
// @Summary mark an order as delivered
// @Tags orders
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "order id"
// @Success 200 {object} models.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/deliver [put]
func (h *Handler) DeliverOrderHandler(c *gin.Context) {
	h.updateOrderStatus(c, models.OrderStatusDelivered, events.OrderDelivered)
}
