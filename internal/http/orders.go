package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// Order handlers
type createOrderReq struct {
	Client domain.Client         `json:"client"`
	Items  []service.ItemRequest `json:"items"`
	Notes  string                `json:"notes"`
}

// @Summary Create order
// @Description Prices the items from the catalog and creates the order without a cart.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse "Stock shortfall"
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	lines, err := s.orders.PriceItems(ctx, req.Items)
	if err != nil {
		s.fail(c, err)
		return
	}
	o, err := s.orders.CreateOrder(ctx, service.CheckoutRequest{
		Client: req.Client, Lines: lines, Notes: req.Notes, UserID: userIDFrom(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary List orders
// @Tags orders
// @Produce json
// @Param status query string false "Status filter"
// @Param limit query int false "Max results"
// @Success 200 {array} domain.Order
// @Failure 400 {object} errorResponse
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	f := repository.OrderFilter{Status: domain.OrderStatus(c.Query("status"))}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		f.Limit = n
	}
	list, err := s.orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	o, err := s.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

// @Summary Change order status
// @Description Moves one step forward or to CANCELADO. Entering CONFIRMADO deducts stock once.
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body statusReq true "New status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse "Invalid transition or insufficient stock"
// @Router /orders/{id}/status [patch]
func (s *Server) changeStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	o, err := s.orders.Transition(c.Request.Context(), id, req.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Order statistics
// @Tags orders
// @Produce json
// @Success 200 {object} domain.OrderStats
// @Router /stats/orders [get]
func (s *Server) orderStats(c *gin.Context) {
	st, err := s.orders.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
