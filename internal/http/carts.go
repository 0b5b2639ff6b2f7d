package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/service"
)

type cartView struct {
	Session       string          `json:"session"`
	Lines         []cart.Line     `json:"lines"`
	TotalQuantity int64           `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal" swaggertype:"number"`
	Synced        bool            `json:"synced"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{Session: c.Key(), Lines: c.Lines(), TotalQuantity: c.TotalQuantity(), Subtotal: c.Subtotal(), Synced: c.Synced()}
}

func sessionOf(c *gin.Context) (string, bool) {
	session := strings.TrimSpace(c.Param("session"))
	if session == "" || len(session) > 128 {
		badRequest(c, "invalid session")
		return "", false
	}
	return session, true
}

// optionalID parses an id that may be omitted.
func optionalID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

// respondCart writes the cart. An unsaved change still answers 200 with
// "synced": false; the next request retries the write.
func (s *Server) respondCart(c *gin.Context, status int, crt *cart.Cart, err error) {
	if err != nil && !errors.Is(err, cart.ErrNotSynced) {
		s.fail(c, err)
		return
	}
	c.JSON(status, viewOf(crt))
}

// @Summary Get cart
// @Tags carts
// @Produce json
// @Param session path string true "Session key"
// @Success 200 {object} cartView
// @Router /carts/{session} [get]
func (s *Server) getCart(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(s.carts.Get(c.Request.Context(), session)))
}

type cartItemReq struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

// @Summary Add item to cart
// @Description Adding an existing (product, variant) pair increments its quantity at the stored price.
// @Tags carts
// @Accept json
// @Produce json
// @Param session path string true "Session key"
// @Param input body cartItemReq true "Item"
// @Success 200 {object} cartView
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /carts/{session}/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	var req cartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	productID, err := parseID(req.ProductID)
	if err != nil {
		badRequest(c, "invalid product id")
		return
	}
	variantID, err := optionalID(req.VariantID)
	if err != nil {
		badRequest(c, "invalid variant id")
		return
	}
	ctx := c.Request.Context()
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !p.Active {
		s.fail(c, errors.Wrap(domain.ErrInvalidInput, "product is not available"))
		return
	}
	var variant *domain.Variant
	if variantID != uuid.Nil {
		variants, err := s.products.ListVariants(ctx, productID)
		if err != nil {
			s.fail(c, err)
			return
		}
		for i := range variants {
			if variants[i].ID == variantID && variants[i].Active {
				variant = &variants[i]
			}
		}
		if variant == nil {
			s.fail(c, errors.Wrap(domain.ErrNotFound, "variant"))
			return
		}
	}

	crt, err := s.carts.Update(ctx, session, func(crt *cart.Cart) error {
		return crt.AddItem(ctx, *p, req.Quantity, variant, nil)
	})
	s.respondCart(c, http.StatusOK, crt, err)
}

type cartQuantityReq struct {
	VariantID string `json:"variant_id"`
	Quantity  int64  `json:"quantity"`
}

// @Summary Set cart line quantity
// @Description A quantity of zero or less removes the line.
// @Tags carts
// @Accept json
// @Produce json
// @Param session path string true "Session key"
// @Param productId path string true "Product ID"
// @Param input body cartQuantityReq true "Quantity"
// @Success 200 {object} cartView
// @Failure 400 {object} errorResponse
// @Router /carts/{session}/items/{productId} [put]
func (s *Server) updateCartItem(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	productID, err := parseID(c.Param("productId"))
	if err != nil {
		badRequest(c, "invalid product id")
		return
	}
	var req cartQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	variantID, err := optionalID(req.VariantID)
	if err != nil {
		badRequest(c, "invalid variant id")
		return
	}
	ctx := c.Request.Context()
	crt, err := s.carts.Update(ctx, session, func(crt *cart.Cart) error {
		return crt.UpdateQuantity(ctx, productID, variantID, req.Quantity)
	})
	s.respondCart(c, http.StatusOK, crt, err)
}

// @Summary Remove cart line
// @Tags carts
// @Produce json
// @Param session path string true "Session key"
// @Param productId path string true "Product ID"
// @Param variant_id query string false "Variant ID"
// @Success 200 {object} cartView
// @Failure 400 {object} errorResponse
// @Router /carts/{session}/items/{productId} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	productID, err := parseID(c.Param("productId"))
	if err != nil {
		badRequest(c, "invalid product id")
		return
	}
	variantID, err := optionalID(c.Query("variant_id"))
	if err != nil {
		badRequest(c, "invalid variant id")
		return
	}
	ctx := c.Request.Context()
	crt, err := s.carts.Update(ctx, session, func(crt *cart.Cart) error {
		return crt.RemoveItem(ctx, productID, variantID)
	})
	s.respondCart(c, http.StatusOK, crt, err)
}

// @Summary Empty cart
// @Tags carts
// @Produce json
// @Param session path string true "Session key"
// @Success 200 {object} cartView
// @Router /carts/{session} [delete]
func (s *Server) clearCart(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	crt, err := s.carts.Update(ctx, session, func(crt *cart.Cart) error { return crt.Clear(ctx) })
	s.respondCart(c, http.StatusOK, crt, err)
}

type checkoutReq struct {
	Client domain.Client `json:"client"`
	Notes  string        `json:"notes"`
}

// @Summary Checkout cart
// @Description Creates an order in PENDIENTE_CONTACTO from the cart lines and empties the cart.
// @Tags carts
// @Accept json
// @Produce json
// @Param session path string true "Session key"
// @Param input body checkoutReq true "Client contact"
// @Success 201 {object} domain.Order
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse "Stock shortfall"
// @Failure 503 {object} errorResponse
// @Router /carts/{session}/checkout [post]
func (s *Server) checkout(c *gin.Context) {
	session, ok := sessionOf(c)
	if !ok {
		return
	}
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	var order *domain.Order
	_, err := s.carts.Update(ctx, session, func(crt *cart.Cart) error {
		var err error
		order, err = s.orders.Checkout(ctx, crt, service.CheckoutRequest{
			Client: req.Client, Notes: req.Notes, UserID: userIDFrom(c),
		})
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
