package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Product handlers
type productReq struct {
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price" swaggertype:"number"`
	Stock       int64           `json:"stock"`
	Active      *bool           `json:"active"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
}

func (r productReq) toDomain() domain.Product {
	p := domain.Product{Name: r.Name, SKU: r.SKU, Price: r.Price, Stock: r.Stock, Active: true,
		Category: r.Category, Subcategory: r.Subcategory}
	if r.Active != nil {
		p.Active = *r.Active
	}
	return p
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := s.products.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	p, err := s.products.GetByID(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Description Stock is not changed here; use the stock or variant endpoints.
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param input body productReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p := req.toDomain()
	p.ID = id
	updated, err := s.products.Update(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary Delete product
// @Tags products
// @Param id path string true "Product ID"
// @Success 204
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	if err := s.products.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param category query string false "Category"
// @Param active query bool false "Only active"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	f := repository.ProductFilter{
		NameSubstring: c.Query("q"),
		Category:      c.Query("category"),
		OnlyActive:    c.Query("active") == "true",
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = &x
		}
	}
	list, err := s.products.List(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type stockReq struct {
	Stock int64 `json:"stock"`
}

// @Summary Set product stock
// @Description Only for products without variants.
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param input body stockReq true "New stock"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id}/stock [put]
func (s *Server) setStock(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req stockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := s.products.SetStock(c.Request.Context(), id, req.Stock)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Stock movements of a product
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {array} domain.StockMovement
// @Failure 404 {object} errorResponse
// @Router /products/{id}/movements [get]
func (s *Server) listMovements(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	list, err := s.products.ListMovements(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type variantReq struct {
	Code     string           `json:"code"`
	Name     string           `json:"name"`
	Position int              `json:"position"`
	Stock    int64            `json:"stock"`
	Price    *decimal.Decimal `json:"price" swaggertype:"number"`
	Active   *bool            `json:"active"`
}

func (r variantReq) toDomain() domain.Variant {
	v := domain.Variant{Code: r.Code, Name: r.Name, Position: r.Position, Stock: r.Stock, Price: r.Price, Active: true}
	if r.Active != nil {
		v.Active = *r.Active
	}
	return v
}

// @Summary List variants of a product
// @Tags variants
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {array} domain.Variant
// @Failure 404 {object} errorResponse
// @Router /products/{id}/variants [get]
func (s *Server) listVariants(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	list, err := s.products.ListVariants(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create variant
// @Description The product stock becomes the sum of its active variants.
// @Tags variants
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param input body variantReq true "Variant"
// @Success 201 {object} domain.Variant
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id}/variants [post]
func (s *Server) createVariant(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req variantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	v := req.toDomain()
	v.ProductID = id
	created, err := s.products.CreateVariant(c.Request.Context(), v)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary Update variant
// @Tags variants
// @Accept json
// @Produce json
// @Param id path string true "Variant ID"
// @Param input body variantReq true "Variant"
// @Success 200 {object} domain.Variant
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /variants/{id} [put]
func (s *Server) updateVariant(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req variantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	v := req.toDomain()
	v.ID = id
	updated, err := s.products.UpdateVariant(c.Request.Context(), v)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
