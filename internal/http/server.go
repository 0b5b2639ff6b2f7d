package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront/internal/cart"
	"storefront/internal/service"
)

type Server struct {
	engine   *gin.Engine
	products *service.ProductService
	orders   *service.OrderService
	carts    *cart.Registry
	log      log.FieldLogger
}

type Option func(*options)

type options struct {
	jwtSecret []byte
}

// WithJWTSecret enables bearer tokens; their "sub" becomes the order's user id.
func WithJWTSecret(secret string) Option {
	return func(o *options) {
		if secret != "" {
			o.jwtSecret = []byte(secret)
		}
	}
}

func NewServer(products *service.ProductService, orders *service.OrderService, carts *cart.Registry, logger log.FieldLogger, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	r := gin.New()
	r.Use(accessLog(logger), gin.Recovery(), identity(o.jwtSecret))
	s := &Server{engine: r, products: products, orders: orders, carts: carts, log: logger}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.POST("", s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)
		products.GET("", s.listProducts)
		products.PUT(":id/stock", s.setStock)
		products.GET(":id/movements", s.listMovements)
		products.GET(":id/variants", s.listVariants)
		products.POST(":id/variants", s.createVariant)

		v1.PUT("/variants/:id", s.updateVariant)

		carts := v1.Group("/carts/:session")
		carts.GET("", s.getCart)
		carts.POST("/items", s.addCartItem)
		carts.PUT("/items/:productId", s.updateCartItem)
		carts.DELETE("/items/:productId", s.removeCartItem)
		carts.DELETE("", s.clearCart)
		carts.POST("/checkout", s.checkout)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.PATCH(":id/status", s.changeStatus)

		v1.GET("/stats/orders", s.orderStats)
	}
}

func parseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
