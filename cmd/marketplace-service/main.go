package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/MikeMC777/mercado-mp/internal/cart"
	"github.com/MikeMC777/mercado-mp/internal/catalog"
	"github.com/MikeMC777/mercado-mp/internal/config"
	"github.com/MikeMC777/mercado-mp/internal/fieldcrypt"
	"github.com/MikeMC777/mercado-mp/internal/httpx"
	"github.com/MikeMC777/mercado-mp/internal/metrics"
	"github.com/MikeMC777/mercado-mp/internal/order"
)

// @title mercado-mp marketplace service
// @version 1.0
// @description Cart, checkout and order lifecycle for the marketplace.
func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Fatalf("postgres ping: %v", err)
	}

	codec, err := fieldcrypt.FromKey(cfg.FieldKeyHex)
	if err != nil {
		log.Fatalf("field codec: %v", err)
	}

	m := metrics.New()
	items := catalog.NewPGRepo(db)
	cartSvc := cart.NewService(cart.NewPGRepo(db), items)

	var ext *order.Ext
	if cfg.CatalogSvcBaseURL != "" {
		ext = order.NewExt(cfg.CatalogSvcBaseURL)
	}
	orderSvc := order.NewService(order.NewPGRepo(db, codec), ext, m,
		cfg.DefaultCommissionRate, cfg.DefaultPlatformFee)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.Metrics(m))

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/items/:id", getItemHandler(items))

	auth := r.Group("/", httpx.AuthRequired([]byte(cfg.JWTSecret)))
	auth.GET("/cart", listCartHandler(cartSvc))
	auth.POST("/cart", addToCartHandler(cartSvc))
	auth.PUT("/cart/:itemID", updateCartItemHandler(cartSvc))
	auth.DELETE("/cart/:itemID", removeFromCartHandler(cartSvc))
	auth.DELETE("/cart", clearCartHandler(cartSvc))
	auth.GET("/cart/validate", validateCartHandler(cartSvc))
	auth.POST("/cart/cleanup", cleanupCartHandler(cartSvc))

	auth.POST("/orders", createOrderHandler(orderSvc))
	auth.GET("/orders", listOrdersHandler(orderSvc))
	auth.GET("/orders/:id", getOrderHandler(orderSvc))
	auth.POST("/orders/:id/cancel", cancelOrderHandler(orderSvc))
	auth.PUT("/orders/:id/status", updateOrderStatusHandler(orderSvc))

	log.Printf("marketplace-service listening on %s", cfg.MarketSvcAddr)
	log.Fatal(r.Run(cfg.MarketSvcAddr))
}
