// Package router mounts the back office API on a gin engine.
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bijouterie-backoffice/config"
	"bijouterie-backoffice/handlers"
	"bijouterie-backoffice/middleware"
	"bijouterie-backoffice/repository"
)

type Deps struct {
	Server     config.ServerConfig
	Log        *zap.Logger
	Tokens     *middleware.Issuer
	Identities repository.IdentityStore

	Auth               *handlers.AuthHandler
	Users              *handlers.UserHandler
	Articles           *handlers.ArticleHandler
	Sales              *handlers.SaleHandler
	Stock              *handlers.StockHandler
	Purchases          *handlers.PurchaseHandler
	Suppliers          *handlers.SupplierHandler
	Catalogs           *handlers.CatalogResource
	Categories         *handlers.CategoryResource
	Colors             *handlers.ColorResource
	Clients            *handlers.ClientResource
	Technicians        *handlers.TechnicianResource
	Roles              *handlers.RoleResource
	Permissions        *handlers.PermissionResource
	Ensembles          *handlers.EnsembleResource
	EnsembleCategories *handlers.EnsembleCategoryResource
	Repairs            *handlers.RepairResource
}

func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		_ = c.Error(fmt.Errorf("panic: %v", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.Static("/uploads", d.Server.UploadDir)

	api := r.Group(d.Server.BasePath)

	auth := api.Group("/auth")
	auth.POST("/login", d.Auth.Login)
	auth.POST("/logout", d.Auth.Logout)

	private := api.Group("")
	private.Use(middleware.Auth(d.Tokens, d.Identities))

	private.GET("/auth/me", d.Auth.Me)
	private.POST("/auth/register", can("users", "create"), d.Auth.Register)

	users := private.Group("/users")
	users.GET("", d.Users.List)
	users.GET("/:id", d.Users.Get)
	users.POST("", can("users", "create"), d.Auth.Register)
	users.PUT("/:id", can("users", "update"), d.Users.Update)
	users.PUT("/status/:id", can("users", "update"), d.Users.ToggleStatus)
	users.DELETE("/:id", can("users", "delete"), d.Users.Delete)

	mount(private, "articles", d.Articles, withStatus|withImage)
	mount(private, "catalogs", d.Catalogs, withStatus|withImage)
	mount(private, "categories", d.Categories, 0)
	mount(private, "colors", d.Colors, 0)
	mount(private, "clients", d.Clients, withStatus)
	mount(private, "suppliers", d.Suppliers, withStatus)
	mount(private, "technicians", d.Technicians, withStatus)
	mount(private, "roles", d.Roles, 0)
	mount(private, "permissions", d.Permissions, 0)
	mount(private, "ensembles", d.Ensembles, withStatus|withImage)
	mount(private, "ensembleCategories", d.EnsembleCategories, withStatus)
	mount(private, "repairs", d.Repairs, 0)

	purchases := private.Group("/purchases")
	purchases.GET("", d.Purchases.List)
	purchases.GET("/:id", d.Purchases.Get)
	purchases.POST("", can("purchases", "create"), d.Purchases.Restock)

	stock := private.Group("/stock")
	stock.GET("", d.Stock.List)
	stock.GET("/:id", d.Stock.Get)
	stock.PUT("/:id", can("stock", "update"), d.Stock.Set)

	sales := private.Group("/sales")
	sales.GET("", d.Sales.List)
	sales.GET("/summary", d.Sales.Summary)
	sales.GET("/:id", d.Sales.Get)
	sales.POST("", can("sales", "create"), d.Sales.Create)
	sales.POST("/verifyQte", d.Sales.VerifyQuantities)
	sales.PUT("/:id", can("sales", "update"), d.Sales.Update)
	sales.PUT("/status/:id", can("sales", "update"), d.Sales.SetStatus)
	sales.DELETE("/:id", can("sales", "delete"), d.Sales.Delete)
	sales.PUT("/payments/:id", can("sales", "update"), d.Sales.AddPayment)
	sales.PUT("/payments/:id/:paymentId", can("sales", "update"), d.Sales.EditPayment)
	sales.DELETE("/payments/:id/:paymentId", can("sales", "update"), d.Sales.DeletePayment)

	return r
}

type crud interface {
	List(*gin.Context)
	Get(*gin.Context)
	Create(*gin.Context)
	Update(*gin.Context)
	Delete(*gin.Context)
}

type statusToggler interface {
	ToggleStatus(*gin.Context)
}

type imageUploader interface {
	UploadImage(*gin.Context)
}

type extras int

const (
	withStatus extras = 1 << iota
	withImage
)

// mount registers the CRUD routes of one resource. Reads need a session,
// writes need the matching name:action permission.
func mount(g *gin.RouterGroup, name string, h crud, x extras) {
	rg := g.Group("/" + name)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", can(name, "create"), h.Create)
	rg.PUT("/:id", can(name, "update"), h.Update)
	rg.DELETE("/:id", can(name, "delete"), h.Delete)

	if t, ok := h.(statusToggler); ok && x&withStatus != 0 {
		rg.PUT("/status/:id", can(name, "update"), t.ToggleStatus)
	}
	if u, ok := h.(imageUploader); ok && x&withImage != 0 {
		rg.PUT("/:id/image", can(name, "update"), u.UploadImage)
	}
}

func can(resource, action string) gin.HandlerFunc {
	return middleware.RequirePermission(resource + ":" + action)
}
