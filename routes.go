package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/cache"
	"b2bmarket/internal/config"
	"b2bmarket/internal/handlers"
	"b2bmarket/internal/metrics"
	"b2bmarket/internal/middleware"
	"b2bmarket/internal/models"
	"b2bmarket/internal/sourcing"
)

type routeDeps struct {
	cfg  config.Config
	db   *mongo.Database
	svc  *sourcing.Service
	tree cache.CategoryTree
	gst  handlers.TaxpayerLookup
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func newRouter(d routeDeps) *gin.Engine {
	if d.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(),
		cors.New(corsConfig(d.cfg.CORSOrigins)),
	)

	secret := d.cfg.JWTSecret
	tokens := handlers.TokenConfig{
		Secret:     secret,
		AccessTTL:  d.cfg.AccessTokenTTL,
		RefreshTTL: d.cfg.RefreshTokenTTL,
	}
	db, svc, tree := d.db, d.svc, d.tree

	userAuth := middleware.UserAuth(secret)
	adminAuth := middleware.AdminAuth(secret)

	r.GET("/", handlers.Home())
	r.GET("/healthz", handlers.Healthz(db))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/sitemap.xml", handlers.Sitemap(db, d.cfg.PublicBaseURL))
	r.Static("/uploads", d.cfg.UploadDir)

	api := r.Group("/api/v1")

	// catalog
	api.GET("/categories/all", handlers.GetCategoryTree(db, tree))
	api.GET("/categories/:slug", handlers.GetCategoryBySlug(db))
	api.GET("/products", handlers.GetProducts(db))
	api.GET("/products/:slug", handlers.GetProductBySlug(db))

	// accounts
	api.POST("/auth/register", handlers.Register(db, tokens))
	api.POST("/auth/login", handlers.Login(db, tokens))
	api.POST("/auth/refresh", handlers.Refresh(db, tokens))
	api.POST("/auth/logout", handlers.Logout(db))
	api.GET("/auth/me", userAuth, handlers.GetMe(db))
	api.PUT("/profile", userAuth, handlers.UpdateProfile(db))
	api.POST("/admin/login", handlers.AdminLogin(db, tokens))
	api.GET("/gst/:gstin", handlers.LookupGST(d.gst))

	user := api.Group("/user", userAuth)
	{
		user.GET("/addresses", handlers.GetUserAddresses(db))
		user.POST("/addresses", handlers.CreateUserAddress(db))
		user.PUT("/addresses/:id", handlers.UpdateUserAddress(db))
		user.DELETE("/addresses/:id", handlers.DeleteUserAddress(db))
	}

	api.GET("/dashboard/buyer", middleware.AuthGuard(secret, models.RoleBuyer), handlers.BuyerDashboard(db))
	api.GET("/dashboard/seller", middleware.AuthGuard(secret, models.RoleSeller), handlers.SellerDashboard(db))

	// requirements
	api.POST("/requirements", middleware.RateLimit(d.cfg.RequirementRatePerMinute), handlers.CreateRequirement(svc))
	api.GET("/requirements/:reqId", userAuth, handlers.GetRequirement(svc))
	api.GET("/requirementsByEmail", handlers.RequirementsByEmail(db))
	api.POST("/requirementsByEmail", handlers.RequirementsByEmail(db))

	// quotations and quotas
	api.POST("/quotations", adminAuth, handlers.CreateQuotation(svc))
	api.GET("/quotations/:requirementId", userAuth, handlers.GetQuotation(svc))

	seller := api.Group("/seller", middleware.AuthGuard(secret, models.RoleSeller))
	{
		seller.GET("/quotations", handlers.SellerQuotations(db))
		seller.PUT("/quotations/:requirementId", handlers.SubmitSellerQuote(svc))
	}

	api.POST("/quotaRequirement", adminAuth, handlers.CreateQuota(svc))
	api.GET("/quotaRequirement", userAuth, handlers.ListQuotas(db))
	api.GET("/quotaRequirement/:id", userAuth, handlers.GetQuota(svc))
	api.POST("/quotaRequirement/:id/accept", middleware.AuthGuard(secret, models.RoleBuyer, models.RoleAdmin), handlers.AcceptQuota(svc))

	// negotiations
	api.POST("/negotiation", userAuth, handlers.CreateNegotiation(svc))
	api.GET("/negotiation/:negId", userAuth, handlers.GetNegotiation(svc))
	api.POST("/negotiation/:negId/transition", userAuth, handlers.TransitionNegotiation(svc))
	api.GET("/negotiations", userAuth, handlers.ListNegotiations(db))
	api.GET("/updateNegotiationStatus/:id/:commission", adminAuth, handlers.UpdateNegotiationStatus(svc))
	api.GET("/updateNegotiation/:id/:commission", adminAuth, handlers.UpdateNegotiation(svc))

	admin := api.Group("/admin", adminAuth)
	{
		admin.GET("/categories", handlers.GetAllCategories(db))
		admin.POST("/categories", handlers.CreateCategory(db, tree))
		admin.PUT("/categories/:id", handlers.UpdateCategory(db, tree))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(db, tree))
		admin.POST("/categories/:id/subcategories", handlers.CreateSubcategory(db, tree))
		admin.PUT("/subcategories/:id", handlers.UpdateSubcategory(db, tree))
		admin.DELETE("/subcategories/:id", handlers.DeleteSubcategory(db, tree))

		admin.GET("/products", handlers.GetAllProducts(db))
		admin.POST("/products", handlers.CreateProduct(db, tree, d.cfg.UploadDir))
		admin.PUT("/products/:id", handlers.UpdateProduct(db, tree, d.cfg.UploadDir))
		admin.DELETE("/products/:id", handlers.DeleteProduct(db, tree))

		admin.GET("/requirements", handlers.AdminListRequirements(db))
		admin.GET("/requirements/export", handlers.ExportRequirements(db))
		admin.PATCH("/requirements/:reqId/status", handlers.UpdateRequirementStatus(svc))
		admin.DELETE("/requirements/:reqId", handlers.DeleteRequirement(db))
	}

	payments := r.Group("/api/payments", userAuth)
	{
		payments.POST("/savePayment", handlers.SavePayment(db, svc))
		payments.GET("", handlers.ListPayments(db))
		payments.GET("/:paymentId", handlers.GetPayment(svc))
		payments.GET("/:paymentId/invoice", handlers.PaymentInvoice(svc, d.cfg.PublicBaseURL))
	}

	return r
}
