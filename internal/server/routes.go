package server

import (
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/handlers"
)

type routes struct {
	auth          *handlers.AuthHandler
	profile       *handlers.ProfileHandler
	plans         *handlers.PlanHandler
	shopping      *handlers.ShoppingHandler
	stats         *handlers.StatsHandler
	notifications *handlers.NotificationHandler
	admin         *handlers.AdminHandler
	ready         echo.HandlerFunc

	authMiddleware   echo.MiddlewareFunc
	streamMiddleware echo.MiddlewareFunc
	adminMiddleware  echo.MiddlewareFunc
	authRateLimiter  echo.MiddlewareFunc
	aiRateLimiter    echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, r routes) {
	e.GET("/health", handlers.Health)
	e.GET("/health/ready", r.ready)

	api := e.Group("/api/v1")
	authGroup := api.Group("/auth", r.authRateLimiter)

	authGroup.POST("/register", r.auth.Register)
	authGroup.POST("/login", r.auth.Login)
	authGroup.POST("/refresh", r.auth.Refresh)
	authGroup.POST("/logout", r.auth.Logout)
	authGroup.POST("/logout-all", r.auth.LogoutAll, r.authMiddleware)
	authGroup.GET("/me", r.auth.Me, r.authMiddleware)

	profile := api.Group("/profile", r.authMiddleware)
	profile.GET("", r.profile.Get)
	profile.PUT("", r.profile.Update)

	plans := api.Group("/plans", r.authMiddleware)
	plans.POST("/generate", r.plans.Generate, r.aiRateLimiter)
	plans.GET("/generation-status", r.plans.GenerationStatus)
	plans.GET("", r.plans.List)
	plans.GET("/current", r.plans.Current)
	plans.GET("/:id", r.plans.Get)
	plans.POST("/:id/approve", r.plans.Approve)
	plans.POST("/:id/reject", r.plans.Reject)
	plans.GET("/:id/export/json", r.plans.ExportJSON)
	plans.GET("/:id/export/csv", r.plans.ExportCSV)
	plans.GET("/:id/shopping-list", r.shopping.Get)
	plans.PATCH("/:id/shopping-list/items/:index/toggle", r.shopping.Toggle)
	plans.GET("/:id/shopping-list/export/csv", r.shopping.ExportCSV)
	plans.POST("/:id/shopping-list/export", r.shopping.Export)

	stats := api.Group("/stats", r.authMiddleware)
	stats.GET("/overview", r.stats.Overview)
	stats.GET("/shopping-categories", r.stats.ShoppingCategories)
	stats.GET("/monthly-comparison", r.stats.MonthlyComparison)

	notifications := api.Group("/notifications", r.streamMiddleware)
	notifications.GET("/stream", r.notifications.Stream)

	admin := api.Group("/admin", r.authMiddleware, r.adminMiddleware)
	admin.GET("/users", r.admin.ListUsers)
	admin.GET("/ai-requests", r.admin.ListAIRequests)
	admin.GET("/usage", r.admin.Usage)
	admin.POST("/backfill", r.admin.Backfill)
}
