package router

import (
	"github.com/gin-gonic/gin"

	"examsolver/internal/handler"
	"examsolver/internal/middleware"
	"examsolver/internal/service"
)

// Setup configures the Gin engine with all routes and middleware. A nil
// authSvc leaves the API unauthenticated.
func Setup(
	authSvc service.AuthService,
	allowedOrigins []string,
	runH *handler.RunHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	if authSvc != nil {
		v1.Use(middleware.AuthMiddleware(authSvc))
	}

	runs := v1.Group("/runs")
	runs.POST("", runH.Submit)
	runs.GET("", runH.List)
	runs.GET("/:id", runH.GetByID)
	runs.GET("/:id/export", runH.Export)
	runs.GET("/:id/report-url", runH.ReportURL)

	return r
}
