package main

import (
	"database/sql"
	"net/http"
	"time"

	"citizen-engagement/internal/httpapi"
	"citizen-engagement/internal/rbac"
	"citizen-engagement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeDeps struct {
	handlers  httpapi.Handlers
	authMW    gin.HandlerFunc
	db        *sql.DB
	devTokens bool
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.devTokens {
		r.POST("/dev/token", d.handlers.DevToken)
	}

	// protected API group
	api := r.Group("/api")
	api.Use(d.authMW)
	api.Use(rbac.RequireAnyRole(rbac.RoleCitizen, rbac.RoleStaff))
	{
		issue := api.Group("/issues/:id", d.handlers.ResolveIssue())
		issue.GET("", d.handlers.GetIssue)
		issue.POST("/actions", d.handlers.PostAction)
	}
}
