package server

import (
	"github.com/abduss/accounts/internal/auth"
	"github.com/abduss/accounts/internal/config"
	"github.com/abduss/accounts/internal/logger"
	"github.com/abduss/accounts/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Dependencies groups the services required by the HTTP router. DB and
// ObjectStore are optional; readiness skips the ones left nil.
type Dependencies struct {
	Config        config.Config
	DB            Pinger
	ObjectStore   BucketChecker
	AuthService   *auth.Service
	Authenticator *auth.Authenticator
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		authenticator := deps.Authenticator
		if authenticator == nil {
			authenticator = deps.AuthService.Authenticator()
		}
		auth.RegisterRoutes(api, deps.AuthService, authenticator, auth.RouteOptions{
			UploadDir:     deps.Config.Server.UploadDir,
			SecureCookies: deps.Config.Server.SecureCookies,
		})
	}

	return router
}
