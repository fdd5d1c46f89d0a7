package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conpanion/conpanion/internal/app"
	iauth "github.com/conpanion/conpanion/internal/auth"
	"github.com/conpanion/conpanion/internal/handlers"
	"github.com/conpanion/conpanion/internal/middleware"
	"github.com/conpanion/conpanion/internal/services"
)

// RouterDeps bundles everything NewRouter needs to wire the auth flows.
type RouterDeps struct {
	Config       *app.Config
	Users        *services.UserService
	VerifyTokens *services.TokenService
	ResetTokens  *services.TokenService
	Mailer       *services.AuthMailer
	Sessions     *iauth.SessionService
	Remember     *iauth.RememberService
}

// NewRouter builds the Gin engine, wires middleware and registers the routes.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user service must be provided")
	}
	if deps.VerifyTokens == nil || deps.ResetTokens == nil {
		return nil, fmt.Errorf("token services must be provided")
	}
	if deps.Sessions == nil || deps.Remember == nil {
		return nil, fmt.Errorf("session services must be provided")
	}

	cookies := iauth.CookieOptions{
		Domain: deps.Config.Server.Cookie.Domain,
		Secure: deps.Config.Server.Cookie.Secure,
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	if deps.Config.Server.CSRF.Enabled {
		r.Use(middleware.CSRF())
	}
	r.Use(middleware.Identity(deps.Sessions, deps.Remember, deps.Users, cookies))

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/healthz", handlers.Health())
	}
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(
		deps.Users,
		deps.VerifyTokens,
		deps.ResetTokens,
		deps.Mailer,
		deps.Sessions,
		deps.Remember,
		cookies,
	)

	registerAuthRoutes(r, authHandler)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
