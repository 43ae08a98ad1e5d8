package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dencamenew/vsuet-attendance/internal/app"
	"github.com/dencamenew/vsuet-attendance/internal/attendance"
	"github.com/dencamenew/vsuet-attendance/internal/display"
	"github.com/dencamenew/vsuet-attendance/internal/handlers"
	"github.com/dencamenew/vsuet-attendance/internal/middleware"
)

// Deps carries the wired components the router exposes over HTTP.
type Deps struct {
	Config  *app.Config
	Redis   *redis.Client
	DB      *gorm.DB
	Service *attendance.Service
	Gateway *display.Gateway
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("attendance service must be provided")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("display gateway must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.Redis, deps.DB))

	if deps.Config.Monitoring.Prometheus.Enabled {
		r.GET(deps.Config.Monitoring.Prometheus.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	attendanceHandler := handlers.NewAttendanceHandler(deps.Service)
	displayHandler := handlers.NewDisplayHandler(deps.Gateway)

	qr := r.Group("/api/qr")
	qr.Use(middleware.Identity())
	{
		qr.POST("/sessions", middleware.RequireRole(middleware.RoleTeacher), attendanceHandler.Open)
		qr.POST("/sessions/:id/close", middleware.RequireRole(middleware.RoleTeacher), attendanceHandler.Close)
		qr.GET("/sessions/:id/students", middleware.RequireRole(middleware.RoleTeacher), attendanceHandler.ListCheckedIn)
		qr.POST("/scan", attendanceHandler.Scan)
	}

	// Identity is checked once at connect; the socket itself only pushes the
	// current token out.
	r.GET("/ws/qr/sessions/:id", middleware.Identity(), displayHandler.Connect)

	return r, nil
}
