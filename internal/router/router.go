package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/elective-seat-api/api/swagger"
	"github.com/noah-isme/elective-seat-api/internal/handler"
	"github.com/noah-isme/elective-seat-api/internal/middleware"
	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/service"
	"github.com/noah-isme/elective-seat-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/elective-seat-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/elective-seat-api/pkg/middleware/requestid"
)

// Options assembles everything the HTTP surface needs.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	CronSecret     string
	EnableDocs     bool

	Auth          *service.AuthService
	Metrics       *service.MetricsService
	Logger        *zap.Logger
	Courses       *handler.CourseHandler
	Registrations *handler.RegistrationHandler
	SeatStream    *handler.SeatStreamHandler
	Expiry        *handler.ExpiryHandler
	Observability *handler.MetricsHandler
}

// New builds the gin engine with every route registered.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", opts.Observability.Health)
	r.GET("/ready", opts.Observability.Ready)
	r.GET("/metrics", opts.Observability.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	internal := r.Group("/internal", middleware.CronSecret(opts.CronSecret))
	internal.POST("/waitlist/expire", opts.Expiry.Expire)

	api := r.Group(opts.APIPrefix)
	api.GET("/courses", opts.Courses.List)
	api.GET("/courses/stream", opts.SeatStream.Stream)
	api.GET("/courses/:id", opts.Courses.Get)
	api.POST("/offers/accept", opts.Registrations.AcceptWithToken)

	student := api.Group("", middleware.JWT(opts.Auth), middleware.RequireRoles(models.RoleStudent))
	student.POST("/courses/:id/register", opts.Registrations.Register)
	student.GET("/me/registrations", opts.Registrations.Mine)
	student.POST("/registrations/:id/drop", opts.Registrations.Drop)
	student.POST("/registrations/:id/accept", opts.Registrations.Accept)

	admin := api.Group("/admin", middleware.JWT(opts.Auth), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/courses", middleware.Audit(opts.Logger, "create", "course"), opts.Courses.Create)
	admin.PUT("/courses/:id", middleware.Audit(opts.Logger, "update", "course"), opts.Courses.Update)
	admin.DELETE("/courses/:id", middleware.Audit(opts.Logger, "delete", "course"), opts.Courses.Delete)
	admin.GET("/courses/:id/roster", opts.Courses.Roster)
	admin.GET("/metrics/summary", opts.Observability.Summary)

	return r
}
