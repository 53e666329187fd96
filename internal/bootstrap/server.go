package bootstrap

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	app "github.com/gappsops/message-recall/internal/application/recall"
	"github.com/gappsops/message-recall/internal/config"
	"github.com/gappsops/message-recall/internal/infrastructure/repository"
	"github.com/gappsops/message-recall/internal/interfaces/http/web"
)

// NewHTTPServer assembles the admin UI on top of the store and the
// authorizer. The recall worker is wired separately in main.
func NewHTTPServer(cfg config.Config, db *gorm.DB, auth app.Authorizer) (*echo.Echo, error) {
	server := echo.New()
	server.HideBanner = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XFrameOptions:      "DENY",
		ContentTypeNosniff: "nosniff",
	}))
	server.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup: "form:csrf_token",
	}))

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	server.Renderer = renderer
	server.HTTPErrorHandler = web.NewHTTPErrorHandler()

	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewTaskUserRepository(db)
	errorRepo := repository.NewErrorReasonRepository(db)
	counterRepo := repository.NewCounterRepository(db)

	handler := web.NewPageHandler(
		cfg.AppsDomain,
		app.NewCreateTask(taskRepo),
		app.NewGetTaskDetail(taskRepo, errorRepo),
		app.NewListTasks(taskRepo),
		app.NewListTaskUsers(taskRepo, userRepo),
		app.NewListTaskErrors(taskRepo, errorRepo),
		app.NewTaskReport(taskRepo, userRepo),
		app.NewTaskDebug(taskRepo, counterRepo),
		app.NewAbortTask(taskRepo, errorRepo),
	)
	web.RegisterRoutes(server, handler, web.RequireAdmin(cfg.AuthHeader, auth))

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server, nil
}
