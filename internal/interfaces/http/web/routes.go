package web

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts every UI page behind the admin gate. The gate
// middleware is passed in so the server wiring owns the auth policy.
func RegisterRoutes(server *echo.Echo, handler *PageHandler, adminGate echo.MiddlewareFunc) {
	pages := server.Group("", adminGate)

	pages.GET("/", handler.Landing)
	pages.GET("/about", handler.About)
	pages.GET("/create_task", handler.CreateTaskForm)
	pages.POST("/create_task", handler.CreateTaskSubmit)
	pages.GET("/history", handler.History)
	pages.GET("/task/:id", handler.TaskDetail)
	pages.GET("/task/:id/users", handler.TaskUsers)
	pages.GET("/task/:id/report", handler.TaskReport)
	pages.GET("/task/:id/errors", handler.TaskErrors)
	pages.GET("/task/:id/debug", handler.TaskDebug)
	pages.POST("/task/:id/abort", handler.AbortTask)
}
