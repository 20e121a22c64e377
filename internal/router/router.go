package router // package router wires HTTP routes to their handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/robertos-pos/bc-bridge/internal/handler"
	"github.com/robertos-pos/bc-bridge/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth   *handler.AuthHandler
	Pos    *handler.PosHandler
	ERP    *handler.ERPHandler
	Health *handler.HealthHandler
	WS     *handler.WSHandler
}

// Register mounts all routes and the ambient middleware: request
// logging, panic recovery (no handler fault may kill the process),
// and CORS with credentials for the hosted terminals.
func Register(e *echo.Echo, h Handlers, jwtSecret string, allowedOrigins []string) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// Session endpoints. Me and Logout verify tokens themselves so
	// their responses keep the historical anonymous shape.
	e.POST("/auth/login", h.Auth.Login)
	e.GET("/auth/me", h.Auth.Me)
	e.POST("/auth/logout", h.Auth.Logout)

	// POS state API; every route requires a valid session.
	pos := e.Group("/pos")
	pos.Use(middleware.SessionAuth(jwtSecret))
	pos.GET("/state", h.Pos.GetState)
	pos.POST("/snapshot", h.Pos.Snapshot)
	pos.POST("/ticket", h.Pos.CreateTicket)
	pos.POST("/ticket/:id/status", h.Pos.TicketStatus)
	pos.DELETE("/ticket/:id", h.Pos.DeleteTicket)
	pos.POST("/table/:id", h.Pos.PatchTable)

	// Back-office proxy. Menu browsing predates login on the
	// terminals, so these stay open like they always have.
	e.GET("/bc/items", h.ERP.Items)
	e.GET("/bc/menu", h.ERP.Menu)
	e.GET("/bc/stock", h.ERP.Stock)
	e.POST("/bc/invoice", h.ERP.Invoice)

	// State-sync channel; token checked inside the handler because
	// browsers cannot set headers on websocket upgrades.
	e.GET("/ws", h.WS.Serve)

	e.GET("/health", h.Health.Health)
}
