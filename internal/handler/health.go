package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PrinterStatus is the one bit of liveness the health payload needs
// from the relay.
type PrinterStatus interface {
	Connected() bool
}

// HealthHandler reports service liveness plus whether the printer
// link is up, so terminals can grey out their print buttons before
// anyone taps one.
type HealthHandler struct {
	Env     string
	Printer PrinterStatus
}

// Health handles GET /health.
func (h *HealthHandler) Health(c echo.Context) error {
	connected := false
	if h.Printer != nil {
		connected = h.Printer.Connected()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":               true,
		"service":          "bc-bridge",
		"printerConnected": connected,
		"env":              h.Env,
		"time":             time.Now().UTC().Format(time.RFC3339),
	})
}
