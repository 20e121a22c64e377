package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/erp"
	"github.com/robertos-pos/bc-bridge/internal/guard"
)

// ERPHandler proxies the back office. It never retries upstream
// calls: a failing collaborator is surfaced to the caller with the
// collaborator's own status text, and demo mode (an unconfigured
// collaborator) is invisible here because the fixture client
// satisfies the same interface.
type ERPHandler struct {
	Client erp.Client
	Sales  *guard.Recent
}

// NewERPHandler constructs the handler. Sales is the server-side
// sale-number guard shared with the websocket print path.
func NewERPHandler(client erp.Client, sales *guard.Recent) *ERPHandler {
	return &ERPHandler{Client: client, Sales: sales}
}

// Items handles GET /bc/items, returning raw item rows under "value"
// the way the OData API does.
func (h *ERPHandler) Items(c echo.Context) error {
	items, err := h.Client.Items(c.Request().Context())
	if err != nil {
		return upstreamJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"value": items})
}

// Menu handles GET /bc/menu.
func (h *ERPHandler) Menu(c echo.Context) error {
	menu, err := h.Client.Menu(c.Request().Context())
	if err != nil {
		return upstreamJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "categories": menu.Categories, "items": menu.Items})
}

// Stock handles GET /bc/stock, a flat item-number to quantity map.
func (h *ERPHandler) Stock(c echo.Context) error {
	stock, err := h.Client.Stock(c.Request().Context())
	if err != nil {
		return upstreamJSON(c, err)
	}
	return c.JSON(http.StatusOK, stock)
}

// Invoice handles POST /bc/invoice. A sale number that was already
// posted this session is rejected before any upstream call; this is
// the server-side end of the idempotency guard.
func (h *ERPHandler) Invoice(c echo.Context) error {
	var req erp.InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid body"})
	}
	if h.Sales != nil && req.ExternalDocumentNumber != "" && h.Sales.Seen(req.ExternalDocumentNumber) {
		return c.JSON(http.StatusConflict, echo.Map{"ok": false, "error": "duplicate sale number"})
	}
	res, err := h.Client.CreateInvoice(c.Request().Context(), req)
	if err != nil {
		var badLine *erp.BadLineError
		if errors.As(err, &badLine) {
			return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "step": "add-line", "error": badLine.Error()})
		}
		var up *erp.UpstreamError
		if errors.As(err, &up) {
			return c.JSON(http.StatusBadGateway, echo.Map{"ok": false, "step": up.Step, "error": up.Body})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": err.Error()})
	}
	if h.Sales != nil && req.ExternalDocumentNumber != "" {
		h.Sales.Remember(req.ExternalDocumentNumber)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "invoiceId": res.InvoiceID, "posted": res.Posted})
}

// upstreamJSON maps a read failure onto the wire: upstream errors
// carry the collaborator's text with a 502, anything else is a 500.
func upstreamJSON(c echo.Context, err error) error {
	var up *erp.UpstreamError
	if errors.As(err, &up) {
		return c.JSON(http.StatusBadGateway, echo.Map{"ok": false, "error": up.Body})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": err.Error()})
}
