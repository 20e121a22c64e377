package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/model"
	"github.com/robertos-pos/bc-bridge/internal/store"
)

// PosHandler exposes the state mutation API. Every mutating endpoint
// goes through the store, which persists and broadcasts before the
// response is written, so the caller's response and every
// subscriber's broadcast reflect the same post-mutation state.
type PosHandler struct {
	Store *store.Store
}

// NewPosHandler constructs the handler.
func NewPosHandler(s *store.Store) *PosHandler {
	return &PosHandler{Store: s}
}

// GetState handles GET /pos/state.
func (h *PosHandler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Store.State())
}

// Snapshot handles POST /pos/snapshot: wholesale replacement of
// whichever collections the body carries. Malformed fields are
// ignored per-field, never rejected.
func (h *PosHandler) Snapshot(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "unreadable body"})
	}
	h.Store.ReplaceSnapshot(store.DecodeSnapshot(raw))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// CreateTicket handles POST /pos/ticket. The body is the ticket; a
// missing id is assigned server-side.
func (h *PosHandler) CreateTicket(c echo.Context) error {
	var t model.Ticket
	if err := c.Bind(&t); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid ticket"})
	}
	id := h.Store.CreateTicket(t)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "id": id})
}

// TicketStatus handles POST /pos/ticket/:id/status.
func (h *PosHandler) TicketStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid body"})
	}
	if err := h.Store.UpdateTicketStatus(c.Param("id"), body.Status); err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// DeleteTicket handles DELETE /pos/ticket/:id. Deleting an absent
// ticket still succeeds; the operation is idempotent.
func (h *PosHandler) DeleteTicket(c echo.Context) error {
	h.Store.DeleteTicket(c.Param("id"))
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// PatchTable handles POST /pos/table/:id: a shallow merge of the body
// onto the stored table record.
func (h *PosHandler) PatchTable(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "table not found"})
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "unreadable body"})
	}
	table, err := h.Store.PatchTable(id, raw)
	switch {
	case errors.Is(err, store.ErrTableNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "table not found"})
	case errors.Is(err, store.ErrBadPatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid table patch"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": "patch failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "table": table})
}
