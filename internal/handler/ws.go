package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/guard"
	"github.com/robertos-pos/bc-bridge/internal/hub"
	"github.com/robertos-pos/bc-bridge/internal/middleware"
	"github.com/robertos-pos/bc-bridge/internal/model"
	"github.com/robertos-pos/bc-bridge/internal/printer"
	"github.com/robertos-pos/bc-bridge/internal/store"
	"github.com/robertos-pos/bc-bridge/internal/utils"
)

// wsFrame is the envelope every message on the state-sync channel
// uses, in both directions. Ack carries a client-chosen correlation
// id echoed back on the reply frame.
type wsFrame struct {
	Event string          `json:"event"`
	Ack   int64           `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Channel events.
const (
	evState       = "state"
	evSnapshot    = "snapshot"
	evAck         = "ack"
	evPrintStatus = "print-status"
)

// PrintForwarder is what the channel needs from the printer relay.
// The bool reports whether the ack came from the printer process.
type PrintForwarder interface {
	Forward(ctx context.Context, kind string, payload json.RawMessage) (printer.Ack, bool)
}

// WSHandler serves the long-lived state-sync connections: the current
// state on connect, a fresh snapshot after every mutation, snapshot
// intents from clients, and the two print events with their acks.
type WSHandler struct {
	Secret string
	Store  *store.Store
	Hub    *hub.Hub
	Relay  PrintForwarder
	Sales  *guard.Recent

	upgrader websocket.Upgrader
}

// NewWSHandler constructs the handler. allowedOrigins mirrors the
// HTTP CORS configuration; an empty list allows any origin, which is
// only intended for tests.
func NewWSHandler(secret string, s *store.Store, h *hub.Hub, relay PrintForwarder, sales *guard.Recent, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		Secret: secret,
		Store:  s,
		Hub:    h,
		Relay:  relay,
		Sales:  sales,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// Serve handles GET /ws. The session token arrives as a ?token query
// parameter, a Bearer header, or the sid cookie; without a valid one
// the upgrade is refused.
func (h *WSHandler) Serve(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		raw = middleware.ReadToken(c)
	}
	if _, err := utils.ParseSessionToken(h.Secret, raw); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "error": "unauthorized"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // Upgrade already wrote the error response
	}

	id, updates := h.Hub.Subscribe()
	out := make(chan wsFrame, 32)
	done := make(chan struct{})

	// Single writer goroutine; gorilla connections allow only one
	// concurrent writer.
	go func() {
		for {
			select {
			case f := <-out:
				if err := conn.WriteJSON(f); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Bridge hub snapshots onto the outbound channel.
	go func() {
		for state := range updates {
			h.enqueue(out, done, stateFrame(state))
		}
	}()

	// Current state immediately on connect; late joiners must not
	// wait for the next mutation.
	h.enqueue(out, done, stateFrame(h.Store.State()))

	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		switch f.Event {
		case evSnapshot:
			h.Store.ReplaceSnapshot(store.DecodeSnapshot(f.Data))
		case printer.EventPrintOrder, printer.EventPrintReceipt:
			// Forwarding may block on the printer's ack; run it off
			// the read loop so one hung print never stalls the
			// connection's other traffic.
			go h.forwardPrint(out, done, f)
		}
	}

	h.Hub.Unsubscribe(id)
	close(done)
	return conn.Close()
}

// forwardPrint relays one print request and reports back: the ack
// frame the caller is waiting on, and, when the printer actually
// answered, a print-status notification carrying the correlation id
// (ticket id or sale number). Local failures like a down printer get
// the ack only; no printer answered, so there is no status to report.
func (h *WSHandler) forwardPrint(out chan wsFrame, done chan struct{}, f wsFrame) {
	kind := "order"
	if f.Event == printer.EventPrintReceipt {
		kind = "receipt"
	}

	var correlate struct {
		ID     string `json:"id"`
		SaleNo string `json:"saleNo"`
	}
	_ = json.Unmarshal(f.Data, &correlate)

	var ack printer.Ack
	var relayed bool
	if kind == "receipt" && h.Sales != nil && h.Sales.Seen(correlate.SaleNo) && correlate.SaleNo != "" {
		ack = printer.Ack{Ok: false, Error: "duplicate sale number"}
	} else if h.Relay == nil {
		ack = printer.Ack{Ok: false, Error: printer.ErrNotConnected}
	} else {
		ack, relayed = h.Relay.Forward(context.Background(), f.Event, f.Data)
	}
	if ack.Ok && kind == "receipt" && h.Sales != nil && correlate.SaleNo != "" {
		h.Sales.Remember(correlate.SaleNo)
	}

	h.enqueue(out, done, ackFrame(f.Ack, ack))
	if !relayed {
		return
	}

	status := echo.Map{"type": kind, "ok": ack.Ok}
	if ack.Ok {
		if kind == "order" {
			status["id"] = correlate.ID
		} else {
			status["saleNo"] = correlate.SaleNo
		}
	} else {
		status["error"] = ack.Error
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	h.enqueue(out, done, wsFrame{Event: evPrintStatus, Data: raw})
}

// enqueue delivers a frame to the writer unless the connection is
// already gone.
func (h *WSHandler) enqueue(out chan wsFrame, done chan struct{}, f wsFrame) {
	select {
	case out <- f:
	case <-done:
	}
}

func stateFrame(state model.PosState) wsFrame {
	raw, err := json.Marshal(state)
	if err != nil {
		log.Printf("[ws] marshal state: %v", err)
		return wsFrame{Event: evState, Data: json.RawMessage("{}")}
	}
	return wsFrame{Event: evState, Data: raw}
}

func ackFrame(id int64, ack printer.Ack) wsFrame {
	raw, _ := json.Marshal(ack)
	return wsFrame{Event: evAck, Ack: id, Data: raw}
}
