// Package printer forwards print requests to the independent
// printer-serving process over a single outbound websocket. The relay
// tracks whether that link is live: when it is down, requests
// fast-fail immediately instead of queueing, and the reconnect loop
// keeps retrying in the background. A wedged printer must never block
// state mutation or any other terminal's traffic.
package printer

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Event names understood by the printer process.
const (
	EventPrintOrder   = "print-order"
	EventPrintReceipt = "print-receipt"
)

// ErrNotConnected is the fast-fail message relayed verbatim to the
// terminal that asked for the print.
const ErrNotConnected = "printer server not connected"

// Ack is the printer process's acknowledgment, relayed unmodified to
// the original caller.
type Ack struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// frame is the wire envelope both directions use: an event name, an
// ack correlation id, and an opaque payload.
type frame struct {
	Event string          `json:"event"`
	Ack   int64           `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Relay maintains the outbound printer connection.
type Relay struct {
	url        string
	ackTimeout time.Duration
	retry      time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int64]chan Ack

	nextAck atomic.Int64
	done    chan struct{}
	closed  sync.Once
}

// NewRelay builds a relay for the given printer websocket URL. It
// does not dial; call Run in a goroutine to start the connection
// loop. ackTimeout bounds how long a forwarded request waits for the
// printer's acknowledgment, retry is the reconnect interval.
func NewRelay(url string, ackTimeout, retry time.Duration) *Relay {
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	if retry <= 0 {
		retry = 3 * time.Second
	}
	return &Relay{
		url:        url,
		ackTimeout: ackTimeout,
		retry:      retry,
		pending:    make(map[int64]chan Ack),
		done:       make(chan struct{}),
	}
}

// Run dials the printer process and keeps the connection alive,
// redialing on a fixed interval after every disconnect. It returns
// when Close is called. A relay constructed with an empty URL never
// dials and stays permanently in the fast-fail state.
func (r *Relay) Run() {
	if r.url == "" {
		return
	}
	for {
		select {
		case <-r.done:
			return
		default:
		}
		conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
		if err != nil {
			log.Printf("[printer] connect_error: %v", err)
			select {
			case <-r.done:
				return
			case <-time.After(r.retry):
			}
			continue
		}
		log.Printf("[printer] connected to %s", r.url)
		r.setConn(conn)
		r.readLoop(conn)
		r.dropConn(conn)
		log.Printf("[printer] disconnected")
	}
}

// Close stops the reconnect loop and drops the current connection.
func (r *Relay) Close() {
	r.closed.Do(func() {
		close(r.done)
		r.mu.Lock()
		if r.conn != nil {
			r.conn.Close()
			r.conn = nil
		}
		r.mu.Unlock()
	})
}

// Connected reports whether the link to the printer process is live.
// Exposed to every subscriber through the health endpoint.
func (r *Relay) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

// Forward sends a print request and waits for the printer's ack. When
// no live connection exists it returns the failure ack synchronously
// without attempting to send; requests are never buffered across
// disconnects. The wait is bounded by ctx and by the relay's ack
// timeout. The second return value reports whether the ack actually
// came from the printer process, as opposed to being synthesized by
// the relay on a local failure.
func (r *Relay) Forward(ctx context.Context, kind string, payload json.RawMessage) (Ack, bool) {
	id := r.nextAck.Add(1)
	ch := make(chan Ack, 1)

	r.mu.Lock()
	conn := r.conn
	if conn == nil {
		r.mu.Unlock()
		return Ack{Ok: false, Error: ErrNotConnected}, false
	}
	r.pending[id] = ch
	// The write deadline bounds how long the mutex is held when the
	// printer stops draining its socket; without it a hung printer
	// would stall every other Forward and Connected call.
	conn.SetWriteDeadline(time.Now().Add(r.ackTimeout))
	err := conn.WriteJSON(frame{Event: kind, Ack: id, Data: payload})
	r.mu.Unlock()

	if err != nil {
		// The connection is unusable after a failed write; closing it
		// unblocks the read loop so Run can redial.
		conn.Close()
		r.forget(id)
		return Ack{Ok: false, Error: ErrNotConnected}, false
	}

	timer := time.NewTimer(r.ackTimeout)
	defer timer.Stop()
	select {
	case ack, ok := <-ch:
		if !ok {
			return Ack{Ok: false, Error: "printer connection lost"}, false
		}
		return ack, true
	case <-timer.C:
		r.forget(id)
		return Ack{Ok: false, Error: "printer ack timeout"}, false
	case <-ctx.Done():
		r.forget(id)
		return Ack{Ok: false, Error: "request cancelled"}, false
	case <-r.done:
		r.forget(id)
		return Ack{Ok: false, Error: ErrNotConnected}, false
	}
}

// readLoop consumes frames from the printer until the connection
// errors, resolving pending acks by correlation id.
func (r *Relay) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Event != "ack" {
			continue
		}
		var ack Ack
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &ack); err != nil {
				ack = Ack{Ok: false, Error: "unreadable printer ack"}
			}
		}
		r.mu.Lock()
		ch, ok := r.pending[f.Ack]
		if ok {
			delete(r.pending, f.Ack)
		}
		r.mu.Unlock()
		if ok {
			ch <- ack
		}
	}
}

func (r *Relay) setConn(conn *websocket.Conn) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
}

// dropConn clears the live connection and fails every request still
// waiting on it; their acks can no longer arrive. Closing the channel
// tells the waiter no printer ack was involved.
func (r *Relay) dropConn(conn *websocket.Conn) {
	conn.Close()
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	waiting := r.pending
	r.pending = make(map[int64]chan Ack)
	r.mu.Unlock()
	for _, ch := range waiting {
		close(ch)
	}
}

func (r *Relay) forget(id int64) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}
