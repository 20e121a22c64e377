package printer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePrinter is a stand-in for the printer-serving process: a
// websocket endpoint that acks every frame according to reply.
func fakePrinter(t *testing.T, reply func(f frame) *Ack) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			ack := reply(f)
			if ack == nil {
				continue // simulate a printer that never answers
			}
			raw, _ := json.Marshal(ack)
			if err := conn.WriteJSON(frame{Event: "ack", Ack: f.Ack, Data: raw}); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startRelay(t *testing.T, url string, ackTimeout time.Duration) *Relay {
	t.Helper()
	r := NewRelay(url, ackTimeout, 50*time.Millisecond)
	go r.Run()
	t.Cleanup(r.Close)
	return r
}

func TestForwardFastFailsWhenDisconnected(t *testing.T) {
	r := NewRelay("", time.Second, time.Second) // never dials

	start := time.Now()
	ack, relayed := r.Forward(context.Background(), EventPrintReceipt, json.RawMessage(`{"saleNo":"1"}`))

	assert.False(t, ack.Ok)
	assert.False(t, relayed)
	assert.Equal(t, ErrNotConnected, ack.Error)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "fast-fail must not wait")
	assert.False(t, r.Connected())
}

func TestForwardRelaysAck(t *testing.T) {
	var got frame
	srv := fakePrinter(t, func(f frame) *Ack {
		got = f
		return &Ack{Ok: true}
	})
	defer srv.Close()

	r := startRelay(t, wsURL(srv), time.Second)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	ack, relayed := r.Forward(context.Background(), EventPrintOrder, json.RawMessage(`{"id":"t1"}`))
	assert.True(t, ack.Ok)
	assert.True(t, relayed)
	assert.Empty(t, ack.Error)
	assert.Equal(t, EventPrintOrder, got.Event)
	assert.JSONEq(t, `{"id":"t1"}`, string(got.Data))
}

func TestForwardRelaysFailureVerbatim(t *testing.T) {
	srv := fakePrinter(t, func(frame) *Ack {
		return &Ack{Ok: false, Error: "out of paper"}
	})
	defer srv.Close()

	r := startRelay(t, wsURL(srv), time.Second)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	ack, relayed := r.Forward(context.Background(), EventPrintReceipt, nil)
	assert.False(t, ack.Ok)
	assert.True(t, relayed, "a printer-reported failure is still a relayed ack")
	assert.Equal(t, "out of paper", ack.Error)
}

func TestForwardTimesOutWithoutAck(t *testing.T) {
	srv := fakePrinter(t, func(frame) *Ack { return nil })
	defer srv.Close()

	r := startRelay(t, wsURL(srv), 100*time.Millisecond)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	ack, relayed := r.Forward(context.Background(), EventPrintOrder, nil)
	assert.False(t, ack.Ok)
	assert.False(t, relayed)
	assert.Equal(t, "printer ack timeout", ack.Error)
}

func TestDisconnectFailsWaitingForwards(t *testing.T) {
	srv := fakePrinter(t, func(frame) *Ack { return nil })
	defer srv.Close()

	r := startRelay(t, wsURL(srv), 5*time.Second)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	type result struct {
		ack     Ack
		relayed bool
	}
	done := make(chan result, 1)
	go func() {
		ack, relayed := r.Forward(context.Background(), EventPrintOrder, nil)
		done <- result{ack, relayed}
	}()

	time.Sleep(50 * time.Millisecond) // let the forward get in flight
	srv.CloseClientConnections()

	select {
	case res := <-done:
		assert.False(t, res.ack.Ok)
		assert.False(t, res.relayed)
		assert.Equal(t, "printer connection lost", res.ack.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not fail after disconnect")
	}
}

func TestConcurrentForwardsAllReturnWithinBound(t *testing.T) {
	srv := fakePrinter(t, func(frame) *Ack { return nil })
	defer srv.Close()

	timeout := 200 * time.Millisecond
	r := startRelay(t, wsURL(srv), timeout)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	const n = 8
	done := make(chan Ack, n)
	for i := 0; i < n; i++ {
		go func() {
			ack, _ := r.Forward(context.Background(), EventPrintOrder, nil)
			done <- ack
		}()
	}
	deadline := time.After(3 * timeout)
	for i := 0; i < n; i++ {
		select {
		case ack := <-done:
			assert.False(t, ack.Ok)
		case <-deadline:
			t.Fatal("a forward outlived the ack timeout; requests must not stall each other")
		}
	}
	assert.True(t, r.Connected(), "unanswered forwards alone must not drop the link")
}

func TestReconnectAfterServerRestart(t *testing.T) {
	srv := fakePrinter(t, func(frame) *Ack { return &Ack{Ok: true} })
	url := wsURL(srv)

	r := startRelay(t, url, time.Second)
	require.Eventually(t, r.Connected, 2*time.Second, 10*time.Millisecond)

	srv.CloseClientConnections()
	require.Eventually(t, func() bool { return !r.Connected() }, 2*time.Second, 10*time.Millisecond)

	// The relay keeps retrying the same address and comes back once
	// the printer does.
	require.Eventually(t, r.Connected, 3*time.Second, 10*time.Millisecond)

	ack, relayed := r.Forward(context.Background(), EventPrintOrder, nil)
	assert.True(t, ack.Ok)
	assert.True(t, relayed)
	srv.Close()
}
