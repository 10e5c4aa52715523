package hub

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/teslashibe/rockguide/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// subscribe registers a connectionless client for inspecting its queue.
func subscribe(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer)}
	h.register <- c
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", log.Nop())
	go h.Run(ctx)
	defer func() {
		cancel()
		<-h.Done()
	}()

	a := subscribe(t, h, 4)
	b := subscribe(t, h, 4)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if err := h.BroadcastJSON(map[string]int{"index": 1}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	for name, c := range map[string]*Client{"a": a, "b": b} {
		select {
		case msg := <-c.send:
			if string(msg) != `{"index":1}` {
				t.Errorf("%s got %s", name, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s received nothing", name)
		}
	}

	h.unregister <- a
	waitFor(t, func() bool { return h.ClientCount() == 1 })
	if _, ok := <-a.send; ok {
		t.Error("Expected unregistered client's queue to be closed")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", log.Nop())
	go h.Run(ctx)
	defer func() {
		cancel()
		<-h.Done()
	}()

	slow := subscribe(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast([]byte("1"))
	h.Broadcast([]byte("2"))
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	if msg := <-slow.send; string(msg) != "1" {
		t.Errorf("Expected first message to be delivered, got %s", msg)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", log.Nop())
	go h.Run(ctx)

	c := subscribe(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	<-h.Done()

	if _, ok := <-c.send; ok {
		t.Error("Expected client queue closed on stop")
	}
	if Attach(h, nil) != nil {
		t.Error("Attach after stop should return nil")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", log.Nop())
	for i := 0; i < 300; i++ {
		h.Broadcast([]byte("x"))
	}
	if h.Dropped() != 300-256 {
		t.Errorf("Dropped() = %d, want %d", h.Dropped(), 300-256)
	}
}
