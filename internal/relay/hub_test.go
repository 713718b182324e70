package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parlaymkt/auction-relayer/pkg/types"
)

// A broadcast racing a disconnect must never write to a closed send
// channel: the teardown closes under the hub write lock, sends hold the
// read lock and the per-conn guard.
func TestSendTo_ConcurrentTeardown(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	data := []byte(`{"type":"pong"}`)

	for i := 0; i < 200; i++ {
		c := newTestConn(h, "conn-race")

		start := make(chan struct{})
		var wg sync.WaitGroup

		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 50; j++ {
					h.sendTo("conn-race", data)
				}
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			h.mu.Lock()
			delete(h.conns, c.id)
			c.closeSend()
			h.mu.Unlock()
		}()

		close(start)
		wg.Wait()
	}
}

func TestCloseSend_Idempotent(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	c := newTestConn(h, "conn-1")

	c.closeSend()
	c.closeSend()

	// Late writes after teardown are discarded, not a panic.
	c.enqueue([]byte(`{}`))
	c.sendError(types.CodeUnknownType, "late rejection")

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed and empty")
	}
}

// Hub shutdown tears down every connection and must not strand read pumps
// still trying to hand their conn back.
func TestRun_ShutdownTeardown(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx

	c := newTestConn(h, "conn-1")

	h.wg.Add(1)
	go h.run()

	cancel()
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The connection's send channel is closed; late rejections from a
	// still-draining read pump are discarded.
	c.sendError(types.CodeRateLimited, "late")
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after shutdown")
	}

	// The read pump's teardown handoff returns instead of blocking on the
	// stopped event loop.
	done := make(chan struct{})
	go func() {
		h.drop(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after the hub stopped")
	}
}
