package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn is a synthetic Conn used to drive Session.Run without a real
// websocket, mirroring how internal/postprocess tests fake WorkerProcess.
type fakeConn struct {
	mu         sync.Mutex
	incoming   chan []byte
	written    []ServerMessage
	closed     bool
	closeOnce  sync.Once
	readErrCh  chan error
	writeCount int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming:  make(chan []byte, 8),
		readErrCh: make(chan error, 1),
	}
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := v.(ServerMessage)
	if ok {
		f.written = append(f.written, msg)
	}
	f.writeCount++
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw, ok := <-f.incoming:
		if !ok {
			return 0, nil, errors.New("connection closed")
		}
		return 1, raw, nil
	case err := <-f.readErrCh:
		return 0, nil, err
	}
}

func (f *fakeConn) WriteMessage(int, []byte) error { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.incoming)
	})
	return nil
}

func (f *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) messagesWritten() []ServerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ServerMessage, len(f.written))
	copy(out, f.written)
	return out
}

func TestSession_SendDeliversThroughRun(t *testing.T) {
	conn := newFakeConn()
	sess := New(NewID(), "Html", conn)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx, func(ClientMessage) {}) }()

	sess.Send(ServerMessage{Kind: StatusSuccessfullyCompiled})

	require.Eventually(t, func() bool {
		return len(conn.messagesWritten()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-runDone
}

func TestSession_OnClientInvokedForDecodedMessages(t *testing.T) {
	conn := newFakeConn()
	sess := New(NewID(), "Html", conn)

	received := make(chan ClientMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.Run(ctx, func(msg ClientMessage) {
			received <- msg
		})
	}()

	conn.incoming <- []byte(`{"kind":"FocusedTab"}`)

	select {
	case msg := <-received:
		require.Equal(t, FocusedTab, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client message")
	}

	cancel()
	<-runDone
}

func TestSession_RunReturnsWhenConnectionCloses(t *testing.T) {
	conn := newFakeConn()
	sess := New(NewID(), "Html", conn)

	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(context.Background(), func(ClientMessage) {}) }()

	conn.Close()

	select {
	case err := <-runDone:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after connection closed")
	}
}

func TestSession_SendDropsWhenBufferFullInsteadOfBlocking(t *testing.T) {
	conn := newFakeConn()
	sess := New(NewID(), "Html", conn)

	for i := 0; i < sendBuffer+5; i++ {
		sess.Send(ServerMessage{Kind: StatusWaitingForCompilation})
	}
	// No deadlock/hang means the non-blocking guarantee held.
}
