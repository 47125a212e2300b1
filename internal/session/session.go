package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingEvery  = (pongWait * 9) / 10
	sendBuffer = 32
)

// Conn is the subset of *websocket.Conn a Session needs. gorilla's
// *websocket.Conn satisfies this directly; tests use a synthetic
// implementation, the same black-box-endpoint seam used for
// internal/postprocess.WorkerProcess.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// ID identifies one connected session, generated fresh per connect.
type ID string

// NewID generates a fresh session identifier.
func NewID() ID { return ID(uuid.NewString()) }

// Session is one connected browser client. A target may have zero, one,
// or many sessions (spec.md §4.7).
type Session struct {
	ID         ID
	TargetName string

	conn Conn
	send chan ServerMessage
	done chan struct{}
}

// New wraps conn as a Session for targetName.
func New(id ID, targetName string, conn Conn) *Session {
	return &Session{
		ID:         id,
		TargetName: targetName,
		conn:       conn,
		send:       make(chan ServerMessage, sendBuffer),
		done:       make(chan struct{}),
	}
}

// Send enqueues a message for delivery. It never blocks: if the outbound
// buffer is full or the session is closing, the message is dropped —
// per spec.md §4.7's backpressure rule, artifacts are delivered only to
// currently-open, keeping-up sessions, never buffered indefinitely.
func (s *Session) Send(msg ServerMessage) {
	select {
	case s.send <- msg:
	case <-s.done:
	default:
	}
}

// Close force-closes the underlying connection. Run's read loop then
// errors out and returns, driving the caller's own disconnect cleanup;
// safe to call from a goroutine other than the one running Run.
func (s *Session) Close() {
	_ = s.conn.Close()
}

// Run drives the read and write loops until ctx is cancelled or the
// connection fails. onClient is invoked for every decoded client
// message. Run blocks until the session ends and always closes conn.
func (s *Session) Run(ctx context.Context, onClient func(ClientMessage)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(s.done)
	defer s.conn.Close()

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go s.writeLoop(ctx, writerDone)
	go func() {
		<-ctx.Done()
		_ = s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return err
		}
		onClient(DecodeClientMessage(raw))
	}
}

func (s *Session) writeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(pingMessageType, nil); err != nil {
				return
			}
		}
	}
}

// pingMessageType mirrors websocket.PingMessage (9) without importing
// gorilla/websocket into this file, keeping Conn a plain interface any
// transport can satisfy.
const pingMessageType = 9
