package websocket

import (
	"sync"
	"time"
)

// wsConn is the subset of *websocket.Conn the hub uses. Narrowed so tests
// can stand in failing sinks without a network round trip.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// subscriber is one connected client. Writes are serialized per subscriber
// so broadcast and reply paths never interleave a message.
type subscriber struct {
	id   string
	conn wsConn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// write sends one message with a deadline, holding the subscriber's write
// lock for the duration
func (s *subscriber) write(messageType int, data []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(messageType, data)
}

// close shuts the connection exactly once
func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}
