package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// deadlinedConn wraps the socket so that every write carries a fresh deadline.
type deadlinedConn struct {
	sock *websocket.Conn
	wt   time.Duration
}

func (c *deadlinedConn) close() error { return c.sock.Close() }

func (c *deadlinedConn) read() ([]byte, error) {
	_, message, err := c.sock.ReadMessage()
	return message, err
}

func (c *deadlinedConn) write(t int, mess []byte) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.wt)); err != nil {
		return err
	}
	return c.sock.WriteMessage(t, mess)
}

func (c *deadlinedConn) writeClose() error {
	return c.sock.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.wt),
	)
}
