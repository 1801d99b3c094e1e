// Package websocket is the client transport of the relay.
//
// Every connection runs two pumps: the reader feeds inbound frames into
// a receive channel and the writer drains a bounded send queue.
// Both of them serialize access to the socket.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teamvoice/relay/pkg/com"
	"github.com/teamvoice/relay/pkg/logger"
)

const (
	DefaultMaxMessageSize = 64 * 1024
	DefaultSendQueue      = 64

	pongTime  = 60 * time.Second
	pingTime  = pongTime * 9 / 10
	writeWait = 10 * time.Second
)

type Options struct {
	MaxMessageSize int64
	SendQueue      int
	PingPong       bool
	// CheckOrigin is passed to the upgrader, nil accepts everyone.
	CheckOrigin func(r *http.Request) bool
}

func (o *Options) defaults() {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.SendQueue <= 0 {
		o.SendQueue = DefaultSendQueue
	}
}

// Conn is a websocket connection with buffered async writes.
type Conn struct {
	id   com.Uid
	conn deadlinedConn
	opts Options

	recv chan []byte
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	log *logger.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

// Upgrade switches the HTTP request to the websocket protocol and starts the pumps.
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options, log *logger.Logger) (*Conn, error) {
	up := upgrader
	up.CheckOrigin = opts.CheckOrigin
	if up.CheckOrigin == nil {
		up.CheckOrigin = func(*http.Request) bool { return true }
	}
	sock, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(sock, opts, log), nil
}

// NewConn wraps an established socket.
func NewConn(sock *websocket.Conn, opts Options, log *logger.Logger) *Conn {
	opts.defaults()
	if log == nil {
		log = logger.Default()
	}
	id := com.NewUid()
	c := &Conn{
		id:   id,
		conn: deadlinedConn{sock: sock, wt: writeWait},
		opts: opts,
		recv: make(chan []byte),
		send: make(chan []byte, opts.SendQueue),
		done: make(chan struct{}),
		log:  log.Extend(log.With().Str(logger.ConnField, id.Short())),
	}
	c.wg.Add(2)
	go c.reader()
	go c.writer()
	return c
}

func (c *Conn) Id() com.Uid { return c.id }

// Receive returns inbound frames in arrival order.
// The channel is closed when the connection is gone.
func (c *Conn) Receive() <-chan []byte { return c.recv }

// Done is closed once the connection starts closing.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues the frame without blocking.
// It returns false when the connection is closed or its queue is full,
// the frame is dropped in that case.
func (c *Conn) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Debug().Str(logger.ReasonField, "queue full").Msg("frame skipped")
		return false
	}
}

// Close stops both pumps, it is safe to call many times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.writeClose()
		_ = c.conn.close()
		c.log.Debug().Msg("closed")
	})
}

// Wait blocks until both pumps have exited.
func (c *Conn) Wait() { c.wg.Wait() }

// reader pumps messages from the socket into the receive channel.
func (c *Conn) reader() {
	defer func() {
		close(c.recv)
		c.Close()
		c.wg.Done()
	}()

	c.conn.sock.SetReadLimit(c.opts.MaxMessageSize)
	if c.opts.PingPong {
		_ = c.conn.sock.SetReadDeadline(time.Now().Add(pongTime))
		c.conn.sock.SetPongHandler(func(string) error {
			return c.conn.sock.SetReadDeadline(time.Now().Add(pongTime))
		})
	}
	for {
		message, err := c.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Warn().Err(err).Msg("read")
			}
			return
		}
		select {
		case c.recv <- message:
		case <-c.done:
			return
		}
	}
}

// writer pumps messages from the send queue into the socket.
func (c *Conn) writer() {
	var ping <-chan time.Time
	if c.opts.PingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer func() {
		c.Close()
		c.wg.Done()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			if err := c.conn.write(websocket.TextMessage, message); err != nil {
				c.log.Debug().Err(err).Msg("write")
				return
			}
		case <-ping:
			if err := c.conn.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("ping")
				return
			}
		}
	}
}
