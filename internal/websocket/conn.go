package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
)

// Conn wraps a gorilla connection with a write lock so snapshot pushes
// and pong replies issued from different goroutines cannot interleave.
// Gorilla allows at most one concurrent writer per connection.
type Conn struct {
	writeMu sync.Mutex
	raw     *websocket.Conn
}

func NewConn(raw *websocket.Conn) *Conn {
	return &Conn{raw: raw}
}

func (c *Conn) Close() error {
	return c.raw.Close()
}

// WriteTyped sends a typed payload with a write deadline. Safe for
// concurrent use.
func (c *Conn) WriteTyped(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.raw.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.raw.WriteJSON(v)
}

// WriteError sends an error event to the client.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{Event: EventError, Error: errMsg})
}

// ReadJSON reads one client message with a read deadline. Reads have a
// single consumer per connection, so only writes take the lock.
func (c *Conn) ReadJSON(v interface{}) error {
	_ = c.raw.SetReadDeadline(time.Now().Add(readTimeout))
	return c.raw.ReadJSON(v)
}
