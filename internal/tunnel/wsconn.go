package tunnel

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn presents a websocket connection as a byte stream so it can carry
// a yamux session. Message boundaries are invisible to the caller: Read
// drains each incoming frame through its reader before advancing to the
// next, and Write emits one binary frame per call.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	frame   io.Reader // current partially-consumed incoming frame
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.frame == nil {
			_, frame, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.frame = frame
		}
		n, err := c.frame.Read(p)
		if err == io.EOF {
			// Frame exhausted; yamux expects a continuous stream, so
			// move on to the next one rather than surfacing EOF.
			c.frame = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

var _ io.ReadWriteCloser = (*Conn)(nil)
