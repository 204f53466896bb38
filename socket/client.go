package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Synthetic events surfaced alongside the server's own.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

const writeWait = 10 * time.Second

// Event is one named message from the server. Data is nil when the server
// sent no argument.
type Event struct {
	Name string
	Data json.RawMessage
}

// Client is a Socket.IO client bound to the default namespace. It never
// reconnects: once the stream ends, Events is closed.
type Client struct {
	conn   *websocket.Conn
	events chan Event

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

var dialer = websocket.Dialer{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   4096,
	WriteBufferSize:  1024,
}

// Dial opens the websocket transport and performs the Engine.IO handshake.
// The Socket.IO connect acknowledgement arrives later as EventConnect.
func Dial(ctx context.Context, server string) (*Client, error) {
	endpoint, err := EndpointURL(server)
	if err != nil {
		return nil, err
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	conn.SetReadDeadline(time.Now().Add(dialer.HandshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read open packet: %w", err)
	}
	p, err := decodePacket(msg)
	if err != nil || p.kind != kindOpen {
		conn.Close()
		return nil, fmt.Errorf("expected open packet, got %q", msg)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	if err := c.write([]byte{eioMessage, sioConnect}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send connect: %w", err)
	}

	log.WithField("sid", p.open.SID).Info("Connected to game server at ", endpoint)
	go c.readLoop(p.open.deadline())
	return c, nil
}

// Events yields server events in arrival order. The last event is always
// EventDisconnect.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Emit sends a named event with one JSON argument.
func (c *Client) Emit(name string, payload interface{}) error {
	msg, err := encodeEvent(name, payload)
	if err != nil {
		return err
	}
	return c.write(msg)
}

// Close disconnects from the namespace and closes the socket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		// 尽力通知服务端，失败也无所谓
		c.write([]byte{eioMessage, sioDisconnect})
		c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Client) writeControl(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func (c *Client) readLoop(silence time.Duration) {
	defer func() {
		c.deliver(Event{Name: EventDisconnect})
		close(c.events)
		c.conn.Close()
	}()

	for {
		c.conn.SetReadDeadline(time.Now().Add(silence))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Warn("Game server connection lost")
				}
			}
			return
		}

		p, err := decodePacket(msg)
		if err != nil {
			log.WithError(err).Debug("Dropping undecodable packet")
			continue
		}

		switch p.kind {
		case kindPing:
			if err := c.write([]byte{eioPong}); err != nil {
				log.WithError(err).Warn("Failed to answer ping")
				return
			}
		case kindConnect:
			c.deliver(Event{Name: EventConnect})
		case kindEvent:
			c.deliver(p.event)
		case kindConnectError:
			log.WithField("reason", p.err).Error("Game server refused connection")
			return
		case kindDisconnect, kindClose:
			log.Info("Game server closed the session")
			return
		}
	}
}

// deliver blocks until the consumer takes the event or the client is closed.
func (c *Client) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
