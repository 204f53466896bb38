package socket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

type packetKind int

const (
	kindIgnore packetKind = iota
	kindOpen
	kindClose
	kindPing
	kindConnect
	kindConnectError
	kindDisconnect
	kindEvent
)

type packet struct {
	kind  packetKind
	event Event
	open  openInfo
	err   string
}

type openInfo struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// deadline is how long the server may stay silent before the connection is
// considered dead.
func (o openInfo) deadline() time.Duration {
	if o.PingInterval <= 0 || o.PingTimeout <= 0 {
		return 45 * time.Second
	}
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

var errEmptyPacket = errors.New("empty packet")

func decodePacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, errEmptyPacket
	}
	body := msg[1:]
	switch msg[0] {
	case eioOpen:
		var info openInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return packet{}, fmt.Errorf("decode open packet: %w", err)
		}
		return packet{kind: kindOpen, open: info}, nil
	case eioClose:
		return packet{kind: kindClose}, nil
	case eioPing:
		return packet{kind: kindPing}, nil
	case eioPong, eioNoop:
		return packet{kind: kindIgnore}, nil
	case eioMessage:
		return decodeSocketPacket(body)
	default:
		return packet{}, fmt.Errorf("unknown engine.io packet type %q", msg[0])
	}
}

func decodeSocketPacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, errEmptyPacket
	}
	body := skipNamespace(msg[1:])
	switch msg[0] {
	case sioConnect:
		return packet{kind: kindConnect}, nil
	case sioDisconnect:
		return packet{kind: kindDisconnect}, nil
	case sioConnectError:
		reason := gjson.GetBytes(body, "message").String()
		if reason == "" {
			reason = string(body)
		}
		return packet{kind: kindConnectError, err: reason}, nil
	case sioEvent:
		// 跳过可选的 ack id
		i := 0
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
		}
		args := gjson.ParseBytes(body[i:])
		if !args.IsArray() {
			return packet{}, fmt.Errorf("event packet without argument list: %q", body)
		}
		items := args.Array()
		if len(items) == 0 || items[0].Type != gjson.String {
			return packet{}, fmt.Errorf("event packet without name: %q", body)
		}
		ev := Event{Name: items[0].Str}
		if len(items) > 1 {
			ev.Data = json.RawMessage(items[1].Raw)
		}
		return packet{kind: kindEvent, event: ev}, nil
	default:
		return packet{kind: kindIgnore}, nil
	}
}

// skipNamespace drops a leading "/nsp," so packets addressed to a named
// namespace decode like the default one.
func skipNamespace(b []byte) []byte {
	if len(b) == 0 || b[0] != '/' {
		return b
	}
	for i, c := range b {
		if c == ',' {
			return b[i+1:]
		}
	}
	return b[len(b):]
}

func encodeEvent(name string, payload interface{}) ([]byte, error) {
	args, err := json.Marshal([]interface{}{name, payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", name, err)
	}
	return append([]byte{eioMessage, sioEvent}, args...), nil
}

// EndpointURL turns a server base URL such as http://localhost:8765 into the
// websocket transport endpoint.
func EndpointURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", server)
	}
	path := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(path, "/socket.io") {
		path += "/socket.io"
	}
	u.Path = path + "/"
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
