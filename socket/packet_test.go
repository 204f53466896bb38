package socket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		kind     packetKind
		event    string
		data     string
		wantErr  bool
		deadline time.Duration
	}{
		{name: "open", in: `0{"sid":"x","pingInterval":25000,"pingTimeout":20000}`, kind: kindOpen, deadline: 45 * time.Second},
		{name: "open without timers", in: `0{"sid":"x"}`, kind: kindOpen, deadline: 45 * time.Second},
		{name: "ping", in: `2`, kind: kindPing},
		{name: "pong", in: `3`, kind: kindIgnore},
		{name: "close", in: `1`, kind: kindClose},
		{name: "connect", in: `40{"sid":"y"}`, kind: kindConnect},
		{name: "disconnect", in: `41`, kind: kindDisconnect},
		{name: "connect error", in: `44{"message":"nope"}`, kind: kindConnectError},
		{name: "event", in: `42["update",{"score":1}]`, kind: kindEvent, event: "update", data: `{"score":1}`},
		{name: "event with ack id", in: `4217["tick",[1,2]]`, kind: kindEvent, event: "tick", data: `[1,2]`},
		{name: "event in namespace", in: `42/game,["game_over",{}]`, kind: kindEvent, event: "game_over", data: `{}`},
		{name: "event without name", in: `42[1,2]`, wantErr: true},
		{name: "event not a list", in: `42{"a":1}`, wantErr: true},
		{name: "unknown type", in: `9`, wantErr: true},
		{name: "empty", in: ``, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, err := decodePacket([]byte(test.in))
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.kind, p.kind)
			if test.kind == kindEvent {
				assert.Equal(t, test.event, p.event.Name)
				assert.JSONEq(t, test.data, string(p.event.Data))
			}
			if test.kind == kindOpen {
				assert.Equal(t, test.deadline, p.open.deadline())
			}
			if test.kind == kindConnectError {
				assert.Equal(t, "nope", p.err)
			}
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	msg, err := encodeEvent("start_game", map[string]int{"grid_width": 29})
	require.NoError(t, err)
	assert.Equal(t, `42["start_game",{"grid_width":29}]`, string(msg))

	_, err = encodeEvent("bad", make(chan int))
	assert.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8765", want: "ws://localhost:8765/socket.io/?EIO=4&transport=websocket"},
		{in: "https://snake.example.com/", want: "wss://snake.example.com/socket.io/?EIO=4&transport=websocket"},
		{in: "ws://localhost:8000/socket.io", want: "ws://localhost:8000/socket.io/?EIO=4&transport=websocket"},
		{in: "ftp://localhost", wantErr: true},
		{in: "http://", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := EndpointURL(test.in)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}
