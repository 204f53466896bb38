package snake

import (
	"testing"

	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPayloadShapesAgree(t *testing.T) {
	bare := []byte(`{"grid_width":20,"grid_height":15,"snake":[[3,4],[3,5],[3,6]],"food":[9,1],"score":2}`)
	wrapped := []byte(`{"grid_width":20,"grid_height":15,"snake":{"body":[[3,4],[3,5],[3,6]],"direction":"UP"},"food":{"position":[9,1]},"score":2}`)
	objects := []byte(`{"grid_width":20,"grid_height":15,"snake":[{"x":3,"y":4},{"x":3,"y":5},{"x":3,"y":6}],"food":{"x":9,"y":1},"score":2}`)

	a := structs.NewGameState()
	b := structs.NewGameState()
	c := structs.NewGameState()
	require.True(t, ApplyPayload(&a, bare))
	require.True(t, ApplyPayload(&b, wrapped))
	require.True(t, ApplyPayload(&c, objects))

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, []structs.Position{{X: 3, Y: 4}, {X: 3, Y: 5}, {X: 3, Y: 6}}, a.Snake)
	assert.Equal(t, structs.Position{X: 9, Y: 1}, a.Food)
	assert.Equal(t, 2, a.Score)
	assert.Equal(t, 20, a.GridWidth)
}

func TestApplyPayloadOnlyOverwritesPresentFields(t *testing.T) {
	state := structs.NewGameState()
	require.True(t, ApplyPayload(&state, []byte(`{"score":7}`)))

	want := structs.NewGameState()
	want.Score = 7
	assert.Equal(t, want, state)
}

func TestApplyPayloadIgnoresMalformedFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"snake":`},
		{name: "not an object", payload: `[1,2,3]`},
		{name: "string score", payload: `{"score":"12"}`},
		{name: "fractional score", payload: `{"score":1.5}`},
		{name: "zero grid", payload: `{"grid_width":0,"grid_height":-3}`},
		{name: "huge grid", payload: `{"grid_width":2147483647,"grid_height":2147483647}`},
		{name: "grid above max", payload: `{"grid_width":1025,"grid_height":50000}`},
		{name: "short pair", payload: `{"food":[1]}`},
		{name: "bad body point", payload: `{"snake":[[1,2],["a",3]]}`},
		{name: "body not a list", payload: `{"snake":{"body":"[[1,2]]"}}`},
		{name: "food wrapper without pair", payload: `{"food":{"position":null}}`},
		{name: "null fields", payload: `{"snake":null,"food":null,"score":null}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			state := structs.NewGameState()
			assert.False(t, ApplyPayload(&state, []byte(test.payload)))
			assert.Equal(t, structs.NewGameState(), state)
		})
	}
}

func TestApplyPayloadAcceptsLargestGrid(t *testing.T) {
	state := structs.NewGameState()
	require.True(t, ApplyPayload(&state, []byte(`{"grid_width":1024,"grid_height":1024}`)))
	assert.Equal(t, MaxGridSize, state.GridWidth)
	assert.Equal(t, MaxGridSize, state.GridHeight)
}

func TestApplyPayloadAcceptsEmptySnake(t *testing.T) {
	state := structs.NewGameState()
	require.True(t, ApplyPayload(&state, []byte(`{"snake":[]}`)))
	assert.Empty(t, state.Snake)
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "envelope", in: `{"event":"tick","payload":{"score":1}}`, want: `{"score":1}`},
		{name: "flat", in: `{"score":1}`, want: `{"score":1}`},
		{name: "null payload", in: `{"event":"tick","payload":null,"score":3}`, want: `{"event":"tick","payload":null,"score":3}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, string(Unwrap([]byte(test.in))))
		})
	}
}

func TestEnvelopeEvent(t *testing.T) {
	assert.Equal(t, "game_over", EnvelopeEvent([]byte(`{"event":"game_over","payload":{}}`)))
	assert.Equal(t, "", EnvelopeEvent([]byte(`{"score":1}`)))
	assert.Equal(t, "", EnvelopeEvent([]byte(`{"event":3}`)))
}
