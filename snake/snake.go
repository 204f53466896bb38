// 关于蛇状态消息的归一化
package snake

import (
	"math"

	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/tidwall/gjson"
)

// MaxGridSize bounds grid_width and grid_height. Larger grids cannot be drawn.
const MaxGridSize = 1024

// Unwrap returns the envelope's payload field when present, otherwise the
// message itself. The server sends both {event, payload} envelopes and flat
// payloads depending on the deployment.
func Unwrap(data []byte) []byte {
	payload := gjson.GetBytes(data, "payload")
	if payload.Exists() && payload.Type != gjson.Null {
		return []byte(payload.Raw)
	}
	return data
}

// EnvelopeEvent returns the envelope's event tag ("init", "tick", "game_over"), or "".
func EnvelopeEvent(data []byte) string {
	event := gjson.GetBytes(data, "event")
	if event.Type != gjson.String {
		return ""
	}
	return event.Str
}

// ApplyPayload merges the fields present in payload into state and reports
// whether anything was written. Fields that are missing or malformed are left
// untouched.
func ApplyPayload(state *structs.GameState, payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return false
	}
	changed := false

	// 地图尺寸通常只出现在初始消息里
	if w, ok := dimension(root.Get("grid_width")); ok {
		state.GridWidth = w
		changed = true
	}
	if h, ok := dimension(root.Get("grid_height")); ok {
		state.GridHeight = h
		changed = true
	}

	// 蛇可能是坐标列表，也可能是 {body: [...]}
	snakeRaw := root.Get("snake")
	if snakeRaw.IsObject() {
		snakeRaw = snakeRaw.Get("body")
	}
	if body, ok := positions(snakeRaw); ok {
		state.Snake = body
		changed = true
	}

	// 食物可能是坐标对，也可能是 {position: [...]}
	foodRaw := root.Get("food")
	if foodRaw.IsObject() && foodRaw.Get("position").Exists() {
		foodRaw = foodRaw.Get("position")
	}
	if food, ok := position(foodRaw); ok {
		state.Food = food
		changed = true
	}

	if score, ok := integer(root.Get("score")); ok {
		state.Score = score
		changed = true
	}

	return changed
}

func positions(r gjson.Result) ([]structs.Position, bool) {
	if !r.IsArray() {
		return nil, false
	}
	items := r.Array()
	body := make([]structs.Position, 0, len(items))
	for _, item := range items {
		p, ok := position(item)
		if !ok {
			return nil, false
		}
		body = append(body, p)
	}
	return body, true
}

// position accepts [x, y] and {"x": .., "y": ..}.
func position(r gjson.Result) (structs.Position, bool) {
	var xr, yr gjson.Result
	switch {
	case r.IsArray():
		pair := r.Array()
		if len(pair) != 2 {
			return structs.Position{}, false
		}
		xr, yr = pair[0], pair[1]
	case r.IsObject():
		xr, yr = r.Get("x"), r.Get("y")
	default:
		return structs.Position{}, false
	}
	x, okX := integer(xr)
	y, okY := integer(yr)
	if !okX || !okY {
		return structs.Position{}, false
	}
	return structs.Position{X: x, Y: y}, true
}

func dimension(r gjson.Result) (int, bool) {
	n, ok := integer(r)
	if !ok || n < 1 || n > MaxGridSize {
		return 0, false
	}
	return n, true
}

func integer(r gjson.Result) (int, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	if r.Num != math.Trunc(r.Num) || math.Abs(r.Num) > math.MaxInt32 {
		return 0, false
	}
	return int(r.Num), true
}
