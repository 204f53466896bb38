package structs

// Position 描述游戏地图上的一个格子坐标。
type Position struct {
	X int `json:"x"` // X坐标
	Y int `json:"y"` // Y坐标
}

// GameState 是观战端持有的视图状态，每条服务端消息整体覆盖对应字段。
type GameState struct {
	GridWidth  int        `json:"grid_width"`  // 地图宽度（格）
	GridHeight int        `json:"grid_height"` // 地图高度（格）
	Snake      []Position `json:"snake"`       // 从蛇头到蛇尾
	Food       Position   `json:"food"`        // 食物位置
	Score      int        `json:"score"`       // 分数
	GameOver   bool       `json:"game_over"`   // 收到终局消息后置位
}

// NewGameState returns the state shown before the server has said anything.
func NewGameState() GameState {
	return GameState{
		GridWidth:  29,
		GridHeight: 19,
		Snake:      []Position{{X: 12, Y: 11}},
		Food:       Position{X: 7, Y: 8},
	}
}

// Clone returns a copy that shares no memory with s.
func (s GameState) Clone() GameState {
	c := s
	c.Snake = append([]Position(nil), s.Snake...)
	return c
}

// Viewport 描述可用的显示区域，单位像素。
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// StartGame 是连接建立后发给服务端的开局请求。
// StartingTick 的单位由配置决定（秒或毫秒）。
type StartGame struct {
	GridWidth    int         `json:"grid_width"`
	GridHeight   int         `json:"grid_height"`
	StartingTick interface{} `json:"starting_tick"`
}

// Preferences 是需要跨重启保留的展示设置。
type Preferences struct {
	Theme    string   `json:"theme"`
	Viewport Viewport `json:"viewport"`
}
