// Package view owns the spectator's view-state and redraws it whenever the
// server, the viewport or the theme changes.
package view

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/snakeview/config"
	"github.com/hoshinonyaruko/snakeview/memimg"
	"github.com/hoshinonyaruko/snakeview/render"
	"github.com/hoshinonyaruko/snakeview/snake"
	"github.com/hoshinonyaruko/snakeview/socket"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Server event names.
const (
	EventStartGame   = "start_game"
	EventUpdate      = "update"
	EventGameState   = "game_state"
	EventGameOver    = "game_over"
	EventServerError = "server_error"
)

// Conn is the server connection the viewer reads from.
type Conn interface {
	Events() <-chan socket.Event
	Emit(name string, payload interface{}) error
	Close() error
}

type Painter interface {
	Draw(state structs.GameState, mode theme.Mode, vp structs.Viewport) render.Frame
}

type PreferenceSaver interface {
	SavePreferences(prefs structs.Preferences) error
}

type Options struct {
	GridWidth  int
	GridHeight int
	Tick       time.Duration
	TickUnit   string
	Theme      theme.Mode
	Viewport   structs.Viewport
	// Output is the PNG file every frame is written to; empty disables it.
	Output string
}

type themeRequest struct {
	mode   theme.Mode
	toggle bool
}

var ErrBadViewport = errors.New("viewport must be positive")

// Viewer is the spectator component. All view-state is owned by the Run
// goroutine; the other methods only queue work for it.
type Viewer struct {
	opts    Options
	conn    Conn
	painter Painter
	frames  *memimg.FrameStore
	prefs   PreferenceSaver
	session string
	logger  *log.Entry

	state    structs.GameState
	mode     theme.Mode
	viewport structs.Viewport

	resize  chan structs.Viewport
	themes  chan themeRequest
	redraws chan struct{}
}

// New builds a viewer. conn, painter and prefs may be nil: without a
// connection nothing updates, without a painter frames carry no image.
func New(conn Conn, painter Painter, frames *memimg.FrameStore, prefs PreferenceSaver, opts Options) *Viewer {
	session := uuid.New().String()
	mode := opts.Theme
	if mode != theme.Dark {
		mode = theme.Light
	}
	return &Viewer{
		opts:     opts,
		conn:     conn,
		painter:  painter,
		frames:   frames,
		prefs:    prefs,
		session:  session,
		logger:   log.WithField("session", session),
		state:    structs.NewGameState(),
		mode:     mode,
		viewport: opts.Viewport,
		resize:   make(chan structs.Viewport, 8),
		themes:   make(chan themeRequest, 8),
		redraws:  make(chan struct{}, 1),
	}
}

func (v *Viewer) Session() string {
	return v.session
}

// Run is the event loop. It returns when ctx is done and closes the
// connection on the way out.
func (v *Viewer) Run(ctx context.Context) error {
	var events <-chan socket.Event
	if v.conn != nil {
		events = v.conn.Events()
		defer v.conn.Close()
	}
	if v.painter == nil {
		v.logger.Warn("No frame renderer available, rendering disabled")
	}

	v.draw("mount")

	for {
		select {
		case <-ctx.Done():
			v.logger.Info("Viewer stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				// 连接断开后不再有更新，保留最后一帧
				events = nil
				continue
			}
			v.handle(ev)
		case vp := <-v.resize:
			v.viewport = vp
			v.savePreferences()
			v.draw("resize")
		case req := <-v.themes:
			mode := req.mode
			if req.toggle {
				mode = v.mode.Toggle()
			}
			if mode != v.mode {
				v.mode = mode
				v.savePreferences()
			}
			v.draw("theme")
		case <-v.redraws:
			v.draw("backdrop")
		}
	}
}

// Resize queues a new viewport size.
func (v *Viewer) Resize(ctx context.Context, vp structs.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrBadViewport, vp.Width, vp.Height)
	}
	select {
	case v.resize <- vp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTheme queues a theme change. Setting the current theme still redraws.
func (v *Viewer) SetTheme(ctx context.Context, mode theme.Mode) error {
	return v.queueTheme(ctx, themeRequest{mode: mode})
}

func (v *Viewer) ToggleTheme(ctx context.Context) error {
	return v.queueTheme(ctx, themeRequest{toggle: true})
}

func (v *Viewer) queueTheme(ctx context.Context, req themeRequest) error {
	select {
	case v.themes <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Redraw asks for a redraw with unchanged inputs, e.g. after a backdrop reload.
func (v *Viewer) Redraw() {
	select {
	case v.redraws <- struct{}{}:
	default:
	}
}

func (v *Viewer) handle(ev socket.Event) {
	switch ev.Name {
	case socket.EventConnect:
		v.startGame()
	case EventUpdate:
		v.apply(ev.Data, false)
	case EventGameState:
		v.apply(snake.Unwrap(ev.Data), snake.EnvelopeEvent(ev.Data) == EventGameOver)
	case EventGameOver:
		v.apply(snake.Unwrap(ev.Data), true)
	case EventServerError:
		v.logger.WithField("message", gjson.GetBytes(ev.Data, "message").String()).Error("Game server reported an error")
	case socket.EventDisconnect:
		v.logger.Warn("Disconnected from game server, no further updates")
	default:
		v.logger.WithField("event", ev.Name).Debug("Ignoring unknown event")
	}
}

func (v *Viewer) startGame() {
	var tick interface{} = v.opts.Tick.Seconds()
	if v.opts.TickUnit == config.TickMilliseconds {
		tick = v.opts.Tick.Milliseconds()
	}
	req := structs.StartGame{
		GridWidth:    v.opts.GridWidth,
		GridHeight:   v.opts.GridHeight,
		StartingTick: tick,
	}
	if err := v.conn.Emit(EventStartGame, req); err != nil {
		v.logger.WithError(err).Error("Failed to request game start")
		return
	}
	v.logger.WithField("grid", fmt.Sprintf("%dx%d", req.GridWidth, req.GridHeight)).Info("Requested game start")
}

// apply merges one server payload and redraws when it changed anything.
// Once the game is over the last frame stays as it is.
func (v *Viewer) apply(payload []byte, terminal bool) {
	if v.state.GameOver {
		v.logger.Debug("Ignoring update after game over")
		return
	}
	changed := snake.ApplyPayload(&v.state, payload)
	if !changed && !terminal {
		v.logger.Debug("Ignoring update without usable fields")
		return
	}
	if terminal {
		v.state.GameOver = true
		v.logger.WithField("score", v.state.Score).Info("Game over")
	}
	v.draw("update")
}

func (v *Viewer) draw(reason string) {
	snap := memimg.Snapshot{
		Session:  v.session,
		State:    v.state,
		Theme:    v.mode,
		Viewport: v.viewport,
		DrawnAt:  time.Now(),
	}
	if v.painter != nil {
		frame := v.painter.Draw(v.state, v.mode, v.viewport)
		snap.Image = frame.Image
		snap.Layout = frame.Layout
		if frame.Image == nil {
			v.logger.WithFields(log.Fields{"width": frame.Layout.Width, "height": frame.Layout.Height}).Warn("Canvas too large, frame left blank")
		}
	}
	seq := v.frames.Publish(snap)

	if v.opts.Output != "" && snap.Image != nil {
		if err := memimg.SavePNG(v.opts.Output, snap.Image); err != nil {
			v.logger.WithError(err).Warn("Failed to save frame")
		}
	}
	v.logger.WithFields(log.Fields{"reason": reason, "sequence": seq}).Debug("Redrew frame")
}

func (v *Viewer) savePreferences() {
	if v.prefs == nil {
		return
	}
	prefs := structs.Preferences{Theme: string(v.mode), Viewport: v.viewport}
	if err := v.prefs.SavePreferences(prefs); err != nil {
		v.logger.WithError(err).Warn("Failed to save preferences")
	}
}
