package api

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snakeview/memimg"
	"github.com/hoshinonyaruko/snakeview/render"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	resized []structs.Viewport
	themes  []theme.Mode
	toggles int
}

func (f *fakeController) Resize(_ context.Context, vp structs.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("viewport must be positive")
	}
	f.resized = append(f.resized, vp)
	return nil
}

func (f *fakeController) SetTheme(_ context.Context, mode theme.Mode) error {
	f.themes = append(f.themes, mode)
	return nil
}

func (f *fakeController) ToggleTheme(context.Context) error {
	f.toggles++
	return nil
}

func do(router http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	router := NewRouter(&fakeController{}, memimg.NewFrameStore(), "")
	w := do(router, "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestFrameHandler(t *testing.T) {
	frames := memimg.NewFrameStore()
	router := NewRouter(&fakeController{}, frames, "")

	w := do(router, "/frame.png")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// rendering disabled: state but no picture
	frames.Publish(memimg.Snapshot{State: structs.NewGameState()})
	w = do(router, "/frame.png")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	frames.Publish(memimg.Snapshot{State: structs.NewGameState(), Image: imaging.New(12, 9, color.Black)})
	w = do(router, "/frame.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Frame-Sequence"))

	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())
}

func TestStateHandler(t *testing.T) {
	frames := memimg.NewFrameStore()
	router := NewRouter(&fakeController{}, frames, "")

	assert.Equal(t, http.StatusServiceUnavailable, do(router, "/state").Code)

	state := structs.NewGameState()
	state.Score = 11
	state.GameOver = true
	frames.Publish(memimg.Snapshot{
		Session:  "s-1",
		State:    state,
		Theme:    theme.Dark,
		Viewport: structs.Viewport{Width: 640, Height: 480},
		Layout:   render.Layout{CellSize: 21, Width: 625, Height: 415, Padding: 8},
	})

	w := do(router, "/state")
	require.Equal(t, http.StatusOK, w.Code)

	var got stateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "s-1", got.Session)
	assert.Equal(t, uint64(1), got.Sequence)
	assert.Equal(t, state, got.State)
	assert.Equal(t, theme.Dark, got.Theme)
	assert.Equal(t, 21, got.Layout.CellSize)
	assert.False(t, got.Rendered)
}

func TestResizeHandler(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   int
	}{
		{name: "valid", target: "/resize?width=800&height=600", code: http.StatusOK},
		{name: "missing height", target: "/resize?width=800", code: http.StatusBadRequest},
		{name: "not a number", target: "/resize?width=wide&height=600", code: http.StatusBadRequest},
		{name: "zero", target: "/resize?width=0&height=600", code: http.StatusBadRequest},
	}

	ctrl := &fakeController{}
	router := NewRouter(ctrl, memimg.NewFrameStore(), "")
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.code, do(router, test.target).Code)
		})
	}
	assert.Equal(t, []structs.Viewport{{Width: 800, Height: 600}}, ctrl.resized)
}

func TestThemeHandler(t *testing.T) {
	ctrl := &fakeController{}
	router := NewRouter(ctrl, memimg.NewFrameStore(), "")

	assert.Equal(t, http.StatusOK, do(router, "/theme?mode=dark").Code)
	assert.Equal(t, http.StatusOK, do(router, "/theme?mode=Light").Code)
	assert.Equal(t, http.StatusOK, do(router, "/theme?mode=toggle").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "/theme?mode=blue").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "/theme").Code)

	assert.Equal(t, []theme.Mode{theme.Dark, theme.Light}, ctrl.themes)
	assert.Equal(t, 1, ctrl.toggles)
}

func TestStaticOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.png"), []byte("png"), 0644))

	router := NewRouter(&fakeController{}, memimg.NewFrameStore(), dir)
	w := do(router, "/static/frame.png")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
}
