package api

import (
	"context"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snakeview/memimg"
	"github.com/hoshinonyaruko/snakeview/render"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
	log "github.com/sirupsen/logrus"
)

// Controller accepts presentation changes from HTTP clients.
type Controller interface {
	Resize(ctx context.Context, vp structs.Viewport) error
	SetTheme(ctx context.Context, mode theme.Mode) error
	ToggleTheme(ctx context.Context) error
}

// NewRouter wires every handler. staticDir is served under /static when set.
func NewRouter(ctrl Controller, frames *memimg.FrameStore, staticDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/ping", Ping)
	// 当前帧
	router.GET("/frame.png", FrameHandler(frames))
	router.GET("/state", StateHandler(frames))
	// 模拟窗口尺寸变化
	router.GET("/resize", ResizeHandler(ctrl))
	// 切换明暗主题
	router.GET("/theme", ThemeHandler(ctrl))
	if staticDir != "" {
		router.Static("/static", staticDir)
	}
	return router
}

func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func FrameHandler(frames *memimg.FrameStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := frames.Latest()
		if !ok || snap.Image == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No frame rendered yet"})
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Header("X-Frame-Sequence", strconv.FormatUint(snap.Sequence, 10))
		c.Header("Content-Type", "image/png")
		c.Status(http.StatusOK)
		if err := png.Encode(c.Writer, snap.Image); err != nil {
			log.WithError(err).Warn("Failed to encode frame")
		}
	}
}

type stateResponse struct {
	Session  string            `json:"session"`
	Sequence uint64            `json:"sequence"`
	State    structs.GameState `json:"state"`
	Theme    theme.Mode        `json:"theme"`
	Viewport structs.Viewport  `json:"viewport"`
	Layout   render.Layout     `json:"layout"`
	Rendered bool              `json:"rendered"`
}

func StateHandler(frames *memimg.FrameStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := frames.Latest()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Viewer has not drawn yet"})
			return
		}
		c.JSON(http.StatusOK, stateResponse{
			Session:  snap.Session,
			Sequence: snap.Sequence,
			State:    snap.State,
			Theme:    snap.Theme,
			Viewport: snap.Viewport,
			Layout:   snap.Layout,
			Rendered: snap.Image != nil,
		})
	}
}

func ResizeHandler(ctrl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		width, errW := strconv.Atoi(c.Query("width"))
		height, errH := strconv.Atoi(c.Query("height"))
		if errW != nil || errH != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid query parameters: width, height"})
			return
		}

		vp := structs.Viewport{Width: width, Height: height}
		if err := ctrl.Resize(c.Request.Context(), vp); err != nil {
			status := http.StatusInternalServerError
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Viewport updated", "viewport": vp})
	}
}

func ThemeHandler(ctrl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("mode")
		var err error
		if raw == "toggle" {
			err = ctrl.ToggleTheme(c.Request.Context())
		} else {
			mode, parseErr := theme.ParseMode(raw)
			if parseErr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be light, dark or toggle"})
				return
			}
			err = ctrl.SetTheme(c.Request.Context(), mode)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change theme"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Theme updated"})
	}
}
