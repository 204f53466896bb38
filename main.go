package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/snakeview/api"
	"github.com/hoshinonyaruko/snakeview/config"
	"github.com/hoshinonyaruko/snakeview/memimg"
	"github.com/hoshinonyaruko/snakeview/render"
	"github.com/hoshinonyaruko/snakeview/socket"
	"github.com/hoshinonyaruko/snakeview/sqlite"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
	"github.com/hoshinonyaruko/snakeview/view"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Initialize the configuration
	cfg, err := config.LoadConfig("./config.json")
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)
	EnsureFoldersExist(cfg.Output, cfg.Backdrops)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 展示偏好（主题、窗口大小）
	store, err := sqlite.Open(config.GetConfigValue("database").(string))
	if err != nil {
		log.WithError(err).Fatal("Failed to open preferences database")
	}
	defer store.Close()
	prefs, err := store.LoadPreferences(structs.Preferences{
		Theme:    cfg.Theme,
		Viewport: structs.Viewport{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
	})
	if err != nil {
		log.WithError(err).Warn("Using default preferences")
	}
	mode, err := theme.ParseMode(prefs.Theme)
	if err != nil {
		mode = theme.Light
	}
	// 主题文件优先于数据库
	if fileMode, err := theme.ReadFile(cfg.ThemeFile); err == nil {
		mode = fileMode
	}

	// 载入背景图到内存
	backdrops := memimg.NewBackdrops(cfg.Backdrops)
	if err := backdrops.Load(); err != nil {
		log.WithError(err).Warn("Failed to load backdrops")
	}

	var painter view.Painter
	renderer, err := render.New(render.Options{
		Padding:      cfg.Padding,
		HeaderHeight: cfg.HeaderHeight,
		Backdrops:    backdrops,
	})
	if err != nil {
		log.WithError(err).Warn("Renderer unavailable")
	} else {
		painter = renderer
	}

	var conn view.Conn
	client, err := socket.Dial(ctx, cfg.ServerURL)
	if err != nil {
		// 不重连，只展示默认画面
		log.WithError(err).Error("Could not reach game server")
	} else {
		conn = client
	}

	var output string
	if cfg.Output != "" {
		output = filepath.Join(cfg.Output, "frame.png")
	}

	frames := memimg.NewFrameStore()
	viewer := view.New(conn, painter, frames, store, view.Options{
		GridWidth:  cfg.GridWidth,
		GridHeight: cfg.GridHeight,
		Tick:       cfg.Tick(),
		TickUnit:   cfg.TickUnit,
		Theme:      mode,
		Viewport:   prefs.Viewport,
		Output:     output,
	})

	// 检测主题文件变化并重绘
	go func() {
		w := theme.NewWatcher(cfg.ThemeFile, func(m theme.Mode) {
			if err := viewer.SetTheme(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("Failed to apply theme")
			}
		})
		if err := w.Run(ctx); err != nil {
			log.WithError(err).Warn("Theme watcher stopped")
		}
	}()
	// 背景图热更新
	go func() {
		if err := backdrops.Watch(ctx, viewer.Redraw); err != nil {
			log.WithError(err).Warn("Backdrop watcher stopped")
		}
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + config.GetConfigValue("port").(string),
		Handler: api.NewRouter(viewer, frames, cfg.Output),
	}
	go func() {
		log.Info("Serving frames on ", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	viewer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
}

func setupLogging(cfg *config.AppConfig) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// EnsureFoldersExist 检查并创建必需的文件夹
func EnsureFoldersExist(folders ...string) {
	for _, folder := range folders {
		if folder == "" {
			continue
		}
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			// 文件夹不存在，尝试创建它
			if err := os.MkdirAll(folder, 0755); err != nil {
				log.WithError(err).Fatalf("Failed to create %s directory", folder)
			}
			log.Infof("Created %s directory", folder)
		}
	}
}
