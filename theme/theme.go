package theme

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode accepts "light" or "dark" in any case, surrounded by whitespace.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

func (m Mode) Toggle() Mode {
	if m == Dark {
		return Light
	}
	return Dark
}

// Palette is the set of colors one frame is painted with.
type Palette struct {
	Background color.RGBA
	Grid       color.RGBA
	Snake      color.RGBA
	Food       color.RGBA
	Text       color.RGBA
}

var (
	lightPalette = Palette{
		Background: hex(0xFFFFFF),
		Grid:       hex(0xE5E7EB),
		Snake:      hex(0x059669),
		Food:       hex(0xDC2626),
		Text:       hex(0x0F172A),
	}
	darkPalette = Palette{
		Background: hex(0x0B0B0C),
		Grid:       hex(0x1F2937),
		Snake:      hex(0x34D399),
		Food:       hex(0xF87171),
		Text:       hex(0xF8FAFC),
	}
)

// Colors returns the palette for m. Unknown modes paint light.
func (m Mode) Colors() Palette {
	if m == Dark {
		return darkPalette
	}
	return lightPalette
}

func hex(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

// ReadFile reads the mode stored in path.
func ReadFile(path string) (Mode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return ParseMode(string(data))
}

// Watcher reports theme changes written to a file, the way a page observes
// the class list of its root element.
type Watcher struct {
	path     string
	onChange func(Mode)
}

func NewWatcher(path string, onChange func(Mode)) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file are seen too.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create theme watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			mode, err := ReadFile(w.path)
			if err != nil {
				// 文件可能正在被写入，等下一次事件
				log.WithError(err).WithField("file", w.path).Warn("Ignoring theme file change")
				continue
			}
			w.onChange(mode)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("Theme watcher error")
		}
	}
}
