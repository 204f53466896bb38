package memimg

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/hoshinonyaruko/snakeview/theme"
	log "github.com/sirupsen/logrus"
)

// backdropBlur 背景图模糊程度，避免干扰网格
const backdropBlur = 3.5

// Backdrops keeps optional per-theme background images in memory. Files are
// named after the theme they belong to, e.g. dark.png or light.jpg.
type Backdrops struct {
	dir string

	mu         sync.RWMutex
	images     map[theme.Mode]image.Image
	generation uint64
}

func NewBackdrops(dir string) *Backdrops {
	return &Backdrops{dir: dir, images: make(map[theme.Mode]image.Image)}
}

// Load reads every backdrop in the directory. A missing directory is not an error.
func (b *Backdrops) Load() error {
	entries, err := os.ReadDir(b.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backdrops: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := b.loadFile(filepath.Join(b.dir, entry.Name())); err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("Skipping backdrop")
		}
	}
	return nil
}

func (b *Backdrops) loadFile(path string) error {
	mode, ok := modeFromName(path)
	if !ok {
		return nil
	}
	img, err := loadImage(path)
	if err != nil {
		return err
	}
	blurred := imaging.Blur(img, backdropBlur)

	b.mu.Lock()
	b.images[mode] = blurred
	b.generation++
	b.mu.Unlock()
	log.WithField("theme", mode).Info("Loaded backdrop ", filepath.Base(path))
	return nil
}

func (b *Backdrops) remove(path string) {
	mode, ok := modeFromName(path)
	if !ok {
		return
	}
	b.mu.Lock()
	if _, exists := b.images[mode]; exists {
		delete(b.images, mode)
		b.generation++
	}
	b.mu.Unlock()
}

// Backdrop returns the image for mode and the generation it belongs to.
func (b *Backdrops) Backdrop(mode theme.Mode) (image.Image, uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	img, ok := b.images[mode]
	return img, b.generation, ok
}

// Watch reloads backdrops as files change, until ctx is done. onChange runs
// after every successful reload.
func (b *Backdrops) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create backdrop watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(b.dir); err != nil {
		return fmt.Errorf("watch %s: %w", b.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				if err := b.loadFile(event.Name); err != nil {
					// 图片可能还没写完
					log.WithError(err).WithField("file", event.Name).Debug("Backdrop not readable yet")
					continue
				}
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				b.remove(event.Name)
			default:
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("Backdrop watcher error")
		}
	}
}

func modeFromName(path string) (theme.Mode, bool) {
	base := filepath.Base(path)
	mode, err := theme.ParseMode(strings.TrimSuffix(base, filepath.Ext(base)))
	return mode, err == nil
}

func loadImage(path string) (image.Image, error) {
	return imaging.Open(path)
}
