package memimg

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/hoshinonyaruko/snakeview/render"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
)

// Snapshot is what the viewer showed after one redraw. Image is nil while
// rendering is disabled.
type Snapshot struct {
	Session  string            `json:"session"`
	Sequence uint64            `json:"sequence"`
	State    structs.GameState `json:"state"`
	Theme    theme.Mode        `json:"theme"`
	Viewport structs.Viewport  `json:"viewport"`
	Layout   render.Layout     `json:"layout"`
	DrawnAt  time.Time         `json:"drawn_at"`
	Image    image.Image       `json:"-"`
}

// FrameStore holds the latest snapshot for readers outside the event loop.
type FrameStore struct {
	mu       sync.RWMutex
	latest   Snapshot
	sequence uint64
}

func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// Publish stores s as the latest snapshot and returns its sequence number.
func (f *FrameStore) Publish(s Snapshot) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	s.Sequence = f.sequence
	s.State = s.State.Clone()
	f.latest = s
	return s.Sequence
}

// Latest returns the most recent snapshot; ok is false before the first draw.
func (f *FrameStore) Latest() (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.sequence == 0 {
		return Snapshot{}, false
	}
	s := f.latest
	s.State = s.State.Clone()
	return s, true
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}
