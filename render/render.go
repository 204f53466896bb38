// Package render paints view-state into image frames.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/hoshinonyaruko/snakeview/structs"
	"github.com/hoshinonyaruko/snakeview/theme"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

const (
	DefaultPadding      = 8
	DefaultHeaderHeight = 64
	MinCellSize         = 4
	// MaxCanvasPixels caps Width*Height; larger layouts produce no image.
	MaxCanvasPixels = 1 << 25
)

// Layout is the pixel geometry of one frame.
type Layout struct {
	CellSize int `json:"cell_size"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	Padding  int `json:"padding"`
}

// ComputeLayout picks the largest whole cell size that fits the grid into
// the viewport below the header, never smaller than MinCellSize. The canvas is
// snapped to the grid.
func ComputeLayout(vp structs.Viewport, gridW, gridH, padding, header int) Layout {
	availW := vp.Width
	availH := vp.Height - header

	pw := padding * 2
	ph := padding * 2
	cellW := floorDiv(availW-pw, max(1, gridW))
	cellH := floorDiv(availH-ph, max(1, gridH))
	cell := max(MinCellSize, min(cellW, cellH))

	return Layout{
		CellSize: cell,
		Width:    cell*max(1, gridW) + pw,
		Height:   cell*max(1, gridH) + ph,
		Padding:  padding,
	}
}

// Fits reports whether the canvas is small enough to allocate.
func (l Layout) Fits() bool {
	if l.Width <= 0 || l.Height <= 0 {
		return false
	}
	return int64(l.Width)*int64(l.Height) <= MaxCanvasPixels
}

// Frame is one rendered picture plus what it was rendered from.
type Frame struct {
	Image  image.Image
	Layout Layout
	Theme  theme.Mode
}

// BackdropSource supplies an optional background image per theme. The
// generation changes whenever the image does.
type BackdropSource interface {
	Backdrop(mode theme.Mode) (img image.Image, generation uint64, ok bool)
}

type Options struct {
	Padding      int
	HeaderHeight int
	Backdrops    BackdropSource
}

type staticKey struct {
	layout     Layout
	gridW      int
	gridH      int
	mode       theme.Mode
	generation uint64
}

// Renderer draws frames. It is not safe for concurrent use; the viewer calls
// it from its event loop only.
type Renderer struct {
	padding   int
	header    int
	backdrops BackdropSource

	font  *truetype.Font
	faces map[int]font.Face

	// 缓存背景和网格，布局或主题变化时重画
	static    image.Image
	staticKey staticKey
}

func New(opts Options) (*Renderer, error) {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("load score font: %w", err)
	}
	if opts.Padding < 0 || opts.HeaderHeight < 0 {
		return nil, fmt.Errorf("padding %d and header %d must not be negative", opts.Padding, opts.HeaderHeight)
	}
	return &Renderer{
		padding:   opts.Padding,
		header:    opts.HeaderHeight,
		backdrops: opts.Backdrops,
		font:      f,
		faces:     make(map[int]font.Face),
	}, nil
}

// Draw renders state for the given theme and viewport. The layout is
// recomputed on every call. A layout over MaxCanvasPixels yields a frame
// without an image.
func (r *Renderer) Draw(state structs.GameState, mode theme.Mode, vp structs.Viewport) Frame {
	layout := ComputeLayout(vp, state.GridWidth, state.GridHeight, r.padding, r.header)
	if !layout.Fits() {
		return Frame{Layout: layout, Theme: mode}
	}
	palette := mode.Colors()
	cell := float64(layout.CellSize)
	pad := float64(layout.Padding)

	dc := gg.NewContext(layout.Width, layout.Height)
	dc.DrawImage(r.staticLayer(layout, state, mode, palette), 0, 0)

	// 1) 蛇
	dc.SetColor(palette.Snake)
	for _, p := range state.Snake {
		dc.DrawRectangle(pad+float64(p.X)*cell, pad+float64(p.Y)*cell, cell, cell)
	}
	dc.Fill()

	// 2) 食物
	radius := math.Max(2, math.Floor(cell/2)*0.6)
	dc.SetColor(palette.Food)
	dc.DrawCircle(pad+float64(state.Food.X)*cell+cell/2, pad+float64(state.Food.Y)*cell+cell/2, radius)
	dc.Fill()

	// 3) 分数
	dc.SetColor(palette.Text)
	dc.SetFontFace(r.face(max(12, int(math.Floor(cell*0.8)))))
	dc.DrawString(fmt.Sprintf("Score: %d", state.Score), pad, math.Max(18, pad+cell))

	return Frame{Image: dc.Image(), Layout: layout, Theme: mode}
}

func (r *Renderer) staticLayer(layout Layout, state structs.GameState, mode theme.Mode, palette theme.Palette) image.Image {
	var backdrop image.Image
	key := staticKey{layout: layout, gridW: state.GridWidth, gridH: state.GridHeight, mode: mode}
	if r.backdrops != nil {
		if img, gen, ok := r.backdrops.Backdrop(mode); ok {
			backdrop = img
			key.generation = gen
		}
	}
	if r.static != nil && r.staticKey == key {
		return r.static
	}

	dc := gg.NewContext(layout.Width, layout.Height)
	renderBackground(dc, backdrop, palette, layout)
	renderGrid(dc, palette, layout, max(1, state.GridWidth), max(1, state.GridHeight))

	r.static = dc.Image()
	r.staticKey = key
	return r.static
}

// renderBackground 铺满背景图，没有背景图时用纯色
func renderBackground(dc *gg.Context, backdrop image.Image, palette theme.Palette, layout Layout) {
	dc.SetColor(palette.Background)
	dc.Clear()
	if backdrop == nil {
		return
	}
	dc.DrawImage(imaging.Fill(backdrop, layout.Width, layout.Height, imaging.Center, imaging.Lanczos), 0, 0)
}

func renderGrid(dc *gg.Context, palette theme.Palette, layout Layout, gridW, gridH int) {
	cell := float64(layout.CellSize)
	pad := float64(layout.Padding)
	right := pad + float64(gridW)*cell
	bottom := pad + float64(gridH)*cell

	dc.SetColor(palette.Grid)
	dc.SetLineWidth(1)
	for x := 0; x <= gridW; x++ {
		px := pad + float64(x)*cell + 0.5
		dc.DrawLine(px, pad, px, bottom)
	}
	for y := 0; y <= gridH; y++ {
		py := pad + float64(y)*cell + 0.5
		dc.DrawLine(pad, py, right, py)
	}
	dc.Stroke()
}

func (r *Renderer) face(size int) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(r.font, &truetype.Options{Size: float64(size), Hinting: font.HintingFull})
	r.faces[size] = f
	return f
}

// floorDiv rounds toward negative infinity, so a viewport smaller than the
// padding yields a negative cell size that MinCellSize then clamps.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
