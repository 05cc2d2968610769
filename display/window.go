package display

import (
	"context"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/zeozeozeo/gopm4/device"
)

const (
	DEFAULT_WIDTH  = 640 // Logical screen width
	DEFAULT_HEIGHT = 480 // Logical screen height
)

// An Ebitengine game presenting the frames completed by a device
type Window struct {
	Title  string
	Width  int
	Height int

	ctx        context.Context
	dev        *device.Device
	emptyImage *ebiten.Image
	vertices   []ebiten.Vertex
	indices    []uint16
	shown      uint64 // Number of the frame currently presented
}

// Returns a new window showing the frames of `dev`
func NewWindow(dev *device.Device) *Window {
	return &Window{
		Title:  "gopm4",
		Width:  DEFAULT_WIDTH,
		Height: DEFAULT_HEIGHT,
		dev:    dev,
	}
}

// Opens the window and blocks until it is closed or ctx is done. Must be
// called from the main goroutine
func (w *Window) Run(ctx context.Context) error {
	w.ctx = ctx

	ebiten.SetWindowTitle(w.Title)
	ebiten.SetWindowSize(w.Width, w.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if w.ctx != nil && w.ctx.Err() != nil {
		return ebiten.Termination
	}

	frame := w.dev.Frame()
	if frame.Number != w.shown {
		w.shown = frame.Number
		w.build(frame)
	}
	return nil
}

// Generates Ebiten vertices from the frame's triangle list
func (w *Window) build(frame device.Frame) {
	w.vertices = w.vertices[:0]
	w.indices = w.indices[:0]

	// DrawTriangles indices are 16 bit
	n := len(frame.Vertices)
	if n > 0xffff {
		n = 0xffff - 0xffff%3
	}

	for idx, vtx := range frame.Vertices[:n] {
		w.vertices = append(w.vertices, ebiten.Vertex{
			DstX:   float32(vtx.Position.X),
			DstY:   float32(vtx.Position.Y),
			SrcX:   1,
			SrcY:   1,
			ColorR: float32(vtx.Color.R) / 255,
			ColorG: float32(vtx.Color.G) / 255,
			ColorB: float32(vtx.Color.B) / 255,
			ColorA: float32(vtx.Color.A) / 255,
		})
		w.indices = append(w.indices, uint16(idx))
	}
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.emptyImage == nil {
		w.emptyImage = ebiten.NewImage(3, 3)
		w.emptyImage.Fill(color.White)
	}

	if len(w.indices) == 0 {
		return
	}

	screen.DrawTriangles(w.vertices, w.indices, w.emptyImage, &ebiten.DrawTrianglesOptions{})
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.Width, w.Height
}
