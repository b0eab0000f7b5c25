// Package display draws readings and status screens on the 128x64 OLED.
package display

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 128
	Height = 64
)

// Surface is a text-oriented drawing target. Text size multiplies the
// base font; the cursor is the top-left corner of the next string.
type Surface interface {
	Clear()
	SetTextSize(size int)
	TextBounds(s string) (w, h int)
	SetCursor(x, y int)
	Print(s string)
	Display() error
}

// Panel pushes a finished frame to the hardware
type Panel interface {
	Draw(img *image.Gray) error
}

var (
	face = basicfont.Face7x13
	ink  = image.NewUniform(color.Gray{Y: 0xFF})
)

// Canvas is an in-memory monochrome frame flushed to a Panel
type Canvas struct {
	img    *image.Gray
	panel  Panel
	size   int
	cursor image.Point
}

// NewCanvas returns a blank Width x Height canvas
func NewCanvas(panel Panel) *Canvas {
	return &Canvas{
		img:   image.NewGray(image.Rect(0, 0, Width, Height)),
		panel: panel,
		size:  1,
	}
}

// Clear blanks the frame
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Black, image.Point{}, draw.Src)
}

// SetTextSize sets the integer scale of subsequent text
func (c *Canvas) SetTextSize(size int) {
	if size < 1 {
		size = 1
	}
	c.size = size
}

// TextBounds measures s at the current text size
func (c *Canvas) TextBounds(s string) (int, int) {
	w := font.MeasureString(face, s).Ceil()
	return w * c.size, face.Height * c.size
}

// SetCursor moves the top-left corner of the next string
func (c *Canvas) SetCursor(x, y int) {
	c.cursor = image.Pt(x, y)
}

// Print draws s at the cursor and advances it horizontally
func (c *Canvas) Print(s string) {
	w, h := c.TextBounds(s)
	if w == 0 {
		return
	}

	if c.size == 1 {
		d := font.Drawer{
			Dst:  c.img,
			Src:  ink,
			Face: face,
			Dot:  fixed.P(c.cursor.X, c.cursor.Y+face.Ascent),
		}
		d.DrawString(s)
		c.cursor.X += w
		return
	}

	// Render at 1x and scale up pixel by pixel.
	src := image.NewGray(image.Rect(0, 0, w/c.size, face.Height))
	d := font.Drawer{Dst: src, Src: ink, Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(s)

	bounds := c.img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := image.Pt(c.cursor.X+x, c.cursor.Y+y)
			if !p.In(bounds) {
				continue
			}
			if src.GrayAt(x/c.size, y/c.size).Y >= 0x80 {
				c.img.SetGray(p.X, p.Y, color.Gray{Y: 0xFF})
			}
		}
	}
	c.cursor.X += w
}

// Display flushes the frame to the panel
func (c *Canvas) Display() error {
	return c.panel.Draw(c.img)
}

// Image returns the current frame
func (c *Canvas) Image() *image.Gray {
	return c.img
}

// NullPanel discards frames, for running without a screen attached
type NullPanel struct{}

// Draw implements Panel
func (NullPanel) Draw(*image.Gray) error { return nil }
