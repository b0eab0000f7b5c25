package display

import (
	"errors"
	"fmt"
	"image"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	controlCommand = 0x00
	controlData    = 0x40
	pages          = Height / 8
)

// 128x64, internal charge pump.
var ssd1306Init = []byte{
	0xAE,       // display off
	0xD5, 0x80, // clock divide
	0xA8, 0x3F, // multiplex 64
	0xD3, 0x00, // display offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing
	0xA1,       // segment remap
	0xC8,       // COM scan descending
	0xDA, 0x12, // COM pins
	0x81, 0xCF, // contrast
	0xD9, 0xF1, // precharge
	0xDB, 0x40, // VCOMH deselect
	0xA4, // resume from RAM
	0xA6, // normal, not inverted
	0x2E, // scroll off
	0xAF, // display on
}

// SSD1306 drives a 128x64 SSD1306 OLED over I2C
type SSD1306 struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// NewSSD1306 opens the I2C bus (empty name means the first one) and initializes the panel at addr
func NewSSD1306(busName string, addr uint16) (*SSD1306, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus: %w", err)
	}

	p := &SSD1306{dev: &i2c.Dev{Bus: bus, Addr: addr}, bus: bus}
	if err := p.command(ssd1306Init...); err != nil {
		bus.Close()
		return nil, fmt.Errorf("initializing panel at %#x: %w", addr, err)
	}

	return p, nil
}

func (p *SSD1306) command(cmds ...byte) error {
	return p.dev.Tx(append([]byte{controlCommand}, cmds...), nil)
}

// Draw implements Panel
func (p *SSD1306) Draw(img *image.Gray) error {
	if err := p.command(0x21, 0, Width-1, 0x22, 0, pages-1); err != nil {
		return fmt.Errorf("setting address window: %w", err)
	}

	buf := packPages(img)
	for page := 0; page < pages; page++ {
		chunk := buf[page*Width : (page+1)*Width]
		if err := p.dev.Tx(append([]byte{controlData}, chunk...), nil); err != nil {
			return fmt.Errorf("writing page %d: %w", page, err)
		}
	}

	return nil
}

// Close turns the panel off and releases the bus
func (p *SSD1306) Close() error {
	offErr := p.command(0xAE)
	if offErr != nil {
		offErr = fmt.Errorf("turning panel off: %w", offErr)
	}
	return errors.Join(offErr, p.bus.Close())
}

// packPages converts a frame to SSD1306 GDDRAM layout: one byte per
// column per 8-row page, least significant bit on top.
func packPages(img *image.Gray) []byte {
	buf := make([]byte, Width*pages)
	b := img.Bounds()
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y < 0x80 {
				continue
			}
			buf[(y/8)*Width+x] |= 1 << uint(y%8)
		}
	}
	return buf
}
