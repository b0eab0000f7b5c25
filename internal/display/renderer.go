package display

import (
	"fmt"

	"github.com/jgoulah/thermonode/pkg/models"
)

// Renderer lays out readings and status messages on a Surface
type Renderer struct {
	surface Surface
}

// NewRenderer creates a renderer drawing on s
func NewRenderer(s Surface) *Renderer {
	return &Renderer{surface: s}
}

// Render draws the date, the time in large text and the
// temperature/humidity line, each centered. The time line is skipped
// when the time is unknown and the sensor line when the reading is invalid.
func (r *Renderer) Render(reading models.Reading) error {
	s := r.surface
	s.Clear()

	s.SetTextSize(1)
	r.centered(reading.Date, 0)

	if reading.Time != "" {
		s.SetTextSize(2)
		r.centered(reading.Time, 15)
	}

	if reading.Valid() {
		s.SetTextSize(1)
		r.centered(SensorLine(reading), 50)
	}

	return s.Display()
}

// ShowMessage draws up to three lines of status text
func (r *Renderer) ShowMessage(line1, line2, line3 string) error {
	s := r.surface
	s.Clear()
	s.SetTextSize(1)
	for i, line := range []string{line1, line2, line3} {
		s.SetCursor(10, 10+15*i)
		s.Print(line)
	}
	return s.Display()
}

func (r *Renderer) centered(text string, y int) {
	w, _ := r.surface.TextBounds(text)
	r.surface.SetCursor((Width-w)/2, y)
	r.surface.Print(text)
}

// SensorLine formats the temperature/humidity line
func SensorLine(reading models.Reading) string {
	return fmt.Sprintf("T:%.2fC H:%.2f%%", reading.Temperature, reading.Humidity)
}
