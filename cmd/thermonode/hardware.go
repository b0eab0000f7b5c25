package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jgoulah/thermonode/internal/config"
	"github.com/jgoulah/thermonode/internal/display"
	"github.com/jgoulah/thermonode/internal/sensor"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openSensor returns the configured sensor driver
func openSensor(cfg *config.Config, logger *slog.Logger) (sensor.Sensor, io.Closer, error) {
	switch cfg.GetSensorDriver() {
	case "dht11":
		return sensor.NewDHT11(cfg.GetSensorIIOPath(), logger), closerFunc(func() error { return nil }), nil
	case "sht31":
		s, err := sensor.NewSHT31(cfg.Sensor.I2CBus, cfg.GetSensorAddress(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sht31: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor driver: %s", cfg.Sensor.Driver)
	}
}

// openDisplay returns a canvas drawing on the configured panel
func openDisplay(cfg *config.Config) (*display.Canvas, io.Closer, error) {
	switch cfg.GetDisplayDriver() {
	case "ssd1306":
		panel, err := display.NewSSD1306(cfg.Display.I2CBus, cfg.GetDisplayAddress())
		if err != nil {
			return nil, nil, fmt.Errorf("opening ssd1306: %w", err)
		}
		return display.NewCanvas(panel), panel, nil
	case "none":
		return display.NewCanvas(display.NullPanel{}), closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown display driver: %s", cfg.Display.Driver)
	}
}
