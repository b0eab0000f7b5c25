package sensor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DHT11 reads a DHT11 through the Linux IIO driver (dht11 overlay). The
// kernel owns the single-wire timing; values are exposed in milli-units.
type DHT11 struct {
	dir    string
	logger *slog.Logger
}

// NewDHT11 returns a sensor reading from an IIO device directory such as
// /sys/bus/iio/devices/iio:device0
func NewDHT11(dir string, logger *slog.Logger) *DHT11 {
	return &DHT11{dir: dir, logger: logger}
}

// Read implements Sensor
func (d *DHT11) Read() (float64, float64) {
	temperature, err := d.readMilli("in_temp_input")
	if err != nil {
		d.logger.Debug("reading temperature", "error", err)
		temperature = NaN
	}

	humidity, err := d.readMilli("in_humidityrelative_input")
	if err != nil {
		d.logger.Debug("reading humidity", "error", err)
		humidity = NaN
	}

	return temperature, humidity
}

func (d *DHT11) readMilli(name string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return 0, err
	}

	raw, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}

	return float64(raw) / 1000, nil
}
