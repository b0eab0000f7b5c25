// Package sensor reads temperature and humidity from the attached probe.
package sensor

import "math"

// Sensor yields one temperature (°C) and humidity (%) pair per call.
// A failed read returns NaN for the value that could not be read; there
// is no retry.
type Sensor interface {
	Read() (temperature, humidity float64)
}

// NaN is the failed-read marker
var NaN = math.NaN()
