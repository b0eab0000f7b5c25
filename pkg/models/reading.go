package models

import (
	"encoding/json"
	"math"
)

// Credentials holds the WiFi network the device joins
type Credentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set
func (c Credentials) Valid() bool {
	return c.SSID != "" && c.Password != ""
}

// Reading is one sensor sample paired with the time it was taken.
// A failed sensor read leaves NaN in Temperature or Humidity.
type Reading struct {
	Temperature float64
	Humidity    float64
	Date        string // M/D/YYYY
	Time        string // HH:MM:SS
}

// Valid reports whether both sensor values are numbers
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity)
}

// TelemetryMessage is the payload published to the broker
type TelemetryMessage struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
}

// NewTelemetryMessage builds the wire message for a reading
func NewTelemetryMessage(r Reading) TelemetryMessage {
	return TelemetryMessage{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Date:        r.Date,
		Time:        r.Time,
	}
}

// Marshal encodes the message as JSON
func (m TelemetryMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// LinkState is the state of a network link
type LinkState int

const (
	Disconnected LinkState = iota
	Connected
)

func (s LinkState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}
