package sensor

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// SHT31 reads a Sensirion SHT31-D over I2C
type SHT31 struct {
	dev    *i2c.Dev
	bus    i2c.BusCloser
	logger *slog.Logger
}

// NewSHT31 opens the I2C bus (empty name means the first one) and returns the sensor at addr
func NewSHT31(busName string, addr uint16, logger *slog.Logger) (*SHT31, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus: %w", err)
	}

	return &SHT31{
		dev:    &i2c.Dev{Bus: bus, Addr: addr},
		bus:    bus,
		logger: logger,
	}, nil
}

// Read implements Sensor. Both values come from one measurement, so a
// failed transfer invalidates both.
func (s *SHT31) Read() (float64, float64) {
	temperature, humidity, err := s.measure()
	if err != nil {
		s.logger.Debug("reading sht31", "error", err)
		return NaN, NaN
	}
	return temperature, humidity
}

func (s *SHT31) measure() (float64, float64, error) {
	// Single shot, high repeatability, clock stretching enabled.
	if err := s.dev.Tx([]byte{0x2C, 0x06}, nil); err != nil {
		return 0, 0, fmt.Errorf("sending command: %w", err)
	}

	time.Sleep(15 * time.Millisecond)

	data := make([]byte, 6)
	if err := s.dev.Tx(nil, data); err != nil {
		return 0, 0, fmt.Errorf("reading data: %w", err)
	}

	return decodeSHT31(data)
}

// decodeSHT31 converts a raw 6-byte measurement, checking both CRCs
func decodeSHT31(data []byte) (float64, float64, error) {
	if len(data) != 6 {
		return 0, 0, fmt.Errorf("short measurement: %d bytes", len(data))
	}
	if crc8(data[0:2]) != data[2] {
		return 0, 0, fmt.Errorf("temperature crc mismatch")
	}
	if crc8(data[3:5]) != data[5] {
		return 0, 0, fmt.Errorf("humidity crc mismatch")
	}

	tempRaw := binary.BigEndian.Uint16(data[0:2])
	humRaw := binary.BigEndian.Uint16(data[3:5])

	temperature := float64(tempRaw)*175.0/65535.0 - 45.0
	humidity := float64(humRaw) * 100.0 / 65535.0

	return temperature, humidity, nil
}

// crc8 is the Sensirion CRC (poly 0x31, init 0xFF)
func crc8(b []byte) byte {
	crc := byte(0xFF)
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Close releases the I2C bus
func (s *SHT31) Close() error {
	return s.bus.Close()
}
