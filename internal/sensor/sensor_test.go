package sensor

import (
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeAttr(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDHT11Read(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, "in_temp_input", "21500\n")
	writeAttr(t, dir, "in_humidityrelative_input", "40200\n")

	temperature, humidity := NewDHT11(dir, discard).Read()
	if temperature != 21.5 {
		t.Errorf("temperature: got %v, want 21.5", temperature)
	}
	if humidity != 40.2 {
		t.Errorf("humidity: got %v, want 40.2", humidity)
	}
}

func TestDHT11FailedReadIsNaN(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, "in_temp_input", "21000")
	// humidity attribute missing, as when the kernel returns EIO

	temperature, humidity := NewDHT11(dir, discard).Read()
	if temperature != 21 {
		t.Errorf("temperature: got %v, want 21", temperature)
	}
	if !math.IsNaN(humidity) {
		t.Errorf("humidity: got %v, want NaN", humidity)
	}
}

func TestDHT11GarbageIsNaN(t *testing.T) {
	dir := t.TempDir()
	writeAttr(t, dir, "in_temp_input", "oops")
	writeAttr(t, dir, "in_humidityrelative_input", "")

	temperature, humidity := NewDHT11(dir, discard).Read()
	if !math.IsNaN(temperature) || !math.IsNaN(humidity) {
		t.Errorf("got (%v, %v), want (NaN, NaN)", temperature, humidity)
	}
}

func TestCRC8(t *testing.T) {
	// Datasheet example.
	if got := crc8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Errorf("got %#x, want 0x92", got)
	}
}

func TestDecodeSHT31(t *testing.T) {
	data := []byte{0x00, 0x00, 0, 0xFF, 0xFF, 0}
	data[2] = crc8(data[0:2])
	data[5] = crc8(data[3:5])

	temperature, humidity, err := decodeSHT31(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if temperature != -45 {
		t.Errorf("temperature: got %v, want -45", temperature)
	}
	if humidity != 100 {
		t.Errorf("humidity: got %v, want 100", humidity)
	}

	data[2] ^= 0xFF
	if _, _, err := decodeSHT31(data); err == nil {
		t.Error("expected crc error")
	}
}
