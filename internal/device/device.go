// Package device runs the boot sequence and the main sensing loop.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgoulah/thermonode/internal/network"
	"github.com/jgoulah/thermonode/pkg/models"
)

// ErrRestart asks the caller to discard all in-memory state and boot again.
// Only non-volatile storage survives.
var ErrRestart = errors.New("restart requested")

// Mode is the operating mode of the device
type Mode int

const (
	Booting Mode = iota
	Provisioning
	Connecting
	Operating
)

func (m Mode) String() string {
	switch m {
	case Provisioning:
		return "provisioning"
	case Connecting:
		return "connecting"
	case Operating:
		return "operating"
	default:
		return "booting"
	}
}

// Status is the state of both network links
type Status struct {
	WiFi   models.LinkState
	Broker models.LinkState
}

type (
	Sensor interface {
		Read() (temperature, humidity float64)
	}

	TimeSource interface {
		Update() (bool, error)
		FormattedDate() string
		FormattedTime() string
	}

	Screen interface {
		Render(r models.Reading) error
		ShowMessage(line1, line2, line3 string) error
	}

	CredentialStore interface {
		Load() (models.Credentials, error)
		Clear() error
	}

	Connector interface {
		Connect(ctx context.Context, creds models.Credentials) (string, error)
		Status(ctx context.Context) models.LinkState
	}

	Portal interface {
		Run(ctx context.Context) error
	}

	Telemetry interface {
		EnsureConnected(ctx context.Context) error
		Service(ctx context.Context) error
		MaybePublish(tick uint64, r models.Reading) (bool, error)
		Status() models.LinkState
	}
)

// Components are the collaborators the device owns for one boot
type Components struct {
	Sensor      Sensor
	Time        TimeSource
	Screen      Screen
	Credentials CredentialStore
	Connector   Connector
	Portal      Portal
	Telemetry   Telemetry
	Tick        func() uint64
}

// Options are the fixed settings of the boot sequence and loop
type Options struct {
	AccessPoint   string
	PortalAddress string
	FailureDelay  time.Duration
	LoopInterval  time.Duration
}

// Device is the single owner of every component for the lifetime of one boot
type Device struct {
	c      Components
	opts   Options
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mode  Mode
	creds models.Credentials
}

// New creates a device in Booting mode
func New(c Components, opts Options, logger *slog.Logger) *Device {
	return &Device{c: c, opts: opts, logger: logger, sleep: sleepCtx}
}

// Mode returns the current operating mode
func (d *Device) Mode() Mode {
	return d.mode
}

func (d *Device) setMode(m Mode) {
	if d.mode != m {
		d.logger.Info("mode change", "from", d.mode.String(), "to", m.String())
	}
	d.mode = m
}

// Boot runs the startup sequence. Missing credentials start provisioning,
// which ends in ErrRestart once the form is submitted. Failing to join the
// network wipes the credentials and returns ErrRestart. Otherwise it blocks
// until the broker accepts the connection and leaves the device Operating.
func (d *Device) Boot(ctx context.Context) error {
	d.setMode(Booting)

	creds, err := d.c.Credentials.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if !creds.Valid() {
		d.setMode(Provisioning)
		d.show("Setup WiFi", "Connect to "+d.opts.AccessPoint, "Open "+d.opts.PortalAddress)
		if err := d.c.Portal.Run(ctx); err != nil {
			return fmt.Errorf("provisioning: %w", err)
		}
		return ErrRestart
	}

	d.setMode(Connecting)
	addr, err := d.c.Connector.Connect(ctx, creds)
	if errors.Is(err, network.ErrAssociationExhausted) {
		d.logger.Error("wifi association failed, clearing credentials", "ssid", creds.SSID, "error", err)
		d.show("False Credential", "Connect to "+d.opts.AccessPoint, "Go to "+d.opts.PortalAddress)
		if err := d.sleep(ctx, d.opts.FailureDelay); err != nil {
			return err
		}
		if err := d.c.Credentials.Clear(); err != nil {
			return fmt.Errorf("clearing credentials: %w", err)
		}
		return ErrRestart
	}
	if err != nil {
		return fmt.Errorf("connecting to wifi: %w", err)
	}

	d.creds = creds
	d.show("WiFi Connected!", addr, "")

	if err := d.c.Telemetry.EnsureConnected(ctx); err != nil {
		return err
	}

	d.setMode(Operating)
	return nil
}

// Status queries both link states
func (d *Device) Status(ctx context.Context) Status {
	return Status{
		WiFi:   d.c.Connector.Status(ctx),
		Broker: d.c.Telemetry.Status(),
	}
}

// Step runs one loop iteration: re-establish links, sync time, read the
// sensor, render, publish when due and service the broker connection.
// An invalid reading skips both the render and the publish.
func (d *Device) Step(ctx context.Context) error {
	if d.mode != Operating {
		return fmt.Errorf("step in %s mode", d.mode)
	}

	status := d.Status(ctx)
	if status.WiFi == models.Disconnected {
		d.logger.Warn("wifi link down, re-associating", "ssid", d.creds.SSID)
		if _, err := d.c.Connector.Connect(ctx, d.creds); err != nil {
			if errors.Is(err, network.ErrAssociationExhausted) {
				// These credentials worked this boot; keep them.
				return ErrRestart
			}
			return fmt.Errorf("reconnecting to wifi: %w", err)
		}
	}
	if status.Broker == models.Disconnected {
		if err := d.c.Telemetry.EnsureConnected(ctx); err != nil {
			return err
		}
	}

	if _, err := d.c.Time.Update(); err != nil {
		d.logger.Debug("time update failed", "error", err)
	}

	reading := d.read()

	// A failed read leaves the last good frame on screen.
	if reading.Valid() {
		if err := d.c.Screen.Render(reading); err != nil {
			d.logger.Warn("display update failed", "error", err)
		}
	}

	if _, err := d.c.Telemetry.MaybePublish(d.c.Tick(), reading); err != nil {
		d.logger.Warn("publish failed", "error", err)
	}

	return d.c.Telemetry.Service(ctx)
}

func (d *Device) read() models.Reading {
	temperature, humidity := d.c.Sensor.Read()
	reading := models.Reading{
		Temperature: temperature,
		Humidity:    humidity,
		Date:        d.c.Time.FormattedDate(),
		Time:        d.c.Time.FormattedTime(),
	}

	d.logger.Debug("reading", "temperature_c", temperature, "humidity_pct", humidity)
	if !reading.Valid() {
		d.logger.Warn("sensor read failed")
	}
	return reading
}

// Run boots and then loops until ctx is done or a restart is needed
func (d *Device) Run(ctx context.Context) error {
	if err := d.Boot(ctx); err != nil {
		return err
	}

	for {
		if err := d.Step(ctx); err != nil {
			return err
		}
		if err := d.sleep(ctx, d.opts.LoopInterval); err != nil {
			return err
		}
	}
}

func (d *Device) show(line1, line2, line3 string) {
	if err := d.c.Screen.ShowMessage(line1, line2, line3); err != nil {
		d.logger.Warn("display update failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
