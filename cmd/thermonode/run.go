package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jgoulah/thermonode/internal/config"
	"github.com/jgoulah/thermonode/internal/credentials"
	"github.com/jgoulah/thermonode/internal/device"
	"github.com/jgoulah/thermonode/internal/display"
	"github.com/jgoulah/thermonode/internal/network"
	"github.com/jgoulah/thermonode/internal/provisioning"
	"github.com/jgoulah/thermonode/internal/publisher"
	"github.com/jgoulah/thermonode/internal/retry"
	"github.com/jgoulah/thermonode/internal/timesource"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the telemetry node",
	Long: `Boots the node: joins WiFi with the stored credentials (or serves the setup
form when there are none), connects to the MQTT broker and then reads, displays
and publishes sensor data until interrupted.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for boot := 1; ; boot++ {
		logger.Info("booting", "boot", boot)
		err := bootOnce(ctx, cfg, logger)
		if errors.Is(err, device.ErrRestart) {
			logger.Info("restarting")
			continue
		}
		if ctx.Err() != nil {
			logger.Info("shutting down")
			return nil
		}
		return err
	}
}

// bootOnce builds every component from scratch and runs the device until
// it stops. Nothing but the preferences database outlives a boot.
func bootOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	store := credentials.NewStore(db)

	probe, probeCloser, err := openSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer probeCloser.Close()

	canvas, panelCloser, err := openDisplay(cfg)
	if err != nil {
		return err
	}
	defer panelCloser.Close()

	pub, err := publisher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	iface := cfg.GetWiFiInterface()
	station := network.NewNMStation(iface, network.ExecRunner)
	connector := network.NewConnector(station,
		retry.Bounded(uint(cfg.GetWiFiAttempts()), cfg.GetWiFiRetryInterval()), logger)

	ap := network.NewNMAccessPoint(iface, cfg.GetPortalAddress(), network.ExecRunner)
	portal := provisioning.NewPortal(ap, cfg.GetAccessPoint(), cfg.GetListenAddr(),
		cfg.GetRestartDelay(), store, logger)

	clock := timesource.NewClient(cfg.GetNTPServer(), cfg.GetNTPOffset(),
		cfg.GetNTPUpdateInterval(), timesource.NTPQuery, logger)
	uptime := timesource.NewUptime()

	dev := device.New(device.Components{
		Sensor:      probe,
		Time:        clock,
		Screen:      display.NewRenderer(canvas),
		Credentials: store,
		Connector:   connector,
		Portal:      portal,
		Telemetry:   pub,
		Tick:        uptime.Millis,
	}, device.Options{
		AccessPoint:   cfg.GetAccessPoint(),
		PortalAddress: cfg.GetPortalAddress(),
		FailureDelay:  cfg.GetWiFiFailureDelay(),
		LoopInterval:  cfg.GetLoopInterval(),
	}, logger)

	return dev.Run(ctx)
}
