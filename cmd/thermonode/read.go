package main

import (
	"fmt"

	"github.com/jgoulah/thermonode/internal/display"
	"github.com/jgoulah/thermonode/pkg/models"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Take one sensor reading",
	Long:  `Reads the configured sensor once and prints the temperature and humidity.`,
	RunE:  runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	probe, closer, err := openSensor(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	temperature, humidity := probe.Read()
	reading := models.Reading{Temperature: temperature, Humidity: humidity}
	if !reading.Valid() {
		return fmt.Errorf("failed to read from %s sensor", cfg.GetSensorDriver())
	}

	fmt.Println(display.SensorLine(reading))
	return nil
}
