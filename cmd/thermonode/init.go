package main

import (
	"fmt"
	"os"

	"github.com/jgoulah/thermonode/internal/config"
	"github.com/spf13/cobra"
)

var (
	initHost  string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long:  `Writes a config file with the broker and certificate settings to fill in. Every other setting uses its default.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initHost, "host", "", "MQTT broker host (e.g., xxxxxxxx-ats.iot.us-west-2.amazonaws.com)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := &config.Config{
		MQTT: config.MQTTConfig{
			Host:     initHost,
			CertFile: "certs/device.pem.crt",
			KeyFile:  "certs/private.pem.key",
			CAFile:   "certs/AmazonRootCA1.pem",
		},
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
