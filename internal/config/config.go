package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the device configuration
type Config struct {
	LogLevel     string             `yaml:"log_level,omitempty"`
	LoopInterval time.Duration      `yaml:"loop_interval,omitempty"`
	Sensor       SensorConfig       `yaml:"sensor"`
	Display      DisplayConfig      `yaml:"display"`
	NTP          NTPConfig          `yaml:"ntp"`
	WiFi         WiFiConfig         `yaml:"wifi"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
}

// SensorConfig selects the humidity/temperature sensor driver
type SensorConfig struct {
	Driver  string `yaml:"driver,omitempty"`   // "dht11" or "sht31"
	IIOPath string `yaml:"iio_path,omitempty"` // e.g., "/sys/bus/iio/devices/iio:device0"
	I2CBus  string `yaml:"i2c_bus,omitempty"`
	Address uint16 `yaml:"address,omitempty"`
}

// DisplayConfig holds the OLED panel settings
type DisplayConfig struct {
	Driver  string `yaml:"driver,omitempty"` // "ssd1306" or "none"
	I2CBus  string `yaml:"i2c_bus,omitempty"`
	Address uint16 `yaml:"address,omitempty"`
}

// NTPConfig holds the time sync settings
type NTPConfig struct {
	Server         string        `yaml:"server,omitempty"`
	OffsetSeconds  *int          `yaml:"offset_seconds,omitempty"` // nil means -28800
	UpdateInterval time.Duration `yaml:"update_interval,omitempty"`
}

// WiFiConfig holds station settings
type WiFiConfig struct {
	Interface     string        `yaml:"interface,omitempty"`
	Attempts      int           `yaml:"attempts,omitempty"`
	RetryInterval time.Duration `yaml:"retry_interval,omitempty"`
	FailureDelay  time.Duration `yaml:"failure_delay,omitempty"`
}

// ProvisioningConfig holds the captive form settings
type ProvisioningConfig struct {
	AccessPoint   string        `yaml:"access_point,omitempty"`
	ListenAddr    string        `yaml:"listen_addr,omitempty"`
	PortalAddress string        `yaml:"portal_address,omitempty"` // shown on the display
	RestartDelay  time.Duration `yaml:"restart_delay,omitempty"`
}

// MQTTConfig holds the broker connection settings
type MQTTConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port,omitempty"`
	Topic           string        `yaml:"topic,omitempty"`
	ClientID        string        `yaml:"client_id,omitempty"` // random when empty
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	CAFile          string        `yaml:"ca_file"`
	PublishInterval time.Duration `yaml:"publish_interval,omitempty"`
	RetryInterval   time.Duration `yaml:"retry_interval,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate checks the settings the device cannot run without
func (c *Config) Validate() error {
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt host is required")
	}
	if c.MQTT.CertFile == "" || c.MQTT.KeyFile == "" || c.MQTT.CAFile == "" {
		return fmt.Errorf("mqtt cert_file, key_file and ca_file are required")
	}
	switch c.GetSensorDriver() {
	case "dht11", "sht31":
	default:
		return fmt.Errorf("unknown sensor driver: %s (available: dht11, sht31)", c.Sensor.Driver)
	}
	switch c.GetDisplayDriver() {
	case "ssd1306", "none":
	default:
		return fmt.Errorf("unknown display driver: %s (available: ssd1306, none)", c.Display.Driver)
	}
	return nil
}

// GetLoopInterval returns the pause between loop iterations (default 500ms)
func (c *Config) GetLoopInterval() time.Duration {
	if c.LoopInterval <= 0 {
		return 500 * time.Millisecond
	}
	return c.LoopInterval
}

// GetSensorDriver returns the sensor driver name (default dht11)
func (c *Config) GetSensorDriver() string {
	if c.Sensor.Driver == "" {
		return "dht11"
	}
	return c.Sensor.Driver
}

// GetSensorIIOPath returns the IIO device directory of the DHT11
func (c *Config) GetSensorIIOPath() string {
	if c.Sensor.IIOPath == "" {
		return "/sys/bus/iio/devices/iio:device0"
	}
	return c.Sensor.IIOPath
}

// GetSensorAddress returns the I2C address of the SHT31 (default 0x44)
func (c *Config) GetSensorAddress() uint16 {
	if c.Sensor.Address == 0 {
		return 0x44
	}
	return c.Sensor.Address
}

// GetDisplayDriver returns the panel driver name (default ssd1306)
func (c *Config) GetDisplayDriver() string {
	if c.Display.Driver == "" {
		return "ssd1306"
	}
	return c.Display.Driver
}

// GetDisplayAddress returns the I2C address of the panel (default 0x3C)
func (c *Config) GetDisplayAddress() uint16 {
	if c.Display.Address == 0 {
		return 0x3C
	}
	return c.Display.Address
}

// GetNTPServer returns the time server (default pool.ntp.org)
func (c *Config) GetNTPServer() string {
	if c.NTP.Server == "" {
		return "pool.ntp.org"
	}
	return c.NTP.Server
}

// GetNTPOffset returns the fixed offset applied to UTC (default -8h)
func (c *Config) GetNTPOffset() time.Duration {
	if c.NTP.OffsetSeconds == nil {
		return -28800 * time.Second
	}
	return time.Duration(*c.NTP.OffsetSeconds) * time.Second
}

// GetNTPUpdateInterval returns how often the time server is queried (default 60s)
func (c *Config) GetNTPUpdateInterval() time.Duration {
	if c.NTP.UpdateInterval <= 0 {
		return 60 * time.Second
	}
	return c.NTP.UpdateInterval
}

// GetWiFiInterface returns the wireless interface name (default wlan0)
func (c *Config) GetWiFiInterface() string {
	if c.WiFi.Interface == "" {
		return "wlan0"
	}
	return c.WiFi.Interface
}

// GetWiFiAttempts returns the number of association checks (default 30)
func (c *Config) GetWiFiAttempts() int {
	if c.WiFi.Attempts <= 0 {
		return 30
	}
	return c.WiFi.Attempts
}

// GetWiFiRetryInterval returns the pause between association checks (default 500ms)
func (c *Config) GetWiFiRetryInterval() time.Duration {
	if c.WiFi.RetryInterval <= 0 {
		return 500 * time.Millisecond
	}
	return c.WiFi.RetryInterval
}

// GetWiFiFailureDelay returns how long the failure screen stays up before credentials are wiped (default 5s)
func (c *Config) GetWiFiFailureDelay() time.Duration {
	if c.WiFi.FailureDelay <= 0 {
		return 5 * time.Second
	}
	return c.WiFi.FailureDelay
}

// GetAccessPoint returns the provisioning network name (default ESP32-Setup)
func (c *Config) GetAccessPoint() string {
	if c.Provisioning.AccessPoint == "" {
		return "ESP32-Setup"
	}
	return c.Provisioning.AccessPoint
}

// GetListenAddr returns the provisioning HTTP listen address (default :80)
func (c *Config) GetListenAddr() string {
	if c.Provisioning.ListenAddr == "" {
		return ":80"
	}
	return c.Provisioning.ListenAddr
}

// GetPortalAddress returns the address users open during provisioning (default 192.168.4.1)
func (c *Config) GetPortalAddress() string {
	if c.Provisioning.PortalAddress == "" {
		return "192.168.4.1"
	}
	return c.Provisioning.PortalAddress
}

// GetRestartDelay returns the pause between saving credentials and restarting (default 2s)
func (c *Config) GetRestartDelay() time.Duration {
	if c.Provisioning.RestartDelay <= 0 {
		return 2 * time.Second
	}
	return c.Provisioning.RestartDelay
}

// GetMQTTPort returns the broker port (default 8883)
func (c *Config) GetMQTTPort() int {
	if c.MQTT.Port <= 0 {
		return 8883
	}
	return c.MQTT.Port
}

// GetMQTTTopic returns the telemetry topic (default sensor/data)
func (c *Config) GetMQTTTopic() string {
	if c.MQTT.Topic == "" {
		return "sensor/data"
	}
	return c.MQTT.Topic
}

// GetPublishInterval returns the telemetry interval (default 1 minute)
func (c *Config) GetPublishInterval() time.Duration {
	if c.MQTT.PublishInterval <= 0 {
		return time.Minute
	}
	return c.MQTT.PublishInterval
}

// GetMQTTRetryInterval returns the pause between broker connect attempts (default 5s)
func (c *Config) GetMQTTRetryInterval() time.Duration {
	if c.MQTT.RetryInterval <= 0 {
		return 5 * time.Second
	}
	return c.MQTT.RetryInterval
}
