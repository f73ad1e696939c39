package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"uartad/pkg/logic"
	"uartad/pkg/uart"
)

// Config holds the application configuration.
// Config defines the struct of the global config and the struct of the configuration file.
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	UART      UARTConfig      `yaml:"uart"`
	Source    SourceConfig    `yaml:"source"`
	Dump      DumpConfig      `yaml:"dump"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Debug     DebugConfig     `yaml:"debug"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	LogLevel   string
	ConfigFile string
}

// UARTConfig defines the frame shape options of the decoder.
// The string fields are validated against their enumerated value sets
// before a decode run starts.
type UARTConfig struct {
	BaudRate    int     `yaml:"baudrate"`
	DataBits    int     `yaml:"databits"`
	Parity      string  `yaml:"parity"`
	ParityCheck bool    `yaml:"paritycheck"`
	StopBits    float64 `yaml:"stopbits"`
	BitOrder    string  `yaml:"bitorder"`
	Format      string  `yaml:"format"`
	InvertRX    bool    `yaml:"invertrx"`
	InvertTX    bool    `yaml:"inverttx"`
}

// SourceConfig selects and configures the sample source.
// Mode "file" replays a raw capture file, mode "gpio" watches live GPIO lines.
type SourceConfig struct {
	Mode       string `yaml:"mode"`
	File       string `yaml:"file"`
	Samplerate uint64 `yaml:"samplerate"`
	RX         bool   `yaml:"rx"`
	TX         bool   `yaml:"tx"`
	Chip       string `yaml:"chip"`
	RXGPIO     int    `yaml:"rxgpio"`
	TXGPIO     int    `yaml:"txgpio"`
}

// DumpConfig holds optional output files for the binary dump rows.
type DumpConfig struct {
	RX       string `yaml:"rx"`
	TX       string `yaml:"tx"`
	Combined string `yaml:"combined"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection  string        `yaml:"connection"`
	Interval    time.Duration `yaml:"-"`
	IntervalInt int           `yaml:"interval"`
	Topic       string        `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		UART: UARTConfig{
			BaudRate:    115200,
			DataBits:    8,
			Parity:      "none",
			ParityCheck: true,
			StopBits:    1.0,
			BitOrder:    "lsb-first",
			Format:      "hex",
		},
		Source: SourceConfig{
			Mode: "gpio",
			Chip: "gpiochip0",
			RX:   true,
		},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"events":  true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Interval:   5 * time.Second,
			Topic:      "/uart/data"},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second

	// fail on invalid option values before the decode run starts
	if _, err := c.UART.Decode(); err != nil {
		return err
	}

	switch c.Source.Mode {
	case "file", "gpio":
	default:
		return fmt.Errorf("invalid source mode %q", c.Source.Mode)
	}
	if !c.Source.RX && !c.Source.TX {
		return uart.ErrNoLine
	}

	return nil
}

// Decode converts the configured option strings into an immutable uart.Config.
func (u UARTConfig) Decode() (uart.Config, error) {
	var cfg uart.Config
	var err error

	if cfg.Parity, err = uart.ParseParity(u.Parity); err != nil {
		return cfg, err
	}
	if cfg.BitOrder, err = uart.ParseBitOrder(u.BitOrder); err != nil {
		return cfg, err
	}
	if cfg.Format, err = uart.ParseFormat(u.Format); err != nil {
		return cfg, err
	}

	cfg.BaudRate = u.BaudRate
	cfg.DataBits = u.DataBits
	cfg.ParityCheck = u.ParityCheck
	cfg.StopBits = u.StopBits
	cfg.Invert[logic.RX] = u.InvertRX
	cfg.Invert[logic.TX] = u.InvertTX

	return cfg, cfg.Validate()
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
