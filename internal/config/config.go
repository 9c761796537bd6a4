package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/rotorscope/internal/acquisition"
	"github.com/roman-kulish/rotorscope/internal/node"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLowFrequency  = 5645
	DefaultHighFrequency = 5945
	DefaultStep          = 2
	DefaultFastStep      = 10

	DefaultReconnectInterval = 5 * time.Second

	DefaultPlotOutput   = "rotorscope.png"
	DefaultPlotInterval = time.Second
	DefaultPlotWidth    = 1024
	DefaultPlotHeight   = 512
	DefaultPlotYMax     = 150
	DefaultPlotYStep    = 10
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Device   DeviceConfig  `yaml:"device"`
	Sweep    SweepConfig   `yaml:"sweep"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Plot     PlotConfig    `yaml:"plot"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// DeviceConfig represents the serial link to the node
type DeviceConfig struct {
	Port              string   `yaml:"port"`              // Serial device, discovered when empty
	VendorID          string   `yaml:"vendorId"`          // USB VID filter for discovery
	ProductID         string   `yaml:"productId"`         // USB PID filter for discovery
	BaudRate          int      `yaml:"baudRate"`          // 8-N-1 framing is fixed
	Timeout           Duration `yaml:"timeout"`           // Per call read/write timeout
	SettleDelay       Duration `yaml:"settleDelay"`       // Wait after opening the port
	ReconnectInterval Duration `yaml:"reconnectInterval"` // Delay between two connection attempts
}

// SweepConfig represents the sweep band and pace
type SweepConfig struct {
	Enabled  bool     `yaml:"enabled"` // Start in sweep mode rather than monitor mode
	Low      int      `yaml:"low"`
	High     int      `yaml:"high"`
	Step     int      `yaml:"step"`
	FastStep int      `yaml:"fastStep"`
	Fast     bool     `yaml:"fast"` // Sweep with FastStep
	Interval Duration `yaml:"interval"`
}

// MonitorConfig represents the fixed frequency trace
type MonitorConfig struct {
	Frequency int      `yaml:"frequency"` // Tuned on monitor start, 0 keeps the device's frequency
	Interval  Duration `yaml:"interval"`
	Samples   int      `yaml:"samples"` // Trace capacity, the window is Samples*Interval
}

// PlotConfig represents the rendered plot image
type PlotConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Output   string   `yaml:"output"`
	Interval Duration `yaml:"interval"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	YMax     int      `yaml:"yMax"`
	YStep    int      `yaml:"yStep"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Device: DeviceConfig{
			BaudRate:          node.DefaultBaudRate,
			Timeout:           NewDuration(node.DefaultTimeout),
			SettleDelay:       NewDuration(node.DefaultSettleDelay),
			ReconnectInterval: NewDuration(DefaultReconnectInterval),
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Low:      DefaultLowFrequency,
			High:     DefaultHighFrequency,
			Step:     DefaultStep,
			FastStep: DefaultFastStep,
			Interval: NewDuration(acquisition.DefaultSweepInterval),
		},
		Monitor: MonitorConfig{
			Interval: NewDuration(acquisition.DefaultMonitorInterval),
			Samples:  acquisition.DefaultMonitorSamples,
		},
		Plot: PlotConfig{
			Enabled:  true,
			Output:   DefaultPlotOutput,
			Interval: NewDuration(DefaultPlotInterval),
			Width:    DefaultPlotWidth,
			Height:   DefaultPlotHeight,
			YMax:     DefaultPlotYMax,
			YStep:    DefaultPlotYStep,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	c := Default()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Band returns the sweep band, with the fast step when fast is set
func (c *SweepConfig) Band(fast bool) acquisition.Band {
	step := c.Step
	if fast {
		step = c.FastStep
	}
	return acquisition.Band{Low: c.Low, High: c.High, Step: step}
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log level: %s", c.Settings.LogLevel)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	// Device
	if c.Device.BaudRate <= 0 {
		return fmt.Errorf("config: baud rate must be positive: %d", c.Device.BaudRate)
	}
	if err := c.Device.Timeout.Validate(); err != nil {
		return fmt.Errorf("config: invalid device timeout: %w", err)
	}
	if c.Device.SettleDelay < 0 {
		return fmt.Errorf("config: settle delay must not be negative: %s", c.Device.SettleDelay)
	}
	if err := c.Device.ReconnectInterval.Validate(); err != nil {
		return fmt.Errorf("config: invalid reconnect interval: %w", err)
	}

	// Sweep
	for _, fast := range []bool{false, true} {
		if err := c.Sweep.Band(fast).Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := c.Sweep.Interval.Validate(); err != nil {
		return fmt.Errorf("config: invalid sweep interval: %w", err)
	}

	// Monitor
	if c.Monitor.Frequency != 0 && (c.Monitor.Frequency < c.Sweep.Low || c.Monitor.Frequency > c.Sweep.High) {
		return fmt.Errorf("config: monitor frequency %d outside %d..%d", c.Monitor.Frequency, c.Sweep.Low, c.Sweep.High)
	}
	if err := c.Monitor.Interval.Validate(); err != nil {
		return fmt.Errorf("config: invalid monitor interval: %w", err)
	}
	if c.Monitor.Samples <= 0 {
		return fmt.Errorf("config: monitor samples must be positive: %d", c.Monitor.Samples)
	}

	// Plot
	if c.Plot.Enabled {
		if c.Plot.Output == "" {
			return fmt.Errorf("config: plot output is required")
		}
		if err := c.Plot.Interval.Validate(); err != nil {
			return fmt.Errorf("config: invalid plot interval: %w", err)
		}
		if c.Plot.Width < 200 || c.Plot.Height < 100 {
			return fmt.Errorf("config: plot size too small: %dx%d", c.Plot.Width, c.Plot.Height)
		}
		if c.Plot.YMax <= 0 || c.Plot.YStep <= 0 || c.Plot.YStep > c.Plot.YMax {
			return fmt.Errorf("config: invalid plot y range: max=%d, step=%d", c.Plot.YMax, c.Plot.YStep)
		}
	}

	return nil
}
