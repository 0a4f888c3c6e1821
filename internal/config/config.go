package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/units"
)

// Config is the root JSON configuration for the anemometer daemon.
// All fields are pointers so a partial config file only overrides the
// values it names; the Get* accessors supply defaults for the rest.
type Config struct {
	// Rose params
	ArcDegrees   *float64 `json:"arc_degrees,omitempty"`
	MaxDataCount *int     `json:"max_data_count,omitempty"`
	MaxDataAgeMs *int64   `json:"max_data_age_ms,omitempty"`
	FreqMin      *float64 `json:"freq_min,omitempty"`
	FreqMax      *float64 `json:"freq_max,omitempty"`
	FreqStep     *float64 `json:"freq_step,omitempty"`

	// Resampler params
	LagMs           *int64 `json:"lag_ms,omitempty"`
	FrameIntervalMs *int64 `json:"frame_interval_ms,omitempty"`

	// History params
	HistoryStepMs *int64 `json:"history_step_ms,omitempty"`

	// Display units
	Units *string `json:"units,omitempty"`

	// Style sheet: "speed<N>" keys declare band boundaries at N and
	// carry that band's color; "speedmax" colors the top band.
	Styles map[string]string `json:"styles,omitempty"`

	// Serial input
	SerialDevice *string `json:"serial_device,omitempty"`
	SerialBaud   *int    `json:"serial_baud,omitempty"`

	// MQTT input
	MQTTBroker *string `json:"mqtt_broker,omitempty"`
	MQTTTopic  *string `json:"mqtt_topic,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any set fields hold usable values.
func (c *Config) Validate() error {
	if c.ArcDegrees != nil {
		if *c.ArcDegrees <= 0 || *c.ArcDegrees > 360 {
			return fmt.Errorf("arc_degrees must be in (0, 360], got %f", *c.ArcDegrees)
		}
	}
	if c.MaxDataCount != nil && *c.MaxDataCount < 0 {
		return fmt.Errorf("max_data_count must be non-negative, got %d", *c.MaxDataCount)
	}
	if c.MaxDataAgeMs != nil && *c.MaxDataAgeMs < 0 {
		return fmt.Errorf("max_data_age_ms must be non-negative, got %d", *c.MaxDataAgeMs)
	}
	if c.FreqStep != nil && *c.FreqStep <= 0 {
		return fmt.Errorf("freq_step must be positive, got %f", *c.FreqStep)
	}
	if c.FreqMin != nil && c.FreqMax != nil && *c.FreqMin > *c.FreqMax {
		return fmt.Errorf("freq_min %f exceeds freq_max %f", *c.FreqMin, *c.FreqMax)
	}
	if c.HistoryStepMs != nil && *c.HistoryStepMs <= 0 {
		return fmt.Errorf("history_step_ms must be positive, got %d", *c.HistoryStepMs)
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
	}
	if c.SerialBaud != nil && *c.SerialBaud <= 0 {
		return fmt.Errorf("serial_baud must be positive, got %d", *c.SerialBaud)
	}
	// The style sheet must yield at least one band boundary if set.
	if len(c.Styles) > 0 {
		if bands := rose.DiscoverBands(c); len(bands) < 2 {
			return fmt.Errorf("styles must declare at least one speed<N> boundary")
		}
	}
	return nil
}

// Value implements rose.StyleSource over the Styles map.
func (c *Config) Value(key string) (string, bool) {
	v, ok := c.Styles[key]
	return v, ok
}

// GetArcDegrees returns the requested arc width in degrees.
func (c *Config) GetArcDegrees() float64 {
	if c.ArcDegrees == nil {
		return 20
	}
	return *c.ArcDegrees
}

// GetMaxDataCount returns the reading count cap for the rose window.
func (c *Config) GetMaxDataCount() int {
	if c.MaxDataCount == nil {
		return 1000
	}
	return *c.MaxDataCount
}

// GetMaxDataAge returns the age cap for the rose window.
func (c *Config) GetMaxDataAge() time.Duration {
	if c.MaxDataAgeMs == nil {
		return time.Hour
	}
	return time.Duration(*c.MaxDataAgeMs) * time.Millisecond
}

// GetFreqMin returns the lower clamp for the scale frequency.
func (c *Config) GetFreqMin() float64 {
	if c.FreqMin == nil {
		return 0
	}
	return *c.FreqMin
}

// GetFreqMax returns the upper clamp for the scale frequency.
func (c *Config) GetFreqMax() float64 {
	if c.FreqMax == nil {
		return rose.DefaultFreqMax
	}
	return *c.FreqMax
}

// GetFreqStep returns the scale step size as a percentage.
func (c *Config) GetFreqStep() float64 {
	if c.FreqStep == nil {
		return rose.DefaultFreqStep
	}
	return *c.FreqStep
}

// GetLag returns the resampler lag behind real time.
func (c *Config) GetLag() time.Duration {
	if c.LagMs == nil {
		return 4 * time.Second
	}
	return time.Duration(*c.LagMs) * time.Millisecond
}

// GetFrameInterval returns the resampler frame interval.
func (c *Config) GetFrameInterval() time.Duration {
	if c.FrameIntervalMs == nil {
		return 100 * time.Millisecond
	}
	return time.Duration(*c.FrameIntervalMs) * time.Millisecond
}

// GetHistoryStep returns the virtual clock step for delta encoding in
// milliseconds.
func (c *Config) GetHistoryStep() int64 {
	if c.HistoryStepMs == nil {
		return 2000
	}
	return *c.HistoryStepMs
}

// GetUnits returns the display unit for wind speeds.
func (c *Config) GetUnits() string {
	if c.Units == nil {
		return units.Knots
	}
	return *c.Units
}

// GetSerialDevice returns the serial device path, empty if unset.
func (c *Config) GetSerialDevice() string {
	if c.SerialDevice == nil {
		return ""
	}
	return *c.SerialDevice
}

// GetSerialBaud returns the serial baud rate. NMEA 0183 talkers run at
// 4800 baud.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 4800
	}
	return *c.SerialBaud
}

// GetMQTTBroker returns the MQTT broker URL, empty if unset.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopic returns the MQTT subscription topic.
func (c *Config) GetMQTTTopic() string {
	if c.MQTTTopic == nil {
		return "wind/#"
	}
	return *c.MQTTTopic
}

// Grid builds the rose grid declared by this config. Without any
// styles a single band covering all speeds is used.
func (c *Config) Grid() (rose.Grid, error) {
	bands := rose.DiscoverBands(c)
	if len(bands) == 0 {
		bands = []float64{rose.MaxBandSpeed}
	}
	return rose.NewGrid(c.GetArcDegrees(), bands)
}

// RoseConfig builds the aggregation window settings for the rose.
func (c *Config) RoseConfig() rose.Config {
	return rose.Config{
		MaxDataCount: c.GetMaxDataCount(),
		MaxDataAgeMs: c.GetMaxDataAge().Milliseconds(),
		FreqMin:      c.GetFreqMin(),
		FreqMax:      c.GetFreqMax(),
		FreqStep:     c.GetFreqStep(),
	}
}
