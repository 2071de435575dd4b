package cataloguesync

import (
	"fmt"
	"os"
	"time"

	"github.com/always-cache/catalogue-sync/catalogue"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration consumed by the server binary.
// All fields are optional; zero values fall back to defaults.
type FileConfig struct {
	// Port to listen on.
	Port int `yaml:"port"`
	// Number of snapshots in the rotation schedule.
	Snapshots int `yaml:"snapshots"`
	// Delay between rotation ticks, e.g. "500ms".
	Tick string `yaml:"tick"`
}

// GetFileConfig reads and parses the YAML config file.
func GetFileConfig(filename string) (FileConfig, error) {
	var config FileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// ListenPort merges the config file port with a command-line value.
// A port passed explicitly on the command line always wins, even when
// it equals the flag default; the file only fills in an unset flag.
func (c FileConfig) ListenPort(flagValue int, flagSet bool) int {
	if flagSet || c.Port == 0 {
		return flagValue
	}
	return c.Port
}

// Schedule builds the rotation schedule described by the config.
func (c FileConfig) Schedule() (catalogue.Schedule, error) {
	delay := catalogue.DefaultDelay
	if c.Tick != "" {
		parsed, err := time.ParseDuration(c.Tick)
		if err != nil {
			return catalogue.Schedule{}, fmt.Errorf("invalid tick duration %q: %w", c.Tick, err)
		}
		delay = parsed
	}
	snapshots := c.Snapshots
	if snapshots <= 0 {
		snapshots = 10
	}
	return catalogue.SampleSchedule(snapshots, delay), nil
}
