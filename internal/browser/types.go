// internal/browser/types.go
package browser

import "time"

// Config controls the headless browser used for cookie harvesting.
type Config struct {
	Headless      bool          `yaml:"headless"`
	ExecPath      string        `yaml:"exec_path,omitempty"`
	UserDataDir   string        `yaml:"user_data_dir,omitempty"`
	Timeout       time.Duration `yaml:"timeout"`
	WaitDelay     time.Duration `yaml:"wait_delay"`
	DisableImages bool          `yaml:"disable_images"`
}

// DefaultConfig returns the harvesting defaults.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		Timeout:       45 * time.Second,
		WaitDelay:     3 * time.Second,
		DisableImages: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.WaitDelay == 0 {
		c.WaitDelay = d.WaitDelay
	}
	return c
}
