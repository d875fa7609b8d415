// Separate package for hardware/progskeet related config structure.
// Keeps HCL tags out of driver code and avoids import cycles with state.
package progskeet_config

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/progskeet/helpers"
)

const (
	DefaultTimeout       = 1000 * time.Millisecond
	DefaultTxCapacity    = 1024 * 1024
	DefaultRetryLimit    = 5
	DefaultRetryDelayMin = 1 * time.Millisecond
	DefaultRetryDelayMax = 100 * time.Millisecond
	DefaultDelay         = 10
	MaxDelay             = 0x0f // config byte low nibble
)

type Config struct { //nolint:maligned
	// 0 means any
	Bus     int `hcl:"bus"`
	Address int `hcl:"address"`

	TimeoutMs  int `hcl:"timeout_ms"`
	TxCapacity int `hcl:"tx_capacity"`

	// consecutive transport errors tolerated by sync, negative disables retry
	RetryLimit      int `hcl:"retry_limit"`
	RetryDelayMinMs int `hcl:"retry_delay_min_ms"`
	RetryDelayMaxMs int `hcl:"retry_delay_max_ms"`
	// consecutive zero-byte transfers tolerated by sync, 0 = unlimited
	StallLimit int `hcl:"stall_limit"`

	// reset baseline
	DefaultDelay *int `hcl:"default_delay"`
	ByteMode     bool `hcl:"byte_mode"`

	LogDebug bool `hcl:"log_debug"`
}

func (c *Config) Timeout() time.Duration {
	return helpers.IntMillisecondDefault(c.TimeoutMs, DefaultTimeout)
}

func (c *Config) Capacity() int {
	if c.TxCapacity <= 0 {
		return DefaultTxCapacity
	}
	return c.TxCapacity
}

func (c *Config) Retries() int {
	switch {
	case c.RetryLimit < 0:
		return 0
	case c.RetryLimit == 0:
		return DefaultRetryLimit
	}
	return c.RetryLimit
}

func (c *Config) RetryDelayMin() time.Duration {
	return helpers.IntMillisecondDefault(c.RetryDelayMinMs, DefaultRetryDelayMin)
}

func (c *Config) RetryDelayMax() time.Duration {
	d := helpers.IntMillisecondDefault(c.RetryDelayMaxMs, DefaultRetryDelayMax)
	if min := c.RetryDelayMin(); d < min {
		d = min
	}
	return d
}

func (c *Config) Delay() uint8 {
	if c.DefaultDelay == nil {
		return DefaultDelay
	}
	return uint8(*c.DefaultDelay)
}

// Validate reports values device or driver can not use.
func (c *Config) Validate() error {
	if c.DefaultDelay != nil && (*c.DefaultDelay < 0 || *c.DefaultDelay > MaxDelay) {
		return errors.NotValidf("device.default_delay=%d range=0..%d", *c.DefaultDelay, MaxDelay)
	}
	if c.Bus < 0 || c.Bus > 0xff {
		return errors.NotValidf("device.bus=%d", c.Bus)
	}
	if c.Address < 0 || c.Address > 0xff {
		return errors.NotValidf("device.address=%d", c.Address)
	}
	return nil
}
