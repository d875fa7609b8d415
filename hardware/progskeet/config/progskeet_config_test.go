package progskeet_config

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	c := &Config{}
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, DefaultTxCapacity, c.Capacity())
	assert.Equal(t, DefaultRetryLimit, c.Retries())
	assert.Equal(t, DefaultRetryDelayMin, c.RetryDelayMin())
	assert.Equal(t, DefaultRetryDelayMax, c.RetryDelayMax())
	assert.Equal(t, uint8(DefaultDelay), c.Delay())
}

func TestOverrides(t *testing.T) {
	t.Parallel()
	zero := 0
	c := &Config{
		TimeoutMs:       50,
		TxCapacity:      64,
		RetryLimit:      -1,
		RetryDelayMinMs: 20,
		RetryDelayMaxMs: 5,
		DefaultDelay:    &zero,
	}
	assert.Equal(t, 50*time.Millisecond, c.Timeout())
	assert.Equal(t, 64, c.Capacity())
	assert.Equal(t, 0, c.Retries())
	assert.Equal(t, 20*time.Millisecond, c.RetryDelayMax())
	assert.Equal(t, uint8(0), c.Delay())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	intp := func(x int) *int { return &x }
	cases := []struct {
		name  string
		c     Config
		valid bool
	}{
		{"empty", Config{}, true},
		{"delay-max", Config{DefaultDelay: intp(15)}, true},
		{"delay-over", Config{DefaultDelay: intp(16)}, false},
		{"delay-negative", Config{DefaultDelay: intp(-1)}, false},
		{"bus-over", Config{Bus: 256}, false},
		{"address-negative", Config{Address: -2}, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			err := c.c.Validate()
			if c.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.IsNotValid(err), "err=%v", err)
			}
		})
	}
}
