package atomic_clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	t.Parallel()
	const delta = 100 * time.Millisecond
	var c Clock
	assert.True(t, c.IsZero())
	assert.True(t, c.Time().IsZero())

	tim := time.Now()
	c.Set(tim)
	assert.Equal(t, tim.UnixNano(), c.UnixNano())
	assert.Equal(t, tim.UnixNano(), c.Time().UnixNano())

	c.SetNow()
	assert.False(t, c.IsZero())
	assert.True(t, Since(&c) < delta)
}

func TestStamp(t *testing.T) {
	t.Parallel()
	var begin, end Clock
	begin.Set(time.Now().Add(-time.Second))
	d := end.Stamp(&begin)
	assert.InDelta(t, float64(time.Second), float64(d), float64(100*time.Millisecond))
	assert.Equal(t, d, end.Sub(&begin))
}
