package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffNext(t *testing.T) {
	t.Parallel()
	b := Backoff{Min: 10 * time.Millisecond, Max: 80 * time.Millisecond, K: 2}
	expect := []time.Duration{10, 20, 40, 80, 80}
	for i, e := range expect {
		assert.Equal(t, e*time.Millisecond, b.Next(), "step=%d", i)
	}
	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoffSleepUnless(t *testing.T) {
	t.Parallel()
	b := Backoff{}
	tbegin := time.Now()
	assert.True(t, b.SleepUnless(5*time.Millisecond, nil))
	assert.True(t, time.Since(tbegin) >= 5*time.Millisecond)

	calls := 0
	tbegin = time.Now()
	ok := b.SleepUnless(time.Hour, func() bool { calls++; return calls == 3 })
	assert.False(t, ok)
	assert.True(t, time.Since(tbegin) < time.Second)
}
