package progskeet

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	progskeet_config "github.com/temoto/progskeet/hardware/progskeet/config"
	"github.com/temoto/progskeet/helpers"
)

func TestReadRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		wordMode  bool
		length    int
		recvLimit int
	}{
		{false, 16, 0},
		{false, 0xffff, 4096},
		{false, 2*0xffff + 3, 7},
		{true, 2 * 0xffff, 0},
		{true, 2*0xffff + 10, 4093},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("word=%t/length=%d/limit=%d", c.wordMode, c.length, c.recvLimit), func(t *testing.T) {
			t.Parallel()
			h, mt := NewTestHandle(t, &progskeet_config.Config{ByteMode: !c.wordMode})
			mt.RecvLimit = c.recvLimit
			data := testPattern(c.length)
			buf := make([]byte, c.length)
			require.NoError(t, h.ReadAt(0x100, buf))
			mt.Push(data)
			require.NoError(t, h.Sync())
			assert.Equal(t, data, buf)
			tx, rx := h.Pending()
			assert.Equal(t, 0, tx)
			assert.Equal(t, 0, rx)
			assert.Equal(t, uint64(c.length), h.Stat().BytesReceived)
		})
	}
}

func TestPartialSend(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	mt.SendLimit = 5
	data := testPattern(64)
	require.NoError(t, h.WriteAt(0x10, data))
	require.NoError(t, h.Sync())
	expect := append(helpers.MustHex("02 100000  03 2000"), data...)
	assert.Equal(t, expect, mt.TakeSent())
	assert.Equal(t, (len(expect)+4)/5, mt.SendCalls-1)
}

func TestGetGPIODecode(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	mt.RecvLimit = 1
	var gpio, word uint16
	require.NoError(t, h.GetGPIO(&gpio))
	require.NoError(t, h.ReadWordAt(0x40, &word))
	mt.Push(helpers.MustHex("3412 cdab"))
	require.NoError(t, h.Sync())
	assert.Equal(t, uint16(0x1234), gpio)
	assert.Equal(t, uint16(0xabcd), word)
	assert.Equal(t, helpers.MustHex("01  02 400000  04 0100"), mt.TakeSent())
}

func TestRawEnqueue(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	buf := make([]byte, 2)
	require.NoError(t, h.EnqueueTx(byte(COMMAND_GET_GPIO)))
	require.NoError(t, h.EnqueueRx(buf))
	require.NoError(t, h.EnqueueRx(nil))
	_, rx := h.Pending()
	assert.Equal(t, 2, rx)
	mt.Push([]byte{0xaa, 0x55})
	require.NoError(t, h.Sync())
	assert.Equal(t, []byte{0xaa, 0x55}, buf)
}

func TestSyncEmpty(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	calls := mt.SendCalls
	st := h.Stat()
	require.NoError(t, h.Sync())
	assert.Equal(t, calls, mt.SendCalls)
	assert.Equal(t, st.Sync, h.Stat().Sync)
}

func TestCancelMidDrain(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{ByteMode: true})
	// cancel arrives while first descriptor is being received
	mt.OnReceive = func(call int) {
		if call == 1 {
			_ = h.Cancel()
		}
	}
	first := make([]byte, 4)
	second := []byte{0xee, 0xee, 0xee, 0xee}
	require.NoError(t, h.ReadAt(0, first))
	require.NoError(t, h.ReadAt(0x100, second))
	mt.Push(helpers.MustHex("01020304 05060708"))

	err := h.Sync()
	require.Error(t, err)
	assert.True(t, IsCancelled(err), errors.ErrorStack(err))
	assert.False(t, IsTransportError(err))
	assert.Equal(t, []byte{1, 2, 3, 4}, first)
	assert.Equal(t, []byte{0xee, 0xee, 0xee, 0xee}, second)
	assert.Equal(t, []int{4}, mt.RecvSizes)
	tx, rx := h.Pending()
	assert.Equal(t, 0, tx)
	assert.Equal(t, 0, rx)
	assert.Equal(t, uint32(1), h.Stat().Cancel)

	// flag consumed, cache invalidated: address goes out again
	mt.OnReceive = nil
	mt.TakeSent()
	require.NoError(t, h.SetAddr(0x100, false))
	require.NoError(t, h.Sync())
	assert.Equal(t, helpers.MustHex("02 000100"), mt.TakeSent())
}

func TestReceivePerDestination(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{ByteMode: true})
	a, b := make([]byte, 3), make([]byte, 5)
	var v uint16
	require.NoError(t, h.ReadAt(0, a))
	require.NoError(t, h.GetGPIO(&v))
	require.NoError(t, h.Read(b))
	mt.PushHex(t, "010203 3412 0405060708")
	require.NoError(t, h.Sync())
	assert.Equal(t, []int{3, 2, 5}, mt.RecvSizes)
	assert.Equal(t, []byte{1, 2, 3}, a)
	assert.Equal(t, uint16(0x1234), v)
	assert.Equal(t, []byte{4, 5, 6, 7, 8}, b)
}

func TestCancelBeforeSync(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	calls := mt.SendCalls
	require.NoError(t, h.Cancel())
	require.NoError(t, h.WriteAt(0x10, []byte{1, 2}))
	err := h.Sync()
	assert.True(t, IsCancelled(err))
	assert.Equal(t, calls, mt.SendCalls)
	assert.Equal(t, 0, mt.Sent.Len())

	require.NoError(t, h.WriteAt(0x10, []byte{1, 2}))
	require.NoError(t, h.Sync())
	assert.Equal(t, helpers.MustHex("02 100000  03 0100 0102"), mt.TakeSent())
}

func TestRetryRecovers(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{RetryLimit: 3})
	mt.SendErrors = []error{errors.New("pipe"), errors.New("pipe")}
	require.NoError(t, h.SetGPIO(0x0f0f))
	require.NoError(t, h.Sync())
	assert.Equal(t, helpers.MustHex("06 0f0f"), mt.TakeSent())
	assert.Equal(t, uint32(2), h.Stat().Retry)
	assert.Equal(t, uint32(0), h.Stat().Error)
}

func TestRetryExhausted(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{RetryLimit: 2})
	calls := mt.SendCalls
	mt.SendErrors = []error{errors.New("pipe"), errors.New("pipe"), errors.New("pipe")}
	require.NoError(t, h.SetGPIO(0x0f0f))
	err := h.Sync()
	require.Error(t, err)
	require.True(t, IsTransportError(err), errors.ErrorStack(err))
	te := errors.Cause(err).(*transportError)
	assert.Equal(t, "send", te.Phase)
	assert.Equal(t, 0, te.Done)
	assert.Equal(t, 3, te.Total)
	assert.Equal(t, calls+3, mt.SendCalls)
	st := h.Stat()
	assert.Equal(t, uint32(2), st.Retry)
	assert.Equal(t, uint32(1), st.Error)
	tx, _ := h.Pending()
	assert.Equal(t, 0, tx)

	// cache invalidated, same value goes out again
	require.NoError(t, h.SetGPIO(0x0f0f))
	require.NoError(t, h.Sync())
	assert.Equal(t, helpers.MustHex("06 0f0f"), mt.TakeSent())
}

func TestCancelDuringRetryDelay(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{RetryLimit: 3, RetryDelayMinMs: 60000, RetryDelayMaxMs: 60000})
	calls := mt.SendCalls
	mt.SendErrors = []error{errors.New("pipe")}
	require.NoError(t, h.SetGPIO(0x0f0f))
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = h.Cancel()
	}()
	tbegin := time.Now()
	err := h.Sync()
	assert.True(t, IsCancelled(err), errors.ErrorStack(err))
	assert.True(t, time.Since(tbegin) < 10*time.Second)
	assert.Equal(t, calls+1, mt.SendCalls)
	assert.Equal(t, uint32(1), h.Stat().Retry)
}

func TestReceiveErrorNoRetry(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{RetryLimit: -1})
	mt.RecvErrors = []error{errors.New("overflow")}
	var v uint16
	require.NoError(t, h.GetGPIO(&v))
	mt.Push([]byte{1, 2})
	err := h.Sync()
	require.True(t, IsTransportError(err), errors.ErrorStack(err))
	assert.Equal(t, "receive", errors.Cause(err).(*transportError).Phase)
	assert.Contains(t, err.Error(), "overflow")
	assert.Equal(t, 1, mt.RecvCalls)
	assert.Equal(t, uint16(0), v)
}

func TestStallLimit(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, &progskeet_config.Config{StallLimit: 3})
	var v uint16
	require.NoError(t, h.GetGPIO(&v))
	err := h.Sync()
	require.True(t, IsTransportError(err), errors.ErrorStack(err))
	assert.Equal(t, ErrStall, errors.Cause(errors.Cause(err).(*transportError).Err))
	assert.Equal(t, 3, mt.RecvCalls)
}

func TestSyncContextDeadline(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	// device never answers, every receive times out
	mt.OnReceive = func(int) { time.Sleep(time.Millisecond) }
	var v uint16
	require.NoError(t, h.GetGPIO(&v))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := h.SyncContext(ctx)
	require.Error(t, err)
	assert.True(t, IsCancelled(err), errors.ErrorStack(err))
	assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())

	mt.OnReceive = nil
	require.NoError(t, h.SetGPIO(1))
	require.NoError(t, h.SyncContext(context.Background()))
}

func TestSyncContextOk(t *testing.T) {
	t.Parallel()
	h, mt := NewTestHandle(t, nil)
	buf := make([]byte, 4)
	require.NoError(t, h.ReadAt(8, buf))
	mt.Push([]byte{9, 8, 7, 6})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.SyncContext(ctx))
	assert.Equal(t, []byte{9, 8, 7, 6}, buf)
	assert.Equal(t, uint32(0), h.Stat().Cancel)
}
