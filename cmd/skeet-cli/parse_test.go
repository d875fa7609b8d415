package main

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/state"
)

func TestParseLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		line   string
		push   string
		expect string
	}{
		{"empty", "  ", "", ""},
		{"write-read", "w@10:0102 r@20:2 g? g+0001", "aabb 3412", "02 100000  03 0200 0102  02 200000  04 0200  01  06 0100"},
		{"addr", "ai=0x800 w:ff a=800", "", "02 000880  03 0100 ff  02 000800"},
		{"config", "cfg=1a data=beef", "", "05 1a  03 0100 efbe"},
		{"xform", "xform=ffff:400000 a=12345", "", "02 452340"},
		{"gpio", "gd=00ff g=0003 g-0001 wg=0080:0080", "", "07 ff00  06 0300  06 0200  08 8000 8000"},
		{"wait", "wait=20ns", "", "09 02"},
		{"loop", "g+1 g-1 loop=3", "", "06 0100 06 0000  06 0100 06 0000  06 0100 06 0000"},
		{"host-sleep", "s1 sync stat", "", ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			ctx, _, mt := state.NewTestContext(t, `device { byte_mode = true }`)
			mt.PushHex(t, c.push)
			d, err := parseLine(ctx, c.line)
			require.NoError(t, err, errors.ErrorStack(err))
			require.NoError(t, d.Do(ctx), errors.ErrorStack(err))
			assert.Equal(t, helpers.MustHex(c.expect), mt.TakeSent())
		})
	}
}

func TestParseLineError(t *testing.T) {
	t.Parallel()
	ctx, _, _ := state.NewTestContext(t, "")
	for _, line := range []string{
		"bogus",
		"loop=1 loop=2",
		"loop=x",
		"a=zz",
		"w@10",
		"r:x",
		"wg=10000:1",
		"wg=80/80",
		"xform=ffff/400000",
		"wait=soon",
		"cfg=100",
	} {
		_, err := parseLine(ctx, line)
		assert.Error(t, err, "line=%s", line)
	}
	d, err := parseLine(ctx, "help")
	require.NoError(t, err)
	assert.Equal(t, "help", d.String())
}
