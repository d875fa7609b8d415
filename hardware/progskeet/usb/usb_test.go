package usb

import (
	"context"
	"testing"

	"github.com/google/gousb"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDevice(t *testing.T) {
	t.Parallel()
	desc := &gousb.DeviceDesc{Bus: 3, Address: 17, Vendor: VendorID, Product: ProductID}
	cases := []struct {
		name    string
		desc    *gousb.DeviceDesc
		bus     uint8
		address uint8
		expect  bool
	}{
		{"any", desc, Any, Any, true},
		{"exact", desc, 3, 17, true},
		{"bus-only", desc, 3, Any, true},
		{"other-bus", desc, 4, Any, false},
		{"other-address", desc, Any, 16, false},
		{"other-product", &gousb.DeviceDesc{Bus: 3, Address: 17, Vendor: VendorID, Product: 0x0002}, Any, Any, false},
		{"other-vendor", &gousb.DeviceDesc{Bus: 3, Address: 17, Vendor: 0x1d6b, Product: ProductID}, Any, Any, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expect, matchDevice(c.desc, VendorID, ProductID, c.bus, c.address))
		})
	}
}

func TestConfigSelector(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint8(Any), configSelector(0))
	assert.Equal(t, uint8(Any), configSelector(-1))
	assert.Equal(t, uint8(Any), configSelector(255))
	assert.Equal(t, uint8(1), configSelector(1))
	assert.Equal(t, uint8(254), configSelector(254))
}

func TestTransferResult(t *testing.T) {
	t.Parallel()
	n, err := transferResult(0, gousb.TransferTimedOut)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = transferResult(512, errors.Annotate(context.DeadlineExceeded, "read"))
	assert.NoError(t, err)
	assert.Equal(t, 512, n)

	n, err = transferResult(7, gousb.TransferStall)
	require.Error(t, err)
	assert.Equal(t, 7, n)

	n, err = transferResult(64, nil)
	assert.NoError(t, err)
	assert.Equal(t, 64, n)
}

func TestOpenHandleNilProvider(t *testing.T) {
	t.Parallel()
	_, err := OpenHandle(nil, nil, nil)
	assert.True(t, errors.IsNotValid(err))
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()
	d := DeviceInfo{Bus: 1, Address: 5, Vendor: VendorID, Product: ProductID}
	assert.Equal(t, "bus=001 address=005 id=1988:0001", d.String())
}
