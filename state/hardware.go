package state

import (
	"github.com/juju/errors"
	"github.com/temoto/progskeet/hardware/progskeet"
	"github.com/temoto/progskeet/hardware/progskeet/usb"
)

// Progskeet opens device from config on first call.
func (g *Global) Progskeet() (*progskeet.Handle, error) {
	var err error

	g.initProgskeetOnce.Do(func() {
		defer recoverFatal(g.Log) // fix sync.Once silent panic

		g.lk.Lock()
		defer g.lk.Unlock()

		// This may only be already set by NewTestContext()
		if g.Hardware.Progskeet != nil {
			g.cancelOnStop(g.Hardware.Progskeet)
			return
		}
		if g.Hardware.Usb == nil {
			g.Hardware.Usb = usb.NewProvider(g.Log)
		}
		var h *progskeet.Handle
		h, err = usb.OpenHandle(g.Hardware.Usb, &g.Config.Device, g.Log)
		if err != nil {
			err = errors.Annotatef(err, "config: device=%#v", g.Config.Device)
			return
		}
		g.Hardware.Progskeet = h
		g.cancelOnStop(h)
	})

	if err == nil && g.Hardware.Progskeet == nil {
		err = errors.Errorf("progskeet init failed earlier")
	}
	return g.Hardware.Progskeet, err
}
