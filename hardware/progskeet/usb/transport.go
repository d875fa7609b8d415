package usb

import (
	"context"
	"time"

	"github.com/google/gousb"
	"github.com/juju/errors"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
)

// Transport is progskeet.Transporter and progskeet.Resetter over bulk endpoints.
type Transport struct {
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	out     *gousb.OutEndpoint
	in      *gousb.InEndpoint
	timeout time.Duration
	log     *log2.Log
}

func (self *Transport) Info() DeviceInfo {
	d := self.dev.Desc
	return DeviceInfo{Bus: d.Bus, Address: d.Address, Vendor: d.Vendor, Product: d.Product}
}

func (self *Transport) claim() error {
	if err := self.dev.SetAutoDetach(true); err != nil {
		self.log.Debugf("usb auto detach err=%v", err)
	}
	cfg, err := self.dev.Config(Configuration)
	if err != nil {
		return errors.Annotatef(err, "usb set configuration=%d", Configuration)
	}
	intf, err := cfg.Interface(Interface, 0)
	if err != nil {
		_ = cfg.Close()
		return errors.Annotatef(err, "usb claim interface=%d", Interface)
	}
	out, err := intf.OutEndpoint(EndpointOut)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return errors.Annotatef(err, "usb endpoint=%02x", EndpointOut)
	}
	in, err := intf.InEndpoint(EndpointIn)
	if err != nil {
		intf.Close()
		_ = cfg.Close()
		return errors.Annotatef(err, "usb endpoint=%02x", EndpointIn)
	}
	self.cfg, self.intf, self.out, self.in = cfg, intf, out, in
	return nil
}

func (self *Transport) release() error {
	if self.intf != nil {
		self.intf.Close()
		self.intf = nil
	}
	self.out, self.in = nil, nil
	if self.cfg != nil {
		err := self.cfg.Close()
		self.cfg = nil
		return errors.Annotate(err, "usb release configuration")
	}
	return nil
}

// timeout expired is not an error, caller sees zero bytes transferred.
func transferResult(n int, err error) (int, error) {
	switch errors.Cause(err) {
	case nil:
		return n, nil
	case gousb.TransferTimedOut, gousb.TransferCancelled, context.DeadlineExceeded:
		return n, nil
	}
	return n, err
}

func (self *Transport) Send(p []byte) (int, error) {
	if self.out == nil {
		return 0, errors.New("usb transport not claimed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.timeout)
	defer cancel()
	return transferResult(self.out.WriteContext(ctx, p))
}

func (self *Transport) Receive(p []byte) (int, error) {
	if self.in == nil {
		return 0, errors.New("usb transport not claimed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.timeout)
	defer cancel()
	return transferResult(self.in.ReadContext(ctx, p))
}

// Reset is USB port reset, then set configuration and claim interface again.
func (self *Transport) Reset() error {
	if self.dev == nil {
		return errors.New("usb transport closed")
	}
	if err := self.release(); err != nil {
		self.log.Errorf("usb reset err=%v", err)
	}
	if err := self.dev.Reset(); err != nil {
		return errors.Annotate(err, "usb reset")
	}
	return self.claim()
}

func (self *Transport) Close() error {
	if self.dev == nil {
		return nil
	}
	errs := []error{self.release(), self.dev.Close()}
	self.dev = nil
	return helpers.FoldErrors(errs)
}
