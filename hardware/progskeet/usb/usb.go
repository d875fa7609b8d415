// Package usb connects progskeet.Handle to real device over libusb (gousb).
package usb

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/juju/errors"
	"github.com/temoto/progskeet/hardware/progskeet"
	progskeet_config "github.com/temoto/progskeet/hardware/progskeet/config"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
)

const (
	VendorID  gousb.ID = 0x1988
	ProductID gousb.ID = 0x0001

	Configuration = 1
	Interface     = 0
	EndpointOut   = 0x01
	EndpointIn    = 0x82

	// bus/address wildcard
	Any = 0xff
)

// Provider owns libusb context. Zero value is not usable, see NewProvider.
type Provider struct {
	mu  sync.Mutex
	ctx *gousb.Context
	Log *log2.Log

	Vendor  gousb.ID
	Product gousb.ID
}

type DeviceInfo struct {
	Bus     int
	Address int
	Vendor  gousb.ID
	Product gousb.ID
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("bus=%03d address=%03d id=%s:%s", d.Bus, d.Address, d.Vendor, d.Product)
}

func NewProvider(log *log2.Log) *Provider {
	return &Provider{Log: log.Or(), Vendor: VendorID, Product: ProductID}
}

// Init creates libusb context once, repeated calls are no-op.
func (self *Provider) Init() (err error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.init()
}

func (self *Provider) init() (err error) {
	if self.ctx != nil {
		return nil
	}
	// gousb panics when libusb_init fails
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("libusb init: %v", r)
		}
	}()
	self.ctx = gousb.NewContext()
	self.Log.Debugf("usb context initialized")
	return nil
}

func (self *Provider) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.ctx == nil {
		return nil
	}
	err := self.ctx.Close()
	self.ctx = nil
	return errors.Annotate(err, "usb context close")
}

func matchDevice(desc *gousb.DeviceDesc, vendor, product gousb.ID, bus, address uint8) bool {
	if desc.Vendor != vendor || desc.Product != product {
		return false
	}
	if bus != Any && desc.Bus != int(bus) {
		return false
	}
	if address != Any && desc.Address != int(address) {
		return false
	}
	return true
}

// List returns connected programmers without opening them.
func (self *Provider) List() ([]DeviceInfo, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.init(); err != nil {
		return nil, err
	}
	var list []DeviceInfo
	_, err := self.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if matchDevice(desc, self.Vendor, self.Product, Any, Any) {
			list = append(list, DeviceInfo{Bus: desc.Bus, Address: desc.Address, Vendor: desc.Vendor, Product: desc.Product})
		}
		return false
	})
	return list, errors.Annotate(err, "usb list")
}

// Open claims first matching device which could be opened and configured.
// Any (0xff) bus or address matches every value.
func (self *Provider) Open(bus, address uint8, timeout time.Duration) (*Transport, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if err := self.init(); err != nil {
		return nil, err
	}
	found := 0
	devs, openErr := self.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if matchDevice(desc, self.Vendor, self.Product, bus, address) {
			found++
			return true
		}
		return false
	})
	if found == 0 {
		return nil, errors.NotFoundf("device %s:%s bus=%d address=%d", self.Vendor, self.Product, bus, address)
	}

	var result *Transport
	errs := make([]error, 0, len(devs)+1)
	if openErr != nil {
		errs = append(errs, openErr)
	}
	for _, dev := range devs {
		if result != nil {
			_ = dev.Close()
			continue
		}
		t := &Transport{dev: dev, timeout: timeout, log: self.Log}
		if err := t.claim(); err != nil {
			errs = append(errs, errors.Annotatef(err, "bus=%d address=%d", dev.Desc.Bus, dev.Desc.Address))
			if cerr := dev.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
			continue
		}
		result = t
	}
	if result == nil {
		err := helpers.FoldErrors(errs)
		if err == nil {
			err = errors.New("open failed")
		}
		return nil, errors.Annotatef(err, "found %d but none could be opened", found)
	}
	self.Log.Infof("usb opened %s", result.Info())
	return result, nil
}

// OpenHandle is Open with bus/address from config, then progskeet.New.
func OpenHandle(p *Provider, c *progskeet_config.Config, log *log2.Log) (*progskeet.Handle, error) {
	if p == nil {
		return nil, errors.NotValidf("usb provider nil")
	}
	if c == nil {
		c = &progskeet_config.Config{}
	}
	t, err := p.Open(configSelector(c.Bus), configSelector(c.Address), c.Timeout())
	if err != nil {
		return nil, errors.Annotate(err, "progskeet open")
	}
	return progskeet.New(t, c, log)
}

// USB bus and address numbers start from 1, so config zero is wildcard.
func configSelector(x int) uint8 {
	if x <= 0 || x >= Any {
		return Any
	}
	return uint8(x)
}
