package progskeet

// deviceState mirrors what device registers will hold after the transmit queue drains.
// Invalid field forces next set command onto the wire.
type deviceState struct {
	addr                             uint32
	gpio, gpioDir                    uint16
	config                           ConfigFlag
	addrOk, gpioOk, gpioDirOk, cfgOk bool
}

func (self *deviceState) invalidate() {
	self.addrOk, self.gpioOk, self.gpioDirOk, self.cfgOk = false, false, false, false
}

func (self *deviceState) sameAddr(a uint32) bool { return self.addrOk && self.addr == a }
func (self *deviceState) sameGPIO(v uint16) bool { return self.gpioOk && self.gpio == v }
func (self *deviceState) sameGPIODir(v uint16) bool {
	return self.gpioDirOk && self.gpioDir == v
}
func (self *deviceState) sameConfig(c ConfigFlag) bool { return self.cfgOk && self.config == c }

func (self *deviceState) setAddr(a uint32)       { self.addr, self.addrOk = a, true }
func (self *deviceState) setGPIO(v uint16)       { self.gpio, self.gpioOk = v, true }
func (self *deviceState) setGPIODir(v uint16)    { self.gpioDir, self.gpioDirOk = v, true }
func (self *deviceState) setConfig(c ConfigFlag) { self.config, self.cfgOk = c, true }

func (self *deviceState) elementSize() int {
	if self.config&CONFIG_WORD != 0 {
		return 2
	}
	return 1
}

// addrTransform pins fixed address lines, e.g. virtual chip enable on Samsung K8Q.
type addrTransform struct {
	mask, add uint32
}

var addrIdentity = addrTransform{mask: ^uint32(0)}

func (t addrTransform) apply(addr uint32) uint32 {
	return ((addr & t.mask) | t.add) & addrMask
}
