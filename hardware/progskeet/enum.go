package progskeet

import "fmt"

type Command_t byte

const (
	COMMAND_GET_GPIO     Command_t = 0x01
	COMMAND_SET_ADDR     Command_t = 0x02
	COMMAND_WRITE_CYCLE  Command_t = 0x03
	COMMAND_READ_CYCLE   Command_t = 0x04
	COMMAND_SET_CONFIG   Command_t = 0x05
	COMMAND_SET_GPIO     Command_t = 0x06
	COMMAND_SET_GPIO_DIR Command_t = 0x07
	COMMAND_WAIT_GPIO    Command_t = 0x08
	COMMAND_NOP          Command_t = 0x09
)

func (c Command_t) String() string {
	switch c {
	case COMMAND_GET_GPIO:
		return "GET_GPIO"
	case COMMAND_SET_ADDR:
		return "SET_ADDR"
	case COMMAND_WRITE_CYCLE:
		return "WRITE_CYCLE"
	case COMMAND_READ_CYCLE:
		return "READ_CYCLE"
	case COMMAND_SET_CONFIG:
		return "SET_CONFIG"
	case COMMAND_SET_GPIO:
		return "SET_GPIO"
	case COMMAND_SET_GPIO_DIR:
		return "SET_GPIO_DIR"
	case COMMAND_WAIT_GPIO:
		return "WAIT_GPIO"
	case COMMAND_NOP:
		return "NOP"
	}
	return fmt.Sprintf("Command_t(%02x)", byte(c))
}

// Config byte layout: low nibble is strobe delay, high bits are mode flags.
type ConfigFlag uint8

const (
	CONFIG_DELAY_MASK ConfigFlag = 0x0f
	CONFIG_WORD       ConfigFlag = 1 << 4
	CONFIG_TRISTATE   ConfigFlag = 1 << 5
	CONFIG_WAIT_READY ConfigFlag = 1 << 6

	configFlagsMask = CONFIG_WORD | CONFIG_TRISTATE | CONFIG_WAIT_READY
)

func (f ConfigFlag) String() string {
	s := fmt.Sprintf("delay=%d", uint8(f&CONFIG_DELAY_MASK))
	if f&CONFIG_WORD != 0 {
		s += "+word"
	}
	if f&CONFIG_TRISTATE != 0 {
		s += "+tristate"
	}
	if f&CONFIG_WAIT_READY != 0 {
		s += "+ready"
	}
	return s
}

const (
	ADDR_AUTO_INC uint32 = 1 << 23
	// address lines, bit 23 is reserved for ADDR_AUTO_INC
	addrMask uint32 = ADDR_AUTO_INC - 1
)

// Protocol count fields.
const (
	countSentinel    = 0xffff // counted write/read, one full chunk
	nopCountSentinel = 0xff
)

// Delay tick is 1/48 us.
const (
	TicksPerUs     = 48
	TicksPerMs     = 47940
	TicksPerSecond = 47940000
)
