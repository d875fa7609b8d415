package progskeet

import (
	"encoding/binary"

	"github.com/juju/errors"
)

var ErrQueueFull = errors.New("transmit queue full")

// txQueue keeps encoded commands in issue order until Sync.
// Append is all-or-nothing.
type txQueue struct {
	buf   []byte
	limit int
}

func newTxQueue(limit int) txQueue {
	initial := limit
	if initial > 64*1024 {
		initial = 64 * 1024
	}
	return txQueue{buf: make([]byte, 0, initial), limit: limit}
}

func (self *txQueue) Len() int      { return len(self.buf) }
func (self *txQueue) Free() int     { return self.limit - len(self.buf) }
func (self *txQueue) Bytes() []byte { return self.buf }
func (self *txQueue) reset()        { self.buf = self.buf[:0] }

func (self *txQueue) reserve(n int) error {
	if n > self.Free() {
		return errors.Annotatef(ErrQueueFull, "need=%d free=%d", n, self.Free())
	}
	return nil
}

func (self *txQueue) append(parts ...[]byte) error {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if err := self.reserve(total); err != nil {
		return err
	}
	for _, p := range parts {
		self.buf = append(self.buf, p...)
	}
	return nil
}

// rxDesc is where next len(dst) inbound bytes go.
// If word is set, dst is decoded little endian into it after fill.
type rxDesc struct {
	dst  []byte
	word *uint16
}

func (d *rxDesc) complete() {
	if d.word != nil {
		*d.word = binary.LittleEndian.Uint16(d.dst)
	}
}

// rxSchedule lists destinations of pending read commands in issue order.
type rxSchedule struct {
	list  []rxDesc
	total int
}

func (self *rxSchedule) Len() int { return self.total }

func (self *rxSchedule) push(ds ...rxDesc) {
	for _, d := range ds {
		if len(d.dst) == 0 {
			continue
		}
		self.list = append(self.list, d)
		self.total += len(d.dst)
	}
}

func (self *rxSchedule) reset() {
	for i := range self.list {
		self.list[i] = rxDesc{}
	}
	self.list = self.list[:0]
	self.total = 0
}
