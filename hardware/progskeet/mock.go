package progskeet

// Public API to easy create device stubs to test your code.
import (
	"bytes"
	"sync"
	"testing"

	"github.com/juju/errors"
	progskeet_config "github.com/temoto/progskeet/hardware/progskeet/config"
	"github.com/temoto/progskeet/helpers"
	"github.com/temoto/progskeet/log2"
)

// MockTransport records everything sent and answers receives from pushed data.
// Empty inbound buffer answers zero bytes, same as USB timeout.
type MockTransport struct {
	mu sync.Mutex

	Sent    bytes.Buffer
	inbound bytes.Buffer

	// max bytes per call, 0 = unlimited
	SendLimit int
	RecvLimit int

	// scripted errors, consumed one per call before transfer
	SendErrors []error
	RecvErrors []error

	// hooks run (without lock) before every call, number of call starts from 1
	OnSend    func(call int)
	OnReceive func(call int)

	SendCalls int
	RecvCalls int
	// requested length of every Receive call
	RecvSizes []int
	Resets    int
	ResetErr  error
	Closed    bool
}

func NewMockTransport() *MockTransport { return &MockTransport{} }

// Push queues bytes device will answer.
func (self *MockTransport) Push(b []byte) {
	self.mu.Lock()
	self.inbound.Write(b)
	self.mu.Unlock()
}

// PushHex is Push for test fixtures, spaces ignored.
func (self *MockTransport) PushHex(t testing.TB, s string) {
	b, err := helpers.ParseHex(s)
	if err != nil {
		t.Fatal(err)
	}
	self.Push(b)
}

// TakeSent returns and forgets sent bytes.
func (self *MockTransport) TakeSent() []byte {
	self.mu.Lock()
	defer self.mu.Unlock()
	b := append([]byte{}, self.Sent.Bytes()...)
	self.Sent.Reset()
	return b
}

func (self *MockTransport) Send(p []byte) (int, error) {
	self.mu.Lock()
	self.SendCalls++
	call, hook := self.SendCalls, self.OnSend
	self.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	if self.Closed {
		return 0, errors.New("mock transport closed")
	}
	if len(self.SendErrors) != 0 {
		err := self.SendErrors[0]
		self.SendErrors = self.SendErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	n := len(p)
	if self.SendLimit > 0 && n > self.SendLimit {
		n = self.SendLimit
	}
	self.Sent.Write(p[:n])
	return n, nil
}

func (self *MockTransport) Receive(p []byte) (int, error) {
	self.mu.Lock()
	self.RecvCalls++
	self.RecvSizes = append(self.RecvSizes, len(p))
	call, hook := self.RecvCalls, self.OnReceive
	self.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	if self.Closed {
		return 0, errors.New("mock transport closed")
	}
	if len(self.RecvErrors) != 0 {
		err := self.RecvErrors[0]
		self.RecvErrors = self.RecvErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	if self.RecvLimit > 0 && len(p) > self.RecvLimit {
		p = p[:self.RecvLimit]
	}
	n, _ := self.inbound.Read(p)
	return n, nil
}

func (self *MockTransport) Reset() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Resets++
	return self.ResetErr
}

func (self *MockTransport) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Closed = true
	return nil
}

// NewTestHandle opens Handle over fresh MockTransport and discards reset baseline traffic.
func NewTestHandle(t testing.TB, c *progskeet_config.Config) (*Handle, *MockTransport) {
	mt := NewMockTransport()
	h, err := New(mt, c, log2.NewTest(t, log2.LDebug))
	if err != nil {
		t.Fatal(errors.ErrorStack(err))
	}
	mt.TakeSent()
	return h, mt
}
