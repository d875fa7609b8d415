package progskeet

// Transporter performs one blocking bulk transfer per call, knows nothing about protocol.
// Zero bytes with nil error means per-call timeout expired.
type Transporter interface {
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
	Close() error
}

// Resetter is implemented by transports able to bring device to power-on state
// (USB reset, set configuration, claim interface).
type Resetter interface {
	Reset() error
}
