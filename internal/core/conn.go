package core

// Frame is a marshaled signaling payload ready for the wire.
type Frame []byte

// ConnID identifies one attached socket, not a user: the same user may hold
// several connections (tabs, devices) with distinct ids.
type ConnID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}
