package chat

// Emitter is the sink for the ordered event stream. Emit is
// fire-and-forget from the loop's perspective; implementations own
// delivery. Ordering of calls is significant and must be preserved.
type Emitter interface {
	Emit(turnIndex int, event Event)
}

// ChannelEmitter delivers packets over a channel, typically consumed by an
// HTTP streaming handler on another goroutine.
type ChannelEmitter struct {
	packets chan Packet
}

// NewChannelEmitter creates a channel emitter with the given buffer size.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{packets: make(chan Packet, buffer)}
}

// Emit sends the packet. Blocks if the buffer is full, applying natural
// backpressure to the turn loop.
func (e *ChannelEmitter) Emit(turnIndex int, event Event) {
	e.packets <- Packet{TurnIndex: turnIndex, Event: event}
}

// Packets returns the receive side of the stream.
func (e *ChannelEmitter) Packets() <-chan Packet {
	return e.packets
}

// Close closes the packet channel. Call only after the turn has finished.
func (e *ChannelEmitter) Close() {
	close(e.packets)
}

var _ Emitter = (*ChannelEmitter)(nil)
