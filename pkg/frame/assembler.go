package frame

// Assembler consumes a demodulated byte stream and picks frames out of it.
type Assembler interface {
	// Receive takes the next chunk of the stream. Chunks need not be aligned
	// to frame boundaries.
	Receive([]byte)
}
