package scrambler

// Feedback is the Galois feedback polynomial applied when the shifted-out
// bit (optionally mixed with an injected data bit) is set.
const Feedback byte = 0xAF

// Scrambler is an 8-bit feedback shift register. With no injected data it
// produces a keystream; driven bit by bit over a byte stream it acts as a
// checksum accumulator. A Scrambler is not safe for concurrent use.
type Scrambler struct {
	state byte
}

func New(state byte) *Scrambler {
	return &Scrambler{state: state}
}

func (s *Scrambler) State() byte {
	return s.state
}

// SetState stores the low 8 bits of v.
func (s *Scrambler) SetState(v int) {
	s.state = byte(v & 0xff)
}

// Next advances the register by one step, mixing bitXor into the feedback
// decision, and returns the new state.
func (s *Scrambler) Next(bitXor bool) byte {
	lsb := s.state&1 == 1
	s.state >>= 1
	if lsb != bitXor {
		s.state ^= Feedback
	}
	return s.state
}

// Checksum feeds every bit of data, least significant first, into the
// register starting from the current state. An empty input leaves the state
// untouched and returns it.
func (s *Scrambler) Checksum(data []byte) byte {
	checksum := s.state
	for _, b := range data {
		for bit := 0; bit < 8; bit++ {
			checksum = s.Next((b>>bit)&1 == 1)
		}
	}
	return checksum
}

func (s *Scrambler) Keystream(n int) []byte {
	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		ret[i] = s.Next(false)
	}
	return ret
}

// Scramble XORs every byte of data with the next keystream byte. Applying it
// twice from the same starting state restores the input.
func (s *Scrambler) Scramble(data []byte) []byte {
	ret := make([]byte, len(data))
	for i := 0; i < len(data); i++ {
		ret[i] = data[i] ^ s.Next(false)
	}
	return ret
}
