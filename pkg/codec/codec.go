package codec

import (
	"github.com/johndoe31415/dtmfsync/pkg/dtmf"
	"github.com/johndoe31415/dtmfsync/pkg/scrambler"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Frame layout: seed (1) | scrambled payload (N) | checksum (1).
const (
	SeedLength     = 1
	ChecksumLength = 1
	FrameOverhead  = SeedLength + ChecksumLength
)

// Codec builds and validates scrambled, checksummed frames. It holds no
// per-frame state; every operation uses its own Scrambler, so one Codec may be
// shared between goroutines as long as its SeedSource is.
type Codec struct {
	seeds    SeedSource
	fallback SeedSource
	logger   zerolog.Logger
}

type Option func(c *Codec)

func WithSeedSource(src SeedSource) Option {
	return func(c *Codec) {
		c.seeds = src
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

func New(opts ...Option) *Codec {
	c := &Codec{
		fallback: NewRandomSeedSource(nil),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seeds == nil {
		c.seeds = c.fallback
	}
	return c
}

// seed never returns zero: a zero seed cannot be told apart from "no seed"
// by the decoder.
func (c *Codec) seed() byte {
	if s := c.seeds.Seed(); s != 0 {
		return s
	}
	c.logger.Warn().Msg("seed source returned zero, drawing a random seed instead")
	return c.fallback.Seed()
}

// EncodeFrame returns the wire bytes for payload.
func (c *Codec) EncodeFrame(payload []byte) []byte {
	return buildFrame(c.seed(), payload)
}

func buildFrame(seed byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+FrameOverhead)
	frame = append(frame, seed)
	frame = append(frame, scrambler.New(seed).Scramble(payload)...)
	frame = append(frame, scrambler.New(seed).Checksum(payload))
	return frame
}

// EncodePayload frames payload and maps every frame byte to two symbol pairs.
func (c *Codec) EncodePayload(payload []byte) []dtmf.SymbolPair {
	frame := c.EncodeFrame(payload)
	c.logger.Debug().Hex("frame", frame).Int("payload_len", len(payload)).Msg("encoded frame")
	return dtmf.FromBytes(frame)
}

// DecodePayload validates frame and returns the descrambled payload. Every
// failure wraps ErrInvalidFrame.
func (c *Codec) DecodePayload(frame []byte) ([]byte, error) {
	return DecodePayload(frame)
}

func DecodePayload(frame []byte) ([]byte, error) {
	if len(frame) < FrameOverhead {
		return nil, ErrFrameTooShort
	}

	seed := frame[0]
	if seed == 0 {
		return nil, ErrZeroSeed
	}

	payload := scrambler.New(seed).Scramble(frame[SeedLength : len(frame)-ChecksumLength])
	calculated := scrambler.New(seed).Checksum(payload)
	if calculated != frame[len(frame)-1] {
		return nil, ErrChecksumMismatch
	}

	return payload, nil
}
