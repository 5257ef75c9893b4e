package codec

import (
	"fmt"
	"time"

	"github.com/johndoe31415/dtmfsync/pkg/dtmf"
)

const (
	TimestampPayloadLength = 5
	TimestampFrameLength   = TimestampPayloadLength + FrameOverhead

	MaxTimestamp uint64 = 1<<(8*TimestampPayloadLength) - 1
)

// Timestamp is a decoded clock reading.
type Timestamp struct {
	Value uint64
	UTC   time.Time
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d (%s)", t.Value, t.UTC.Format(time.RFC3339))
}

// TimestampPayload rounds now to the nearest second and serializes it as a
// 5 byte little-endian integer.
func TimestampPayload(now time.Time) ([]byte, error) {
	secs := now.Round(time.Second).Unix()
	if secs < 0 || uint64(secs) > MaxTimestamp {
		return nil, fmt.Errorf("%w: %d", ErrTimestampRange, secs)
	}

	payload := make([]byte, TimestampPayloadLength)
	v := uint64(secs)
	for i := 0; i < TimestampPayloadLength; i++ {
		payload[i] = byte(v >> (8 * i))
	}
	return payload, nil
}

func (c *Codec) EncodeTimestampFrame(now time.Time) ([]byte, error) {
	payload, err := TimestampPayload(now)
	if err != nil {
		return nil, err
	}
	return c.EncodeFrame(payload), nil
}

func (c *Codec) EncodeTimestamp(now time.Time) ([]dtmf.SymbolPair, error) {
	payload, err := TimestampPayload(now)
	if err != nil {
		return nil, err
	}
	return c.EncodePayload(payload), nil
}

func (c *Codec) DecodeTimestamp(frame []byte) (Timestamp, error) {
	return DecodeTimestamp(frame)
}

// DecodeTimestamp validates a 7 byte timestamp frame.
func DecodeTimestamp(frame []byte) (Timestamp, error) {
	if len(frame) < FrameOverhead {
		return Timestamp{}, ErrFrameTooShort
	}
	if len(frame) != TimestampFrameLength {
		return Timestamp{}, ErrFrameLength
	}

	payload, err := DecodePayload(frame)
	if err != nil {
		return Timestamp{}, err
	}

	var v uint64
	for i := len(payload) - 1; i >= 0; i-- {
		v = v<<8 | uint64(payload[i])
	}

	return Timestamp{
		Value: v,
		UTC:   time.Unix(int64(v), 0).UTC(),
	}, nil
}
