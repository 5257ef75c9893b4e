package timestamp

import (
	"context"
	"time"

	"github.com/johndoe31415/dtmfsync/pkg/codec"
	"github.com/johndoe31415/dtmfsync/pkg/frame"
	"github.com/johndoe31415/dtmfsync/pkg/util"
	"github.com/rs/zerolog"
)

var (
	_ frame.Assembler = (*Assembler)(nil)
	_ frame.Processor = (*Processor)(nil)
)

// Detection is a timestamp frame found in a byte stream. Offset is the stream
// position of the frame's seed byte.
type Detection struct {
	Offset     int64
	Timestamp  codec.Timestamp
	DetectedAt time.Time
	DecodeTime time.Duration
}

// Bounds restricts detections to a plausible time range. A zero field is
// unbounded.
type Bounds struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (b Bounds) contains(t time.Time) bool {
	if !b.NotBefore.IsZero() && t.Before(b.NotBefore) {
		return false
	}
	if !b.NotAfter.IsZero() && t.After(b.NotAfter) {
		return false
	}
	return true
}

// Assembler slides a 7 byte window over the stream and emits every window
// that validates as a timestamp frame. Receive must be called from a single
// goroutine.
type Assembler struct {
	buf        [2 * codec.TimestampFrameLength]byte
	bufIdx     int
	received   int64
	rejected   int64
	detected   int64
	bounds     Bounds
	outputChan chan<- Detection
	logger     zerolog.Logger
	ctx        context.Context
}

type AssemblerOption func(a *Assembler)

func WithBounds(b Bounds) AssemblerOption {
	return func(a *Assembler) {
		a.bounds = b
	}
}

func WithLogger(logger zerolog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

func NewAssembler(ctx context.Context, ch chan<- Detection, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		outputChan: ch,
		ctx:        ctx,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// insertByte writes b twice so the last TimestampFrameLength bytes are always
// available as one contiguous slice starting at bufIdx.
func (a *Assembler) insertByte(b byte) {
	a.buf[a.bufIdx] = b
	a.buf[a.bufIdx+codec.TimestampFrameLength] = b
	a.bufIdx = (a.bufIdx + 1) % codec.TimestampFrameLength
}

func (a *Assembler) receiveByte(b byte) {
	a.insertByte(b)
	a.received++

	if a.received < codec.TimestampFrameLength {
		return
	}

	window := a.buf[a.bufIdx : a.bufIdx+codec.TimestampFrameLength]

	var ts codec.Timestamp
	var err error
	decodeMicros := util.TimeOperationMicroseconds(func() {
		ts, err = codec.DecodeTimestamp(window)
	})
	if err != nil {
		a.rejected++
		return
	}

	if !a.bounds.contains(ts.UTC) {
		a.rejected++
		a.logger.Debug().Uint64("value", ts.Value).Msg("timestamp outside bounds, dropped")
		return
	}

	a.detected++
	select {
	case <-a.ctx.Done():
	case a.outputChan <- Detection{
		Offset:     a.received - codec.TimestampFrameLength,
		Timestamp:  ts,
		DetectedAt: time.Now().UTC(),
		DecodeTime: time.Duration(decodeMicros) * time.Microsecond,
	}:
	}
}

func (a *Assembler) Receive(buf []byte) {
	for i := 0; i < len(buf); i++ {
		if a.ctx.Err() != nil {
			return
		}
		a.receiveByte(buf[i])
	}
}

// Stats reports bytes received, windows rejected and frames detected.
func (a *Assembler) Stats() (received, rejected, detected int64) {
	return a.received, a.rejected, a.detected
}
