package timestamp

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/johndoe31415/dtmfsync/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const detectionBufferLength = 16

// Sink receives every detection the Processor accepts.
type Sink func(Detection) error

type Processor struct {
	detectionChan <-chan Detection
	source        string
	sink          Sink
	writeAPI      api.WriteAPI
	logger        zerolog.Logger
	count         int
}

type ProcessorOption func(p *Processor)

func WithSink(sink Sink) ProcessorOption {
	return func(p *Processor) {
		p.sink = sink
	}
}

func WithWriteAPI(writeAPI api.WriteAPI) ProcessorOption {
	return func(p *Processor) {
		p.writeAPI = writeAPI
	}
}

func WithProcessorLogger(logger zerolog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

func NewProcessor(source string, ch <-chan Detection, opts ...ProcessorOption) *Processor {
	p := &Processor{
		detectionChan: ch,
		source:        source,
		writeAPI:      &util.MockWriteAPI{},
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs until ctx is done or the detection channel is closed. A closed
// channel is a clean shutdown and returns nil.
func (p *Processor) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case det, ok := <-p.detectionChan:
			if !ok {
				p.logger.Debug().Int("detections", p.count).Msg("detection channel closed")
				return nil
			}
			if err := p.process(det); err != nil {
				return err
			}
		}
	}
}

func (p *Processor) process(det Detection) error {
	p.count++

	p.logger.Info().
		Str("source", p.source).
		Int64("offset", det.Offset).
		Uint64("value", det.Timestamp.Value).
		Time("utc", det.Timestamp.UTC).
		Msg("timestamp frame detected")

	p.writeAPI.WritePoint(influxdb2.NewPoint("dtmfsync.frame.detected",
		map[string]string{
			"source": p.source,
		},
		map[string]interface{}{
			"value":     int64(det.Timestamp.Value),
			"offset":    det.Offset,
			"decode_us": det.DecodeTime.Microseconds(),
		}, det.DetectedAt))

	if p.sink != nil {
		return p.sink(det)
	}
	return nil
}

func (p *Processor) Count() int {
	return p.count
}

// Scan feeds chunks through an Assembler into a Processor. It returns once
// chunks is closed and every detection has been processed, or on the first
// error.
func Scan(ctx context.Context, source string, chunks <-chan []byte, aopts []AssemblerOption, popts ...ProcessorOption) (int, error) {
	eg, ctx := errgroup.WithContext(ctx)

	detections := make(chan Detection, detectionBufferLength)
	proc := NewProcessor(source, detections, popts...)
	asm := NewAssembler(ctx, detections, aopts...)

	eg.Go(func() error {
		return proc.Start(ctx)
	})

	eg.Go(func() error {
		defer close(detections)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunk, ok := <-chunks:
				if !ok {
					return nil
				}
				asm.Receive(chunk)
			}
		}
	})

	err := eg.Wait()
	received, rejected, detected := asm.Stats()
	proc.logger.Debug().
		Int64("received", received).
		Int64("rejected", rejected).
		Int64("detected", detected).
		Msg("scan finished")
	return proc.Count(), err
}
