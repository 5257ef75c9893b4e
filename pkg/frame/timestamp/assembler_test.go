package timestamp

import (
	"context"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/johndoe31415/dtmfsync/pkg/util"
)

// two frames separated by filler: seed d0 at offset 10, seed 42 at offset 20
func testStream(t *testing.T) []byte {
	t.Helper()
	var stream []byte
	stream = append(stream, make([]byte, 10)...)
	stream = append(stream, mustHex(t, "d0d0bf5552a957")...)
	stream = append(stream, 0x13, 0x37, 0x99)
	stream = append(stream, mustHex(t, "42dd34bf273cf7")...)
	stream = append(stream, make([]byte, 10)...)
	return stream
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func collect(ctx context.Context, stream []byte, chunkSize int, opts ...AssemblerOption) ([]Detection, *Assembler) {
	ch := make(chan Detection, 32)
	asm := NewAssembler(ctx, ch, opts...)
	for i := 0; i < len(stream); i += chunkSize {
		end := i + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		asm.Receive(stream[i:end])
	}
	close(ch)

	var ret []Detection
	for det := range ch {
		ret = append(ret, det)
	}
	return ret, asm
}

func TestAssemblerFindsFrames(t *testing.T) {
	for _, chunkSize := range []int{1, 3, 7, 64} {
		dets, asm := collect(context.Background(), testStream(t), chunkSize)

		var offsets []int64
		var values []uint64
		for _, d := range dets {
			offsets = append(offsets, d.Offset)
			values = append(values, d.Timestamp.Value)
		}
		if !reflect.DeepEqual(offsets, []int64{10, 20}) {
			t.Errorf("chunk %d: offsets = %v, want [10 20]", chunkSize, offsets)
		}
		if !reflect.DeepEqual(values, []uint64{1599048632, 1599048700}) {
			t.Errorf("chunk %d: values = %v", chunkSize, values)
		}

		received, rejected, detected := asm.Stats()
		if received != 37 || detected != 2 || rejected != 29 {
			t.Errorf("chunk %d: Stats() = %d %d %d, want 37 29 2", chunkSize, received, rejected, detected)
		}
	}
}

func TestAssemblerShortStream(t *testing.T) {
	dets, asm := collect(context.Background(), mustHex(t, "d0d0bf5552a9"), 1)
	if len(dets) != 0 {
		t.Errorf("got %d detections from a truncated frame", len(dets))
	}
	if _, rejected, _ := asm.Stats(); rejected != 0 {
		t.Errorf("rejected = %d, want 0 before the first full window", rejected)
	}
}

func TestAssemblerBounds(t *testing.T) {
	bounds := Bounds{
		NotBefore: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Unix(1599048660, 0),
	}
	dets, _ := collect(context.Background(), testStream(t), 5, WithBounds(bounds))
	if len(dets) != 1 || dets[0].Timestamp.Value != 1599048632 {
		t.Errorf("detections = %+v, want only the first frame", dets)
	}
}

func TestAssemblerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// unbuffered and never read: a send would block forever
	ch := make(chan Detection)
	asm := NewAssembler(ctx, ch)
	asm.Receive(testStream(t))
	if received, _, _ := asm.Stats(); received != 0 {
		t.Errorf("received = %d after cancel", received)
	}
}

func TestScan(t *testing.T) {
	stream := testStream(t)
	chunks := make(chan []byte, len(stream))
	for i := 0; i < len(stream); i += 4 {
		end := i + 4
		if end > len(stream) {
			end = len(stream)
		}
		chunks <- stream[i:end]
	}
	close(chunks)

	writeAPI := &util.MockWriteAPI{}
	var got []uint64
	n, err := Scan(context.Background(), "test", chunks, nil,
		WithWriteAPI(writeAPI),
		WithSink(func(d Detection) error {
			got = append(got, d.Timestamp.Value)
			return nil
		}))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if n != 2 || !reflect.DeepEqual(got, []uint64{1599048632, 1599048700}) {
		t.Errorf("Scan() = %d, %v", n, got)
	}
	if points := writeAPI.Points(); len(points) != 2 {
		t.Errorf("wrote %d points, want 2", len(points))
	}
}

func TestScanSinkError(t *testing.T) {
	stream := testStream(t)
	chunks := make(chan []byte, 1)
	chunks <- stream
	close(chunks)

	errStop := errors.New("stop")
	_, err := Scan(context.Background(), "test", chunks, nil, WithSink(func(Detection) error {
		return errStop
	}))
	if !errors.Is(err, errStop) {
		t.Errorf("Scan() error = %v, want %v", err, errStop)
	}
}

func TestProcessorStopsOnClosedChannel(t *testing.T) {
	ch := make(chan Detection)
	close(ch)
	if err := NewProcessor("test", ch).Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v", err)
	}
}
