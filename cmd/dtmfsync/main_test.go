package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/johndoe31415/dtmfsync/pkg/codec"
	"github.com/johndoe31415/dtmfsync/pkg/dtmfsync/config"
	"github.com/johndoe31415/dtmfsync/pkg/frame/timestamp"
	"github.com/johndoe31415/dtmfsync/pkg/util"
)

var testFrame = []byte{0xd0, 0xd0, 0xbf, 0x55, 0x52, 0xa9, 0x57}

func TestParseFrame(t *testing.T) {
	want := testFrame
	for _, in := range []string{"d0d0bf5552a957", "D0D0BF5552A957", "d0 d0 bf 55 52 a9 57"} {
		got, err := parseFrame(in)
		if err != nil || !reflect.DeepEqual(got, want) {
			t.Errorf("parseFrame(%q) = % x, %v", in, got, err)
		}
	}

	got, err := parseFrame("*#")
	if err != nil || !reflect.DeepEqual(got, []byte{0xef}) {
		t.Errorf("parseFrame(\"*#\") = % x, %v", got, err)
	}
}

func TestRunDecode(t *testing.T) {
	if err := runDecode([]string{"d0d0bf5552a957"}); err != nil {
		t.Errorf("runDecode() error = %v", err)
	}
	if err := runDecode([]string{"d0d0bf5552a958"}); !errors.Is(err, codec.ErrChecksumMismatch) {
		t.Errorf("runDecode() error = %v, want checksum mismatch", err)
	}
	if err := runDecode(nil); err == nil {
		t.Errorf("runDecode() without arguments succeeded")
	}
}

func TestHexFilter(t *testing.T) {
	// one line well past bufio.MaxScanTokenSize once hex encoded
	long := make([]byte, 40000)
	for i := range long {
		long[i] = byte(i)
	}
	long = append(long, testFrame...)

	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"single long line", hex.EncodeToString(long) + "\n", long},
		{"spaced multi line", "d0 d0 bf\n55 52\r\n\ta9 57\n", testFrame},
		{"blank", " \n\n", []byte{}},
	}
	for _, tt := range tests {
		got, err := io.ReadAll(hex.NewDecoder(hexFilter{strings.NewReader(tt.in)}))
		if err != nil {
			t.Errorf("%s: error = %v", tt.name, err)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: got %d bytes, want %d", tt.name, len(got), len(tt.want))
		}
	}
}

func TestScanStreamStopsOnSinkError(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	go pw.Write(testFrame)

	sinkErr := errors.New("sink full")
	done := make(chan error, 1)
	go func() {
		done <- scanStream(context.Background(), pr, "pipe", config.Defaults(), &util.MockWriteAPI{},
			func(timestamp.Detection) error { return sinkErr })
	}()

	select {
	case err := <-done:
		if !errors.Is(err, sinkErr) {
			t.Errorf("scanStream() error = %v, want %v", err, sinkErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scanStream() blocked on an open reader after the sink failed")
	}
}

func TestScanStreamCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scanStream(ctx, pr, "pipe", config.Defaults(), &util.MockWriteAPI{},
			func(timestamp.Detection) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("scanStream() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scanStream() blocked on an open reader after cancellation")
	}
}

func TestExitCodeFlushesMetrics(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{context.Canceled, 0},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		flushed := 0
		if got := exitCode("scan", tt.err, func() { flushed++ }); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
		if flushed != 1 {
			t.Errorf("exitCode(%v) flushed %d times, want 1", tt.err, flushed)
		}
	}
}
