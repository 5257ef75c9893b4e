package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	influxapi "github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/johndoe31415/dtmfsync/pkg/api"
	"github.com/johndoe31415/dtmfsync/pkg/codec"
	"github.com/johndoe31415/dtmfsync/pkg/dtmf"
	"github.com/johndoe31415/dtmfsync/pkg/dtmfsync/config"
	"github.com/johndoe31415/dtmfsync/pkg/frame/timestamp"
	"github.com/johndoe31415/dtmfsync/pkg/util"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: dtmfsync [-config file] <command> [args]

commands:
  encode [-payload hex] [-play] [-wav file]   encode the current time (or a payload)
  decode <frame>                              decode a 7 byte frame given as hex or symbols
  scan [-hex] [file]                          find timestamp frames in a demodulated byte stream
  serve                                       run the HTTP API
`)
	flag.PrintDefaults()
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "dtmfsync.yaml", "YAML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}
	log.Logger = log.Logger.Level(opts.Level())

	var seeds codec.SeedSource
	if opts.Seed != 0 {
		seeds = codec.NewRandomSeedSource(rand.NewSource(opts.Seed))
	} else {
		seeds = codec.NewRandomSeedSource(nil)
	}
	c := codec.New(codec.WithSeedSource(seeds), codec.WithLogger(log.Logger))

	writeAPI, closeWriteAPI := util.NewWriteAPI(opts.InfluxDB.Host, opts.InfluxDB.Token, opts.InfluxDB.Organization, opts.InfluxDB.Bucket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second signal kills the process
		<-ctx.Done()
		stop()
	}()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "encode":
		err = runEncode(c, opts, args)
	case "decode":
		err = runDecode(args)
	case "scan":
		err = runScan(ctx, opts, writeAPI, args)
	case "serve":
		err = runServe(ctx, c, opts, writeAPI)
	default:
		closeWriteAPI()
		flag.Usage()
		os.Exit(2)
	}

	stop()
	os.Exit(exitCode(cmd, err, closeWriteAPI))
}

// exitCode flushes pending metrics before the process exits; deferred calls
// do not run after os.Exit.
func exitCode(cmd string, err error, closeWriteAPI func()) int {
	closeWriteAPI()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Str("command", cmd).Err(err).Msg("exited program")
		return 1
	}
	return 0
}

func runEncode(c *codec.Codec, opts config.Config, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	payloadHex := fs.String("payload", "", "hex payload to encode instead of the current time")
	play := fs.Bool("play", false, "play the tones with sox's play")
	wavFile := fs.String("wav", "", "write the tones to a WAV file with sox")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var frame []byte
	if *payloadHex != "" {
		payload, err := hex.DecodeString(*payloadHex)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		frame = c.EncodeFrame(payload)
	} else {
		var err error
		now := time.Now()
		if frame, err = c.EncodeTimestampFrame(now); err != nil {
			return err
		}
		log.Info().Int64("value", now.Round(time.Second).Unix()).Msg("encoding current time")
	}

	pairs := dtmf.FromBytes(frame)
	fmt.Printf("frame   %x\nsymbols %s\n", frame, dtmf.String(pairs))

	synth := dtmf.SoxSynthArgs(dtmf.Plan(pairs, opts.ToneDuration))
	switch {
	case *play:
		return runSox("play", append([]string{"-n"}, synth...))
	case *wavFile != "":
		return runSox("sox", append([]string{"-n", *wavFile}, synth...))
	default:
		fmt.Printf("sox     sox -n out.wav %s\n", strings.Join(synth, " "))
	}
	return nil
}

func runSox(name string, args []string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.Debug().Str("cmd", name).Int("args", len(args)).Msg("running sox")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// parseFrame accepts hex ("d0d0bf5552a957") or detector symbols, where '*'
// and '#' stand for the nibbles e and f.
func parseFrame(s string) ([]byte, error) {
	if frame, err := hex.DecodeString(s); err == nil {
		return frame, nil
	}
	return dtmf.ParseSymbols(s)
}

func runDecode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("decode takes exactly one frame argument")
	}
	frame, err := parseFrame(args[0])
	if err != nil {
		return err
	}
	ts, err := codec.DecodeTimestamp(frame)
	if err != nil {
		return fmt.Errorf("frame %x: %w", frame, err)
	}
	fmt.Println(ts)
	return nil
}

func runScan(ctx context.Context, opts config.Config, writeAPI influxapi.WriteAPI, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	hexInput := fs.Bool("hex", false, "input is hex text rather than raw bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	source := opts.Scanner.Source
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in, source = f, fs.Arg(0)
	}
	if *hexInput {
		in = hex.NewDecoder(hexFilter{in})
	}

	return scanStream(ctx, in, source, opts, writeAPI, func(d timestamp.Detection) error {
		_, err := fmt.Printf("%d\t%d\t%s\n", d.Offset, d.Timestamp.Value, d.Timestamp.UTC.Format(time.RFC3339))
		return err
	})
}

// scanStream does not wait for the reader once the scan has ended: a Read
// on an interactive stdin only returns on input or EOF.
func scanStream(ctx context.Context, in io.Reader, source string, opts config.Config, writeAPI influxapi.WriteAPI, sink timestamp.Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte, 4)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, opts.Scanner.ChunkSize)
			n, err := in.Read(buf)
			if n > 0 {
				select {
				case <-ctx.Done():
					return
				case chunks <- buf[:n]:
				}
			}
			if err == io.EOF {
				return
			} else if err != nil {
				readErr <- err
				return
			}
		}
	}()

	n, err := timestamp.Scan(ctx, source, chunks,
		[]timestamp.AssemblerOption{
			timestamp.WithBounds(timestamp.Bounds{NotBefore: opts.Scanner.NotBefore, NotAfter: opts.Scanner.NotAfter}),
			timestamp.WithLogger(log.Logger),
		},
		timestamp.WithWriteAPI(writeAPI),
		timestamp.WithProcessorLogger(log.Logger),
		timestamp.WithSink(sink))
	log.Info().Str("source", source).Int("frames", n).Msg("scan complete")
	if err != nil {
		return err
	}

	select {
	case err := <-readErr:
		return fmt.Errorf("reading %s: %w", source, err)
	default:
		return nil
	}
}

// hexFilter drops whitespace so hex dumps split over lines, or written as one
// arbitrarily long line, decode cleanly.
type hexFilter struct {
	r io.Reader
}

func (h hexFilter) Read(p []byte) (int, error) {
	for {
		n, err := h.r.Read(p)
		j := 0
		for _, b := range p[:n] {
			if !unicode.IsSpace(rune(b)) {
				p[j] = b
				j++
			}
		}
		if j > 0 || err != nil {
			return j, err
		}
	}
}

func runServe(ctx context.Context, c *codec.Codec, opts config.Config, writeAPI influxapi.WriteAPI) error {
	srv := api.NewServer(opts.APIServer.Port, c,
		api.WithWriteAPI(writeAPI),
		api.WithLogger(log.Logger),
		api.WithToneDuration(opts.ToneDuration))

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	eg.Go(func() error {
		return srv.Run(ctx)
	})

	return eg.Wait()
}
