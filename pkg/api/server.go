package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/johndoe31415/dtmfsync/pkg/codec"
	"github.com/johndoe31415/dtmfsync/pkg/dtmf"
	"github.com/johndoe31415/dtmfsync/pkg/util"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const maxPayloadLength = 255

type Server struct {
	codec        *codec.Codec
	srv          *http.Server
	toneDuration time.Duration
	writeAPI     api.WriteAPI
	logger       zerolog.Logger
	now          func() time.Time
}

type ServerOption func(s *Server)

func WithWriteAPI(writeAPI api.WriteAPI) ServerOption {
	return func(s *Server) {
		s.writeAPI = writeAPI
	}
}

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithToneDuration(d time.Duration) ServerOption {
	return func(s *Server) {
		s.toneDuration = d
	}
}

// WithClock replaces time.Now for the /timestamp and /plan endpoints.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(port int, c *codec.Codec, opts ...ServerOption) *Server {
	s := &Server{
		codec:        c,
		srv:          &http.Server{Addr: fmt.Sprintf(":%d", port)},
		toneDuration: dtmf.DefaultToneDuration,
		writeAPI:     &util.MockWriteAPI{},
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv.Handler = s.Handler()
	return s
}

type frameResponse struct {
	Value   *uint64 `json:"value,omitempty"`
	Frame   string  `json:"frame"`
	Symbols string  `json:"symbols"`
}

type decodeResponse struct {
	Value   uint64 `json:"value"`
	UTC     string `json:"utc"`
	Payload string `json:"payload"`
}

type burstResponse struct {
	Symbol     string `json:"symbol"`
	Low        int    `json:"low_hz"`
	High       int    `json:"high_hz"`
	DurationMS int64  `json:"duration_ms"`
	FadeMS     int64  `json:"fade_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/health", s.instrument("health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) int {
		return s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	handler.GET("/timestamp", s.instrument("timestamp", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) int {
		now := s.now()
		frame, err := s.codec.EncodeTimestampFrame(now)
		if err != nil {
			return s.writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		}
		value := uint64(now.Round(time.Second).Unix())
		return s.writeJSON(w, http.StatusOK, frameResponse{
			Value:   &value,
			Frame:   hex.EncodeToString(frame),
			Symbols: dtmf.String(dtmf.FromBytes(frame)),
		})
	}))

	handler.GET("/plan", s.instrument("plan", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) int {
		pairs, err := s.codec.EncodeTimestamp(s.now())
		if err != nil {
			return s.writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		}
		bursts := dtmf.Plan(pairs, s.toneDuration)
		resp := make([]burstResponse, len(bursts))
		for i, b := range bursts {
			resp[i] = burstResponse{
				Symbol:     b.String(),
				Low:        b.Low,
				High:       b.High,
				DurationMS: b.Duration.Milliseconds(),
				FadeMS:     b.Fade.Milliseconds(),
			}
		}
		return s.writeJSON(w, http.StatusOK, resp)
	}))

	handler.POST("/encode", s.instrument("encode", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) int {
		body, err := io.ReadAll(io.LimitReader(r.Body, 2*maxPayloadLength+2))
		if err != nil {
			return s.writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		}
		payload, err := hex.DecodeString(string(bytes.TrimSpace(body)))
		if err != nil {
			return s.writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("payload is not hex: %v", err)})
		}
		if len(payload) == 0 || len(payload) > maxPayloadLength {
			return s.writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("payload must be 1 to %d bytes", maxPayloadLength)})
		}
		frame := s.codec.EncodeFrame(payload)
		return s.writeJSON(w, http.StatusOK, frameResponse{
			Frame:   hex.EncodeToString(frame),
			Symbols: dtmf.String(dtmf.FromBytes(frame)),
		})
	}))

	handler.GET("/decode/:frame", s.instrument("decode", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) int {
		frame, err := hex.DecodeString(params.ByName("frame"))
		if err != nil {
			return s.writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("frame is not hex: %v", err)})
		}
		ts, err := s.codec.DecodeTimestamp(frame)
		if errors.Is(err, codec.ErrInvalidFrame) {
			return s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{err.Error()})
		} else if err != nil {
			return s.writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		}
		payload, err := codec.TimestampPayload(ts.UTC)
		if err != nil {
			return s.writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		}
		return s.writeJSON(w, http.StatusOK, decodeResponse{
			Value:   ts.Value,
			UTC:     ts.UTC.Format(time.RFC3339),
			Payload: hex.EncodeToString(payload),
		})
	}))

	return handler
}

type statusHandle func(w http.ResponseWriter, r *http.Request, params httprouter.Params) int

func (s *Server) instrument(endpoint string, h statusHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		var status int
		elapsed := util.TimeOperationMicroseconds(func() {
			status = h(w, r, params)
		})

		s.logger.Debug().Str("endpoint", endpoint).Int("status", status).Int64("elapsed_us", elapsed).Msg("request")
		s.writeAPI.WritePoint(influxdb2.NewPoint("dtmfsync.api.request",
			map[string]string{
				"endpoint": endpoint,
			},
			map[string]interface{}{
				"status":     status,
				"elapsed_us": elapsed,
			}, time.Now()))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("writing response")
	}
	return status
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.srv.Shutdown(context.Background())
		case <-done:
		}
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("api server listening")

	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}
