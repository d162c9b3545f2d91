// Package samplesource implements the two sample-source adapters the
// spec's external interface names (spec §6, "Sample source (pull)"):
// a file of interleaved float32 I/Q pairs, and a live SDR/serial-fed
// stream. Both satisfy the same pull interface so the pipeline never
// needs to know which one it's driving.
package samplesource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.bug.st/serial"

	"github.com/bramburn/gnssgo-sdr/internal/samples"
)

// Source is the pull interface both adapters implement (spec §6,
// "next_samples(n) -> array of complex").
type Source interface {
	// NextMillisecond blocks until one millisecond (samples.PerMillisecond
	// complex samples) is available, or ctx is cancelled.
	NextMillisecond(ctx context.Context) (samples.Millisecond, error)

	// TimestampOfFirstSample is the wall-clock time of the first sample
	// this source ever yielded.
	TimestampOfFirstSample() time.Time

	// Close releases the underlying file handle or serial port.
	Close() error
}

// ErrEndOfStream is returned by NextMillisecond when a file source is
// exhausted.
var ErrEndOfStream = errors.New("samplesource: end of stream")

// FileSource reads interleaved float32 I,Q pairs from a file at a fixed
// sample rate, no header, native endianness (spec §6).
type FileSource struct {
	r          io.ReadCloser
	startTime  time.Time
	readBuf    []byte
}

// NewFileSource opens path and associates it with the given start
// timestamp (spec §6, CLI flag `-t`).
func NewFileSource(r io.ReadCloser, startTime time.Time) *FileSource {
	return &FileSource{
		r:         r,
		startTime: startTime,
		readBuf:   make([]byte, samples.PerMillisecond*8), // 2 float32s/sample
	}
}

func (f *FileSource) NextMillisecond(ctx context.Context) (samples.Millisecond, error) {
	var ms samples.Millisecond
	if err := ctx.Err(); err != nil {
		return ms, err
	}

	if _, err := io.ReadFull(f.r, f.readBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ms, ErrEndOfStream
		}
		return ms, fmt.Errorf("samplesource: file read: %w", err)
	}

	for i := 0; i < samples.PerMillisecond; i++ {
		iBits := binary.NativeEndian.Uint32(f.readBuf[i*8:])
		qBits := binary.NativeEndian.Uint32(f.readBuf[i*8+4:])
		re := math.Float32frombits(iBits)
		im := math.Float32frombits(qBits)
		ms[i] = complex(re, im)
	}
	return ms, nil
}

func (f *FileSource) TimestampOfFirstSample() time.Time { return f.startTime }

func (f *FileSource) Close() error { return f.r.Close() }

// SerialSource adapts a live SDR/serial device that streams the same
// interleaved float32 I/Q format over a serial connection (spec §6,
// "an SDR driver yielding the same type stream"), following the
// teacher's TOP708Device connect-with-retry shape.
type SerialSource struct {
	port      serial.Port
	startTime time.Time
	readBuf   []byte
	pending   []byte

	retryCount int
	retryDelay time.Duration
}

// SerialSourceConfig configures a live connection.
type SerialSourceConfig struct {
	PortName   string
	BaudRate   int
	RetryCount int
	RetryDelay time.Duration
}

// OpenSerialSource opens and connects to a live sample-streaming device,
// retrying per cfg.RetryCount (spec §4.10; grounded on
// hardware/topgnss/top708's Connect retry loop).
func OpenSerialSource(cfg SerialSourceConfig) (*SerialSource, error) {
	mode := &serial.Mode{BaudRate: cfg.BaudRate}

	retries := cfg.RetryCount
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var port serial.Port
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}
		port, err = serial.Open(cfg.PortName, mode)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("samplesource: failed to open %s after %d attempts: %w", cfg.PortName, retries+1, err)
	}

	return &SerialSource{
		port:       port,
		startTime:  time.Now(),
		readBuf:    make([]byte, samples.PerMillisecond*8),
		retryCount: retries,
		retryDelay: delay,
	}, nil
}

func (s *SerialSource) NextMillisecond(ctx context.Context) (samples.Millisecond, error) {
	var ms samples.Millisecond
	need := samples.PerMillisecond * 8

	for len(s.pending) < need {
		if err := ctx.Err(); err != nil {
			return ms, err
		}
		n, err := s.port.Read(s.readBuf)
		if err != nil {
			return ms, fmt.Errorf("samplesource: serial read: %w", err)
		}
		s.pending = append(s.pending, s.readBuf[:n]...)
	}

	frame := s.pending[:need]
	s.pending = s.pending[need:]

	for i := 0; i < samples.PerMillisecond; i++ {
		iBits := binary.LittleEndian.Uint32(frame[i*8:])
		qBits := binary.LittleEndian.Uint32(frame[i*8+4:])
		re := math.Float32frombits(iBits)
		im := math.Float32frombits(qBits)
		ms[i] = complex(re, im)
	}
	return ms, nil
}

func (s *SerialSource) TimestampOfFirstSample() time.Time { return s.startTime }

func (s *SerialSource) Close() error { return s.port.Close() }
