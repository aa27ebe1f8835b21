package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// maxPending bounds the bytes buffered while waiting for a newline.
const maxPending = 64 * 1024

// ErrChannel wraps failures reading from the serial channel.
var ErrChannel = errors.New("serial channel")

// Acquisition holds everything the per-tick reader needs: the channel,
// bytes received but not yet framed, and the rolling history.
type Acquisition struct {
	ch      byteChannel
	history *History
	origin  time.Time
	now     func() time.Time
	log     zerolog.Logger

	buf       []byte
	pending   []byte
	closeOnce sync.Once
	closeErr  error
}

func NewAcquisition(ch byteChannel, history *History, origin time.Time, logger zerolog.Logger) *Acquisition {
	return &Acquisition{
		ch:      ch,
		history: history,
		origin:  origin,
		now:     time.Now,
		log:     logger,
		buf:     make([]byte, 1024),
	}
}

func (a *Acquisition) History() *History {
	return a.history
}

// ReadSample polls the channel and consumes at most one complete line.
// It returns the sample and true when the line parsed; a non-nil error
// only for channel failures, in which case the history is unchanged.
func (a *Acquisition) ReadSample() (Sample, bool, error) {
	if err := a.poll(); err != nil {
		return Sample{}, false, err
	}

	line, ok := a.nextLine()
	if !ok {
		return Sample{}, false, nil
	}
	a.log.Info().Str("line", line).Msg("received")

	temp, hum, err := parseRecord(line)
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyRecord), errors.Is(err, ErrDeviceFault):
		return Sample{}, false, nil
	default:
		a.log.Warn().Err(err).Str("line", line).Msg("discarding record")
		return Sample{}, false, nil
	}

	s := Sample{
		Elapsed:     a.now().Sub(a.origin).Seconds(),
		Temperature: temp,
		Humidity:    hum,
	}
	a.history.Append(s)
	return s, true, nil
}

// poll moves whatever the channel has ready into the pending buffer.
// The port's read timeout keeps this from waiting on a silent device.
func (a *Acquisition) poll() error {
	n, err := a.ch.Read(a.buf)
	if n > 0 {
		a.pending = append(a.pending, a.buf[:n]...)
		if len(a.pending) > maxPending && bytes.IndexByte(a.pending, '\n') < 0 {
			a.log.Warn().Int("bytes", len(a.pending)).Msg("dropping unterminated input")
			a.pending = a.pending[:0]
		}
	}
	if err != nil {
		return fmt.Errorf("%w: read: %w", ErrChannel, err)
	}
	return nil
}

// nextLine pops one newline-terminated line off the pending buffer.
func (a *Acquisition) nextLine() (string, bool) {
	idx := bytes.IndexByte(a.pending, '\n')
	if idx < 0 {
		return "", false
	}
	raw := a.pending[:idx]
	if len(raw) > 0 && raw[len(raw)-1] == '\r' {
		raw = raw[:len(raw)-1]
	}
	line := strings.ToValidUTF8(string(raw), "�")
	a.pending = append(a.pending[:0], a.pending[idx+1:]...)
	return line, true
}

// Close closes the channel. Safe to call more than once.
func (a *Acquisition) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.ch.Close()
	})
	return a.closeErr
}
