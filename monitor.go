package main

import (
	"context"
	"image"
	"time"

	"github.com/rs/zerolog"
)

// FrameSink receives each rendered chart frame.
type FrameSink interface {
	ShowFrame(img image.Image, latest Sample, ok bool)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(img image.Image, latest Sample, ok bool)

func (f FrameSinkFunc) ShowFrame(img image.Image, latest Sample, ok bool) { f(img, latest, ok) }

// Monitor runs the acquisition loop: each tick reads at most one record
// and then redraws the chart from the history.
type Monitor struct {
	acq       *Acquisition
	sink      FrameSink
	publisher Publisher // may be nil
	log       zerolog.Logger
	now       func() time.Time

	width, height int
}

func NewMonitor(acq *Acquisition, sink FrameSink, publisher Publisher, logger zerolog.Logger) *Monitor {
	return &Monitor{
		acq:       acq,
		sink:      sink,
		publisher: publisher,
		log:       logger,
		now:       time.Now,
		width:     chartWidth,
		height:    chartHeight,
	}
}

// Tick runs the reader and then the renderer. Errors are logged; the
// next tick starts fresh.
func (m *Monitor) Tick() {
	s, ok, err := m.acq.ReadSample()
	switch {
	case err != nil:
		ev := m.log.Error().Err(err)
		if isDisconnect(err) {
			ev = ev.Bool("disconnected", true)
		}
		ev.Msg("read failed")
	case ok:
		m.log.Debug().
			Float64("t", s.Elapsed).
			Float64("temperature", s.Temperature).
			Float64("humidity", s.Humidity).
			Msg("sample")
		if m.publisher != nil {
			if err := m.publisher.Publish(s, m.now()); err != nil {
				m.log.Warn().Err(err).Msg("publish failed")
			}
		}
	}

	img, err := RenderChart(m.acq.History(), m.width, m.height)
	if err != nil {
		m.log.Error().Err(err).Msg("render failed")
		return
	}
	latest, has := m.acq.History().Latest()
	m.sink.ShowFrame(img, latest, has)
}

// Run calls Tick for every value on tick until ctx is done. The serial
// channel is closed on return.
func (m *Monitor) Run(ctx context.Context, tick <-chan time.Time) error {
	defer func() {
		if err := m.acq.Close(); err != nil {
			m.log.Warn().Err(err).Msg("close serial channel")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("acquisition stopped")
			return nil
		case <-tick:
			m.Tick()
		}
	}
}
