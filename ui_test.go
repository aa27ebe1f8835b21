package main

import (
	"context"
	"math"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI(t *testing.T, cfg Config) *AppUI {
	t.Helper()
	a := test.NewTempApp(t)
	w := a.NewWindow("test")
	t.Cleanup(w.Close)
	return NewAppUI(context.Background(), w, NewSerialManager(0, 0), UIOptions{
		Config: cfg,
		Origin: time.Now(),
		Logger: zerolog.Nop(),
	})
}

func TestAppUIInitialState(t *testing.T) {
	ui := newTestUI(t, DefaultConfig())

	assert.Equal(t, "Waiting for data...", ui.readingLabel.Text)
	require.NotNil(t, ui.chartImg.Image)
	assert.Equal(t, chartWidth, ui.chartImg.Image.Bounds().Dx())
	assert.Equal(t, "9600", ui.baudSelect.Selected)
	assert.False(t, ui.connected.Load())
}

func TestAppUIRemembersConfiguredPortAndBaud(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = "/dev/ttyFAKE0"
	cfg.BaudRate = 31250
	ui := newTestUI(t, cfg)

	assert.Equal(t, "/dev/ttyFAKE0", ui.portSelect.Selected)
	assert.Equal(t, "31250", ui.baudSelect.Selected)
}

func TestAppUISetFrameShowsLatest(t *testing.T) {
	ui := newTestUI(t, DefaultConfig())
	ui.history.Append(Sample{Elapsed: 3.4, Temperature: 22.5, Humidity: 48})

	ui.redraw()

	assert.Equal(t, "t=3.4s  22.5°C  48.0%", ui.readingLabel.Text)
}

func TestAppUIClear(t *testing.T) {
	ui := newTestUI(t, DefaultConfig())
	ui.history.Append(sampleN(1))
	ui.history.Append(sampleN(2))
	ui.redraw()

	test.Tap(ui.clearBtn)

	assert.Equal(t, 0, ui.history.Len())
	assert.Equal(t, "Waiting for data...", ui.readingLabel.Text)
}

func TestAppUIConnectWithoutPort(t *testing.T) {
	ui := newTestUI(t, DefaultConfig())
	ui.portSelect.ClearSelected()

	test.Tap(ui.connectBtn)

	assert.False(t, ui.connected.Load())
	assert.Equal(t, "Connect", ui.connectBtn.Text)
}

func TestParseElapsedRange(t *testing.T) {
	start, end, err := parseElapsedRange("", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, start)
	assert.Equal(t, math.MaxFloat64, end)

	start, end, err = parseElapsedRange(" 1.5 ", "10")
	require.NoError(t, err)
	assert.Equal(t, 1.5, start)
	assert.Equal(t, 10.0, end)

	_, _, err = parseElapsedRange("x", "")
	assert.Error(t, err)
	_, _, err = parseElapsedRange("", "y")
	assert.Error(t, err)
	_, _, err = parseElapsedRange("5", "1")
	assert.Error(t, err)
}
