package main

import (
	"context"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"
)

// AppUI holds all UI state and widgets.
type AppUI struct {
	window    fyne.Window
	serial    *SerialManager
	history   *History
	origin    time.Time
	publisher Publisher
	log       zerolog.Logger
	cfg       Config
	cfgPath   string

	// Widgets
	portSelect   *widget.Select
	baudSelect   *widget.Select
	connectBtn   *widget.Button
	refreshBtn   *widget.Button
	clearBtn     *widget.Button
	exportBtn    *widget.Button
	readingLabel *widget.Label
	chartImg     *canvas.Image

	// State
	ctx       context.Context
	connected atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

var standardBaudRates = []string{
	"300", "1200", "2400", "4800", "9600", "19200",
	"38400", "57600", "74880", "115200", "230400",
	"250000", "500000", "1000000", "2000000",
}

// UIOptions carries what the window needs from startup.
type UIOptions struct {
	Config     Config
	ConfigPath string // where to remember the last port; empty disables
	Origin     time.Time
	Publisher  Publisher
	Logger     zerolog.Logger
}

func NewAppUI(ctx context.Context, window fyne.Window, serial *SerialManager, opts UIOptions) *AppUI {
	ui := &AppUI{
		window:    window,
		serial:    serial,
		history:   NewHistory(opts.Config.Capacity),
		origin:    opts.Origin,
		publisher: opts.Publisher,
		log:       opts.Logger,
		cfg:       opts.Config,
		cfgPath:   opts.ConfigPath,
		ctx:       ctx,
	}
	ui.build()
	ui.redraw()
	return ui
}

func (ui *AppUI) build() {
	// Port selection
	ui.portSelect = widget.NewSelect([]string{}, nil)
	ui.portSelect.PlaceHolder = "Select COM Port"

	ui.refreshBtn = widget.NewButton("Refresh", func() {
		ui.refreshPorts()
	})
	ui.refreshPorts()

	// Baud rate selection
	baud := strconv.Itoa(ui.cfg.BaudRate)
	rates := standardBaudRates
	if !contains(rates, baud) {
		rates = append([]string{baud}, rates...)
	}
	ui.baudSelect = widget.NewSelect(rates, nil)
	ui.baudSelect.SetSelected(baud)

	ui.connectBtn = widget.NewButton("Connect", func() {
		ui.toggleConnection()
	})

	ui.clearBtn = widget.NewButton("Clear", func() {
		ui.history.Reset()
		ui.redraw()
	})

	ui.exportBtn = widget.NewButton("Export CSV", func() {
		ui.showExportDialog()
	})

	ui.readingLabel = widget.NewLabel("Waiting for data...")
	ui.readingLabel.TextStyle = fyne.TextStyle{Monospace: true}

	ui.chartImg = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight)))
	ui.chartImg.FillMode = canvas.ImageFillContain
	ui.chartImg.SetMinSize(fyne.NewSize(chartWidth, chartHeight))

	portRow := container.NewHBox(
		widget.NewLabel("Port:"),
		ui.portSelect,
		ui.refreshBtn,
		widget.NewLabel("Baud:"),
		ui.baudSelect,
		ui.connectBtn,
	)

	optionsRow := container.NewHBox(
		ui.readingLabel,
		layout.NewSpacer(),
		ui.clearBtn,
		ui.exportBtn,
	)

	toolbar := container.NewVBox(portRow, optionsRow)
	content := container.NewBorder(toolbar, nil, nil, nil, ui.chartImg)
	ui.window.SetContent(content)
}

func (ui *AppUI) refreshPorts() {
	ports := ui.serial.AvailablePorts()
	if ui.cfg.Port != "" && !contains(ports, ui.cfg.Port) {
		ports = append([]string{ui.cfg.Port}, ports...)
	}
	ui.portSelect.Options = ports
	switch {
	case ui.cfg.Port != "":
		ui.portSelect.SetSelected(ui.cfg.Port)
	case len(ports) > 0:
		ui.portSelect.SetSelected(ports[0])
	}
	ui.portSelect.Refresh()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ShowFrame implements FrameSink. Called from the acquisition goroutine.
func (ui *AppUI) ShowFrame(img image.Image, latest Sample, ok bool) {
	fyne.Do(func() {
		ui.setFrame(img, latest, ok)
	})
}

func (ui *AppUI) setFrame(img image.Image, latest Sample, ok bool) {
	ui.chartImg.Image = img
	ui.chartImg.Refresh()
	if ok {
		ui.readingLabel.SetText(fmt.Sprintf("t=%.1fs  %.1f°C  %.1f%%", latest.Elapsed, latest.Temperature, latest.Humidity))
	} else {
		ui.readingLabel.SetText("Waiting for data...")
	}
}

// redraw renders the chart on the UI thread, outside the tick cadence.
func (ui *AppUI) redraw() {
	img, err := RenderChart(ui.history, chartWidth, chartHeight)
	if err != nil {
		ui.log.Error().Err(err).Msg("render failed")
		return
	}
	latest, ok := ui.history.Latest()
	ui.setFrame(img, latest, ok)
}

func (ui *AppUI) setDisconnectedState() {
	ui.connected.Store(false)
	ui.connectBtn.SetText("Connect")
	ui.connectBtn.Enable()
	ui.portSelect.Enable()
	ui.baudSelect.Enable()
}

func (ui *AppUI) toggleConnection() {
	if ui.connected.Load() {
		ui.Stop()
		ui.setDisconnectedState()
		return
	}

	portName := ui.portSelect.Selected
	if portName == "" {
		dialog.ShowError(fmt.Errorf("no COM port selected"), ui.window)
		return
	}

	baudRate, err := strconv.Atoi(ui.baudSelect.Selected)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid baud rate: %s", ui.baudSelect.Selected), ui.window)
		return
	}

	ui.connected.Store(true)
	ui.connectBtn.SetText("Cancel")
	ui.portSelect.Disable()
	ui.baudSelect.Disable()
	ui.Start(portName, baudRate)
}

// Start opens the port off the UI thread and runs the acquisition loop
// until Stop is called or the app context ends.
func (ui *AppUI) Start(portName string, baudRate int) {
	ctx, cancel := context.WithCancel(ui.ctx)
	done := make(chan struct{})
	ui.cancel, ui.done = cancel, done

	go func() {
		defer close(done)

		ui.log.Info().Str("port", portName).Int("baud", baudRate).Msg("connecting")
		port, err := ui.serial.Open(ctx, portName, baudRate)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ui.log.Error().Err(err).Msg("connect failed")
			fyne.Do(func() {
				ui.setDisconnectedState()
				dialog.ShowError(fmt.Errorf("failed to connect: %w", err), ui.window)
			})
			return
		}
		ui.log.Info().Str("port", portName).Msg("connected, waiting for data")
		ui.rememberPort(portName, baudRate)
		fyne.Do(func() {
			ui.connectBtn.SetText("Disconnect")
		})

		acq := NewAcquisition(port, ui.history, ui.origin, ui.log)
		mon := NewMonitor(acq, ui, ui.publisher, ui.log)
		ticker := time.NewTicker(time.Duration(ui.cfg.Interval))
		defer ticker.Stop()
		mon.Run(ctx, ticker.C)
	}()
}

// Stop ends the acquisition loop and waits for the port to be closed.
func (ui *AppUI) Stop() {
	if ui.cancel == nil {
		return
	}
	ui.cancel()
	<-ui.done
	ui.cancel, ui.done = nil, nil
}

func (ui *AppUI) rememberPort(portName string, baudRate int) {
	if ui.cfgPath == "" {
		return
	}
	cfg := ui.cfg
	cfg.Port = portName
	cfg.BaudRate = baudRate
	if err := SaveConfig(ui.cfgPath, cfg); err != nil {
		ui.log.Warn().Err(err).Msg("could not remember port")
	}
}

func (ui *AppUI) showExportDialog() {
	samples := ui.history.Samples()
	if len(samples) == 0 {
		dialog.ShowInformation("Export", "No data to export.", ui.window)
		return
	}

	filterByTime := widget.NewCheck("Filter by elapsed time", nil)

	startEntry := widget.NewEntry()
	startEntry.SetPlaceHolder("Start (s)")
	startEntry.Disable()

	endEntry := widget.NewEntry()
	endEntry.SetPlaceHolder("End (s)")
	endEntry.Disable()

	filterByTime.OnChanged = func(checked bool) {
		if checked {
			startEntry.Enable()
			endEntry.Enable()
		} else {
			startEntry.Disable()
			endEntry.Disable()
		}
	}

	headerEntry := widget.NewEntry()
	headerEntry.SetText(strings.Join(ui.cfg.CSVHeader, ","))
	headerEntry.SetPlaceHolder(strings.Join(defaultCSVHeader, ","))

	form := widget.NewForm(
		widget.NewFormItem("Time Filter", filterByTime),
		widget.NewFormItem("Start", startEntry),
		widget.NewFormItem("End", endEntry),
		widget.NewFormItem("Header", headerEntry),
	)

	dialog.ShowCustomConfirm("Export CSV Options", "Export", "Cancel", form, func(confirmed bool) {
		if !confirmed {
			return
		}

		opts := CSVExportOptions{FilterByTime: filterByTime.Checked}
		if filterByTime.Checked {
			start, end, err := parseElapsedRange(startEntry.Text, endEntry.Text)
			if err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			opts.Start, opts.End = start, end
		}
		if text := strings.TrimSpace(headerEntry.Text); text != "" {
			opts.CustomHeader = strings.Split(text, ",")
			for i := range opts.CustomHeader {
				opts.CustomHeader[i] = strings.TrimSpace(opts.CustomHeader[i])
			}
		}

		fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			writer.Close()

			savePath := writer.URI().Path()
			if len(savePath) > 2 && savePath[0] == '/' && savePath[2] == ':' {
				savePath = savePath[1:]
			}
			opts.FilePath = savePath

			rows, err := ExportCSV(samples, opts)
			if err != nil {
				dialog.ShowError(err, ui.window)
				return
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Exported %d samples to CSV.", rows), ui.window)
		}, ui.window)
		fd.SetFileName("climate.csv")
		fd.Show()
	}, ui.window)
}

// parseElapsedRange reads the export filter bounds. A blank start means
// zero, a blank end means no upper bound.
func parseElapsedRange(startText, endText string) (start, end float64, err error) {
	start, end = 0, math.MaxFloat64
	if s := strings.TrimSpace(startText); s != "" {
		if start, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid start time (seconds): %s", s)
		}
	}
	if s := strings.TrimSpace(endText); s != "" {
		if end, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, 0, fmt.Errorf("invalid end time (seconds): %s", s)
		}
	}
	if end < start {
		return 0, 0, fmt.Errorf("end time %g is before start time %g", end, start)
	}
	return start, end, nil
}
