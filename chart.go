package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartTitle  = "Real-time Temperature and Humidity"
	xAxisName   = "Time (s)"
	yAxisName   = "Value"
	tempLabel   = "Temperature (°C)"
	humLabel    = "Humidity (%)"
	chartWidth  = 800
	chartHeight = 480
)

var (
	tempColor = chart.ColorRed
	humColor  = chart.ColorBlue
)

// RenderChart draws the current history window as a line chart.
// The result depends only on the history contents.
func RenderChart(h *History, width, height int) (image.Image, error) {
	var buf bytes.Buffer
	if err := EncodeChartPNG(&buf, h, width, height); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return img, nil
}

// EncodeChartPNG writes the chart for h to w as PNG.
func EncodeChartPNG(w io.Writer, h *History, width, height int) error {
	c := buildChart(h, width, height)
	if err := c.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func buildChart(h *History, width, height int) chart.Chart {
	times, temps, hums := h.Series()

	xMin, xMax := bounds(times)
	yMin, yMax := bounds(temps, hums)

	var series []chart.Series
	if len(times) > 0 {
		// The widest range is still narrower than two opposite extreme
		// samples; keep every point on the canvas.
		times = clampTo(times, xMin, xMax)
		temps = clampTo(temps, yMin, yMax)
		hums = clampTo(hums, yMin, yMax)
		series = []chart.Series{
			chart.ContinuousSeries{
				Name:    tempLabel,
				XValues: times,
				YValues: temps,
				Style:   chart.Style{StrokeColor: tempColor, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    humLabel,
				XValues: times,
				YValues: hums,
				Style:   chart.Style{StrokeColor: humColor, StrokeWidth: 2},
			},
		}
	} else {
		// go-chart refuses to render without a series; an invisible one
		// keeps the axes, title and legend on an empty frame.
		series = []chart.Series{
			chart.ContinuousSeries{
				XValues: []float64{xMin, xMax},
				YValues: []float64{yMin, yMax},
				Style:   chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1},
			},
		}
	}

	c := chart.Chart{
		Title:      chartTitle,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 24, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  xAxisName,
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:           yAxisName,
			Range:          &chart.ContinuousRange{Min: yMin, Max: yMax},
			ValueFormatter: compactValue,
		},
		Series: series,
	}
	c.Elements = []chart.Renderable{legendUpperRight([]legendEntry{
		{label: tempLabel, color: tempColor},
		{label: humLabel, color: humColor},
	})}
	return c
}

// bounds returns the min and max over all finite values, widened so the
// range is never empty. No values yields [0, 1].
func bounds(sets ...[]float64) (lo, hi float64) {
	first := true
	for _, set := range sets {
		for _, v := range set {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if first {
				lo, hi = v, v
				first = false
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if first {
		return 0, 1
	}

	// Work in halves so samples near ±MaxFloat64 cannot overflow the span.
	mid := lo/2 + hi/2
	half := hi/2 - lo/2
	if half == 0 {
		half = max(1, math.Abs(mid)*0.05)
	} else {
		half *= 1.1
	}
	half = min(half, math.MaxFloat64/2)
	return max(mid-half, -math.MaxFloat64), min(mid+half, math.MaxFloat64)
}

// clampTo limits vals to [lo, hi] in place. NaN is left for the series to skip.
func clampTo(vals []float64, lo, hi float64) []float64 {
	for i, v := range vals {
		if v < lo {
			vals[i] = lo
		} else if v > hi {
			vals[i] = hi
		}
	}
	return vals
}

// compactValue formats tick labels with two decimals, switching to
// exponent form for magnitudes that would not fit beside the plot.
func compactValue(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return chart.FloatValueFormatter(v)
	}
	if math.Abs(f) >= 1e6 {
		return strconv.FormatFloat(f, 'g', 3, 64)
	}
	return chart.FloatValueFormatter(f)
}

type legendEntry struct {
	label string
	color drawing.Color
}

// legendUpperRight draws a boxed legend in the top right of the plot area.
func legendUpperRight(entries []legendEntry) chart.Renderable {
	return func(r chart.Renderer, cb chart.Box, defaults chart.Style) {
		const (
			pad      = 6
			swatch   = 20
			fontSize = 9.0
		)
		font := defaults.GetFont()
		if font == nil {
			if font, _ = chart.GetDefaultFont(); font == nil {
				return
			}
		}
		r.SetFont(font)
		r.SetFontSize(fontSize)
		r.SetFontColor(chart.ColorBlack)

		textW, lineH := 0, 0
		for _, e := range entries {
			tb := r.MeasureText(e.label)
			textW = max(textW, tb.Width())
			lineH = max(lineH, tb.Height())
		}
		boxW := pad + swatch + pad + textW + pad
		boxH := pad + len(entries)*(lineH+pad)

		right := cb.Right - pad
		left := right - boxW
		top := cb.Top + pad
		bottom := top + boxH

		r.SetFillColor(chart.ColorWhite)
		r.SetStrokeColor(chart.ColorLightGray)
		r.SetStrokeWidth(1)
		r.MoveTo(left, top)
		r.LineTo(right, top)
		r.LineTo(right, bottom)
		r.LineTo(left, bottom)
		r.LineTo(left, top)
		r.Close()
		r.FillStroke()

		y := top + pad
		for _, e := range entries {
			mid := y + lineH/2
			r.SetStrokeColor(e.color)
			r.SetStrokeWidth(2)
			r.MoveTo(left+pad, mid)
			r.LineTo(left+pad+swatch, mid)
			r.Stroke()

			r.SetFont(font)
			r.SetFontSize(fontSize)
			r.SetFontColor(chart.ColorBlack)
			r.Text(e.label, left+pad+swatch+pad, y+lineH)
			y += lineH + pad
		}
	}
}
