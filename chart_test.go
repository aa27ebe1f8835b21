package main

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChartSizes(t *testing.T) {
	tests := []struct {
		name    string
		samples int
	}{
		{"empty", 0},
		{"single", 1},
		{"many", 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(100)
			for i := 1; i <= tt.samples; i++ {
				h.Append(sampleN(i))
			}

			img, err := RenderChart(h, 400, 250)
			require.NoError(t, err)
			assert.Equal(t, 400, img.Bounds().Dx())
			assert.Equal(t, 250, img.Bounds().Dy())
		})
	}
}

func TestRenderChartIsIdempotent(t *testing.T) {
	h := NewHistory(100)
	for i := 1; i <= 10; i++ {
		h.Append(sampleN(i))
	}

	var first, second bytes.Buffer
	require.NoError(t, EncodeChartPNG(&first, h, 400, 250))
	require.NoError(t, EncodeChartPNG(&second, h, 400, 250))
	assert.True(t, bytes.Equal(first.Bytes(), second.Bytes()), "redraw of unchanged history differs")
	assert.Equal(t, 10, h.Len())
}

func TestRenderChartChangesWithData(t *testing.T) {
	h := NewHistory(100)
	h.Append(sampleN(1))
	h.Append(sampleN(2))

	var before, after bytes.Buffer
	require.NoError(t, EncodeChartPNG(&before, h, 400, 250))
	h.Append(Sample{Elapsed: 3, Temperature: 80, Humidity: 5})
	require.NoError(t, EncodeChartPNG(&after, h, 400, 250))
	assert.False(t, bytes.Equal(before.Bytes(), after.Bytes()))
}

func TestBounds(t *testing.T) {
	lo, hi := bounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = bounds(nil, []float64{})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = bounds([]float64{5})
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 6.0, hi)

	lo, hi = bounds([]float64{math.NaN(), 5, math.Inf(1)})
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 6.0, hi)

	lo, hi = bounds([]float64{10, 20}, []float64{0, 30})
	assert.InDelta(t, -1.5, lo, 1e-9)
	assert.InDelta(t, 31.5, hi, 1e-9)

	lo, hi = bounds([]float64{1e308}, []float64{-1e308})
	assert.Less(t, lo, hi)
	assert.False(t, math.IsInf(hi-lo, 0), "span %g..%g overflows", lo, hi)

	lo, hi = bounds([]float64{math.MaxFloat64, math.MaxFloat64 * 0.9})
	assert.Less(t, lo, hi)
	assert.False(t, math.IsInf(hi, 0))
	assert.False(t, math.IsInf(hi-lo, 0))

	lo, hi = bounds([]float64{1e308})
	assert.Less(t, lo, hi)
}

func TestCompactValue(t *testing.T) {
	assert.Equal(t, "21.50", compactValue(21.5))
	assert.Equal(t, "-3.00", compactValue(-3.0))
	assert.Equal(t, "1e+308", compactValue(1e308))
	assert.Equal(t, "-1.23e+07", compactValue(-12345678.0))
}

func TestRenderChartExtremeValues(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
	}{
		{"opposite extremes", []Sample{{Elapsed: 1, Temperature: 1e308, Humidity: -1e308}}},
		{"extremes across samples", []Sample{
			{Elapsed: 1, Temperature: 1e308, Humidity: 1},
			{Elapsed: 2, Temperature: -1e308, Humidity: 2},
		}},
		{"max float", []Sample{{Elapsed: 1, Temperature: math.MaxFloat64, Humidity: -math.MaxFloat64}}},
		{"infinite", []Sample{{Elapsed: 1, Temperature: math.Inf(1), Humidity: math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory(100)
			for _, s := range tt.samples {
				h.Append(s)
			}
			img, err := RenderChart(h, 400, 250)
			require.NoError(t, err)
			assert.Equal(t, 400, img.Bounds().Dx())

			// The stored samples are untouched by drawing.
			assert.Equal(t, tt.samples[0].Temperature, h.Samples()[0].Temperature)
		})
	}
}

func TestLegendUpperRight(t *testing.T) {
	const width, height = 400, 250
	img, err := RenderChart(NewHistory(100), width, height)
	require.NoError(t, err)

	// With no samples the only coloured pixels are the legend swatches.
	for _, c := range []color.Color{tempColor, humColor} {
		pts := pixelsNear(img, c)
		require.NotEmpty(t, pts, "no swatch for %v", c)
		for _, p := range pts {
			assert.Greater(t, p.X, width/2, "swatch pixel %v not on the right", p)
			assert.Less(t, p.Y, height/2, "swatch pixel %v not at the top", p)
		}
	}
}

// pixelsNear returns the points whose colour is within a small distance of c.
func pixelsNear(img image.Image, c color.Color) []image.Point {
	want := color.NRGBAModel.Convert(c).(color.NRGBA)
	near := func(a, b uint8) bool { return max(a, b)-min(a, b) <= 16 }

	var pts []image.Point
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if got.A > 200 && near(got.R, want.R) && near(got.G, want.G) && near(got.B, want.B) {
				pts = append(pts, image.Pt(x, y))
			}
		}
	}
	return pts
}
