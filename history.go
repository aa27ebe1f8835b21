package main

import "sync"

// DefaultCapacity is the number of samples kept in the rolling window.
const DefaultCapacity = 100

// History is a fixed-capacity FIFO of samples stored as three parallel
// series. Index i of every series refers to the same sample.
type History struct {
	mu       sync.Mutex
	capacity int
	times    []float64
	temps    []float64
	hums     []float64
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity: capacity,
		times:    make([]float64, 0, capacity),
		temps:    make([]float64, 0, capacity),
		hums:     make([]float64, 0, capacity),
	}
}

// Append adds s at the tail, evicting the oldest sample once full.
func (h *History) Append(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.times) == h.capacity {
		// Shift in place so the backing arrays never grow.
		copy(h.times, h.times[1:])
		copy(h.temps, h.temps[1:])
		copy(h.hums, h.hums[1:])
		h.times = h.times[:h.capacity-1]
		h.temps = h.temps[:h.capacity-1]
		h.hums = h.hums[:h.capacity-1]
	}
	h.times = append(h.times, s.Elapsed)
	h.temps = append(h.temps, s.Temperature)
	h.hums = append(h.hums, s.Humidity)
}

// Reset empties the window.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.times = h.times[:0]
	h.temps = h.temps[:0]
	h.hums = h.hums[:0]
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.times)
}

func (h *History) Cap() int {
	return h.capacity
}

// Latest returns the newest sample, if any.
func (h *History) Latest() (Sample, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.times)
	if n == 0 {
		return Sample{}, false
	}
	return Sample{Elapsed: h.times[n-1], Temperature: h.temps[n-1], Humidity: h.hums[n-1]}, true
}

// Samples returns a copy of the window, oldest first.
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Sample, len(h.times))
	for i := range h.times {
		out[i] = Sample{Elapsed: h.times[i], Temperature: h.temps[i], Humidity: h.hums[i]}
	}
	return out
}

// Series returns copies of the three parallel sequences.
func (h *History) Series() (times, temps, hums []float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	times = append([]float64(nil), h.times...)
	temps = append([]float64(nil), h.temps...)
	hums = append([]float64(nil), h.hums...)
	return times, temps, hums
}
