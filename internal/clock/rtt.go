package clock

import "sync"

// rttWindow is the number of samples kept.
const rttWindow = 5

// RTT keeps the most recent round-trip samples, in frames.
type RTT struct {
	mu      sync.Mutex
	samples [rttWindow]float64
	n       int
	next    int
}

// Add records a sample, evicting the oldest once the window is full.
func (r *RTT) Add(sample float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = sample
	r.next = (r.next + 1) % rttWindow
	if r.n < rttWindow {
		r.n++
	}
}

// Estimate averages the window after discarding its single largest sample.
// With fewer than two samples it returns their plain mean (0 when empty).
func (r *RTT) Estimate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return 0
	}

	sum, largest := 0.0, r.samples[0]
	for _, s := range r.samples[:r.n] {
		sum += s
		largest = max(largest, s)
	}
	if r.n < 2 {
		return sum / float64(r.n)
	}
	return (sum - largest) / float64(r.n-1)
}

// Len returns the number of samples held.
func (r *RTT) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Reset drops every sample.
func (r *RTT) Reset() {
	r.mu.Lock()
	r.samples = [rttWindow]float64{}
	r.n, r.next = 0, 0
	r.mu.Unlock()
}
