package capture

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of mean FPS.
	// Example: 25 FPS mean → stable if stddev < 3.75 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// Example: 25 FPS (40ms interval) → stable if jitter < 8ms
	jitterStabilityThreshold = 0.20

	defaultMeterWindow = 250
)

// FPSStats summarizes delivery rate over a window of frame timestamps
type FPSStats struct {
	Frames     int
	Duration   time.Duration
	FPSMean    float64
	FPSStdDev  float64
	FPSMin     float64
	FPSMax     float64
	JitterMean float64 // seconds
	JitterMax  float64 // seconds
	IsStable   bool
}

// CalculateFPSStats calculates FPS statistics from frame timestamps
//
// Stability requires both:
//   - FPS stddev < 15% of mean FPS
//   - mean jitter < 20% of the expected inter-frame interval
func CalculateFPSStats(frameTimes []time.Time) FPSStats {
	n := len(frameTimes)
	if n < 2 {
		return FPSStats{Frames: n}
	}

	duration := frameTimes[n-1].Sub(frameTimes[0])
	stats := FPSStats{Frames: n, Duration: duration}
	if duration <= 0 {
		return stats
	}

	// n timestamps delimit n-1 intervals
	stats.FPSMean = float64(n-1) / duration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin = instantaneous[0]
	stats.FPSMax = instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		stats.FPSMin = math.Min(stats.FPSMin, fps)
		stats.FPSMax = math.Max(stats.FPSMax, fps)
		diff := fps - stats.FPSMean
		sumSquares += diff * diff
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(instantaneous)))

	// Jitter = deviation from the expected inter-frame interval
	expectedInterval := 1.0 / stats.FPSMean
	var jitterSum float64
	for i := 1; i < n; i++ {
		jitter := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
		jitterSum += jitter
		stats.JitterMax = math.Max(stats.JitterMax, jitter)
	}
	stats.JitterMean = jitterSum / float64(n-1)

	fpsStable := stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold
	jitterStable := stats.JitterMean < expectedInterval*jitterStabilityThreshold
	stats.IsStable = fpsStable && jitterStable

	return stats
}

// Meter records frame delivery times in a bounded ring.
// Safe for concurrent use.
type Meter struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewMeter creates a meter keeping the last window timestamps (default: 250)
func NewMeter(window int) *Meter {
	if window < 2 {
		window = defaultMeterWindow
	}
	return &Meter{times: make([]time.Time, window)}
}

// Observe records a frame delivered at t
func (m *Meter) Observe(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.times[m.next] = t
	m.next++
	if m.next == len(m.times) {
		m.next = 0
		m.full = true
	}
}

// Stats computes FPS statistics over the current window
func (m *Meter) Stats() FPSStats {
	m.mu.Lock()
	var ordered []time.Time
	if m.full {
		ordered = make([]time.Time, 0, len(m.times))
		ordered = append(ordered, m.times[m.next:]...)
		ordered = append(ordered, m.times[:m.next]...)
	} else {
		ordered = append([]time.Time(nil), m.times[:m.next]...)
	}
	m.mu.Unlock()

	return CalculateFPSStats(ordered)
}
