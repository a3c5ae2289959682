// Package loadgen collects latency and verdict statistics while the bench
// command drives comments through a running moderator over NATS.
package loadgen

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/whisper/moderator/internal/verdict"
)

// Collector aggregates results from many sender goroutines. All methods are
// goroutine-safe.
type Collector struct {
	mu        sync.Mutex
	latencies []time.Duration
	verdicts  map[verdict.Verdict]int
	sent      int
	errors    int
	timeouts  int
	startTime time.Time
}

// NewCollector creates a Collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		verdicts:  make(map[verdict.Verdict]int),
		startTime: time.Now(),
	}
}

// AddSent records a published request.
func (c *Collector) AddSent() {
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
}

// AddResult records a result and its round-trip latency.
func (c *Collector) AddResult(v verdict.Verdict, d time.Duration) {
	c.mu.Lock()
	c.latencies = append(c.latencies, d)
	c.verdicts[v]++
	c.mu.Unlock()
}

// AddError increments the error counter.
func (c *Collector) AddError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// AddTimeout records a request whose result never arrived.
func (c *Collector) AddTimeout() {
	c.mu.Lock()
	c.timeouts++
	c.mu.Unlock()
}

// Percentiles summarises a latency distribution.
type Percentiles struct {
	Avg, P50, P95, P99, Max time.Duration
	N                       int
}

// Summary is a point-in-time copy of the collected data.
type Summary struct {
	Elapsed  time.Duration
	Sent     int
	Received int
	Errors   int
	Timeouts int
	Verdicts map[verdict.Verdict]int
	Latency  Percentiles
}

// Summary copies the current state.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	verdicts := make(map[verdict.Verdict]int, len(c.verdicts))
	for v, n := range c.verdicts {
		verdicts[v] = n
	}
	return Summary{
		Elapsed:  time.Since(c.startTime),
		Sent:     c.sent,
		Received: len(c.latencies),
		Errors:   c.errors,
		Timeouts: c.timeouts,
		Verdicts: verdicts,
		Latency:  percentiles(append([]time.Duration(nil), c.latencies...)),
	}
}

// Report writes a formatted summary to w.
func (c *Collector) Report(w io.Writer) {
	s := c.Summary()

	fmt.Fprintln(w, "\n=== Bench Results ===")
	fmt.Fprintf(w, "Duration:     %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Sent:         %d\n", s.Sent)
	fmt.Fprintf(w, "Received:     %d\n", s.Received)
	fmt.Fprintf(w, "Errors:       %d\n", s.Errors)
	fmt.Fprintf(w, "Timeouts:     %d\n", s.Timeouts)
	if s.Elapsed > 0 && s.Received > 0 {
		fmt.Fprintf(w, "Throughput:   %.1f/s\n", float64(s.Received)/s.Elapsed.Seconds())
	}

	if s.Received > 0 {
		fmt.Fprintln(w, "\n--- Verdicts ---")
		for _, v := range verdict.All {
			if n := s.Verdicts[v]; n > 0 {
				fmt.Fprintf(w, "  %-13s %d\n", v, n)
			}
		}

		p := s.Latency
		fmt.Fprintln(w, "\n--- Result Latency ---")
		fmt.Fprintf(w, "  avg: %v  p50: %v  p95: %v  p99: %v  max: %v  (n=%d)\n",
			p.Avg.Round(time.Microsecond),
			p.P50.Round(time.Microsecond),
			p.P95.Round(time.Microsecond),
			p.P99.Round(time.Microsecond),
			p.Max.Round(time.Microsecond),
			p.N,
		)
	}
	fmt.Fprintln(w)
}

// percentiles sorts durations in place.
func percentiles(durations []time.Duration) Percentiles {
	n := len(durations)
	if n == 0 {
		return Percentiles{}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return Percentiles{
		Avg: sum / time.Duration(n),
		P50: durations[n/2],
		P95: durations[int(math.Ceil(float64(n)*0.95))-1],
		P99: durations[int(math.Ceil(float64(n)*0.99))-1],
		Max: durations[n-1],
		N:   n,
	}
}
