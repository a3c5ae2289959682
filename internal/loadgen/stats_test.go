package loadgen

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/whisper/moderator/internal/verdict"
)

func TestPercentiles(t *testing.T) {
	var ds []time.Duration
	for i := 100; i >= 1; i-- {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	p := percentiles(ds)
	assert.Equal(t, 100, p.N)
	assert.Equal(t, 51*time.Millisecond, p.P50)
	assert.Equal(t, 95*time.Millisecond, p.P95)
	assert.Equal(t, 99*time.Millisecond, p.P99)
	assert.Equal(t, 100*time.Millisecond, p.Max)
	assert.Equal(t, 50500*time.Microsecond, p.Avg)

	assert.Equal(t, Percentiles{}, percentiles(nil))
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.AddSent()
			switch i % 5 {
			case 0:
				c.AddError()
			case 1:
				c.AddTimeout()
			default:
				c.AddResult(verdict.Hide, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	s := c.Summary()
	assert.Equal(t, 50, s.Sent)
	assert.Equal(t, 30, s.Received)
	assert.Equal(t, 10, s.Errors)
	assert.Equal(t, 10, s.Timeouts)
	assert.Equal(t, 30, s.Verdicts[verdict.Hide])
}

func TestReport(t *testing.T) {
	c := NewCollector()
	c.AddSent()
	c.AddResult(verdict.Ban, 2*time.Millisecond)

	var buf bytes.Buffer
	c.Report(&buf)
	out := buf.String()
	assert.Contains(t, out, "Received:     1")
	assert.Contains(t, out, "BAN")
	assert.Contains(t, out, "p99: 2ms")
}
