package obis

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

func CreateTestClient(results ...TestResult) *TestClient {
	return &TestClient{
		results: results,
	}
}

// TestResult is one scripted answer of a TestClient.
type TestResult struct {
	Reading Reading
	Err     error
}

// TestClient is an in-memory Client. The n-th Fetch serves the n-th scripted
// result, or the last one once the script is exhausted. With no script it
// serves TestReading.
type TestClient struct {
	Delay time.Duration

	mu          sync.Mutex
	results     []TestResult
	calls       int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func TestReading() Reading {
	return Reading{
		"1.8.0":     json.Number("12345.678"),
		"2.8.0":     json.Number("2770.34"),
		"3.8.0":     json.Number("120.5"),
		"4.8.0":     json.Number("98.25"),
		"1.7.0":     "1250",
		"2.7.0":     "0",
		"16.7.0":    "1250",
		"timestamp": "2024-05-01T10:00:00",
		"uptime":    "0000:01:02:03",
		"UTC":       "2024-05-01T08:00:00Z",
	}
}

func (c *TestClient) Push(results ...TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results...)
}

func (c *TestClient) Fetch(ctx context.Context) (Reading, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		max := c.maxInFlight.Load()
		if n <= max || c.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, &CommunicationError{Err: ctx.Err()}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.results) == 0 {
		return TestReading(), nil
	}
	res := c.results[min(c.calls, len(c.results))-1]
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Reading.Clone(), nil
}

func (c *TestClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// MaxConcurrent is the highest number of Fetch calls observed in flight at once.
func (c *TestClient) MaxConcurrent() int {
	return int(c.maxInFlight.Load())
}

// ensure interface compliance
var _ Client = (*TestClient)(nil)
