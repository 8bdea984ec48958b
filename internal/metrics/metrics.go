// Package metrics counts what a script server does: peers accepted,
// commands run in each wire mode, input round trips, bytes moved,
// connect-back retries and errors.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

type counter int

const (
	peersActive counter = iota
	peersTotal
	lineCommands
	jsonCommands
	failedCommands
	inputRequests
	bytesIn
	bytesOut
	reconnects
	errorCount

	numCounters
)

// Collector tracks runtime metrics for one server process.
type Collector struct {
	counters [numCounters]atomic.Int64
	started  time.Time

	mu      sync.Mutex
	lastErr string
	lastAt  time.Time
}

// New creates a collector whose uptime starts now.
func New() *Collector {
	return &Collector{started: time.Now()}
}

func (c *Collector) add(k counter, n int64) {
	if c == nil {
		return
	}
	c.counters[k].Add(n)
}

func (c *Collector) get(k counter) int64 {
	if c == nil {
		return 0
	}
	return c.counters[k].Load()
}

// ConnectionOpened records an accepted or injected peer.
func (c *Collector) ConnectionOpened() {
	c.add(peersActive, 1)
	c.add(peersTotal, 1)
}

// ConnectionClosed records a peer teardown.
func (c *Collector) ConnectionClosed() { c.add(peersActive, -1) }

// ActiveConnections returns the number of open peers.
func (c *Collector) ActiveConnections() int64 { return c.get(peersActive) }

// TotalConnections returns the lifetime peer count.
func (c *Collector) TotalConnections() int64 { return c.get(peersTotal) }

// CommandSubmitted records one command handed to the engine, read in
// JSON mode when jsonMode is set.
func (c *Collector) CommandSubmitted(jsonMode bool) {
	if jsonMode {
		c.add(jsonCommands, 1)
		return
	}
	c.add(lineCommands, 1)
}

// CommandFailed records a command that completed unsuccessfully.
func (c *Collector) CommandFailed() { c.add(failedCommands, 1) }

// Commands returns the total and failed command counts.
func (c *Collector) Commands() (total, failed int64) {
	return c.get(lineCommands) + c.get(jsonCommands), c.get(failedCommands)
}

// InputRequested records an input: or inputnp: prompt sent to a peer.
func (c *Collector) InputRequested() { c.add(inputRequests, 1) }

// BytesReceived records n bytes read from a peer.
func (c *Collector) BytesReceived(n int64) { c.add(bytesIn, n) }

// BytesSent records n bytes written to a peer.
func (c *Collector) BytesSent(n int64) { c.add(bytesOut, n) }

// Reconnect records a retried connect-back dial.
func (c *Collector) Reconnect() { c.add(reconnects, 1) }

// RecordError counts an error and remembers it as the most recent.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.add(errorCount, 1)
	c.mu.Lock()
	c.lastErr = msg
	c.lastAt = time.Now()
	c.mu.Unlock()
}

// ErrorCount returns the number of errors recorded.
func (c *Collector) ErrorCount() int64 { return c.get(errorCount) }

// Snapshot is a point-in-time view of the counters, shaped for the
// Stats action.
type Snapshot struct {
	Uptime string `json:"uptime"`
	Peers  struct {
		Active int64 `json:"active"`
		Total  int64 `json:"total"`
	} `json:"peers"`
	Commands struct {
		Line   int64 `json:"line"`
		JSON   int64 `json:"json"`
		Failed int64 `json:"failed"`
	} `json:"commands"`
	InputRequests int64 `json:"input_requests"`
	Bytes         struct {
		In  int64 `json:"in"`
		Out int64 `json:"out"`
	} `json:"bytes"`
	Reconnects int64 `json:"reconnects"`
	Errors     struct {
		Count int64  `json:"count"`
		Last  string `json:"last,omitempty"`
		At    string `json:"at,omitempty"`
	} `json:"errors"`
}

// Snapshot copies the current counters.
func (c *Collector) Snapshot() Snapshot {
	var s Snapshot
	if c == nil {
		return s
	}
	s.Uptime = time.Since(c.started).Truncate(time.Second).String()
	s.Peers.Active = c.get(peersActive)
	s.Peers.Total = c.get(peersTotal)
	s.Commands.Line = c.get(lineCommands)
	s.Commands.JSON = c.get(jsonCommands)
	s.Commands.Failed = c.get(failedCommands)
	s.InputRequests = c.get(inputRequests)
	s.Bytes.In = c.get(bytesIn)
	s.Bytes.Out = c.get(bytesOut)
	s.Reconnects = c.get(reconnects)
	s.Errors.Count = c.get(errorCount)

	c.mu.Lock()
	if !c.lastAt.IsZero() {
		s.Errors.Last = c.lastErr
		s.Errors.At = c.lastAt.Format(time.RFC3339)
	}
	c.mu.Unlock()
	return s
}

// JSON returns the snapshot as one line of JSON.
func (c *Collector) JSON() string {
	data, _ := json.Marshal(c.Snapshot())
	return string(data)
}
