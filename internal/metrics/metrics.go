// Package metrics holds in-memory usage counters. The Metrics value is
// injected wherever counting happens, so nothing in the pipeline depends on a
// process-wide singleton. Counters reset on restart; persistent metrics are a
// job for whatever scrapes the /metrics endpoint.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const latencyWindow = 1000

type Metrics struct {
	totalRequests  atomic.Int64
	totalSessions  atomic.Int64
	questionsAsked atomic.Int64
	llmCalls       atomic.Int64
	llmErrors      atomic.Int64
	uploads        atomic.Int64

	mu             sync.Mutex
	errorsByKind   map[string]int64
	latencySamples []float64

	startTime time.Time
}

func New() *Metrics {
	return &Metrics{
		errorsByKind: map[string]int64{},
		startTime:    time.Now(),
	}
}

func (m *Metrics) RecordRequest()  { m.totalRequests.Add(1) }
func (m *Metrics) RecordSession()  { m.totalSessions.Add(1) }
func (m *Metrics) RecordQuestion() { m.questionsAsked.Add(1) }
func (m *Metrics) RecordUpload()   { m.uploads.Add(1) }

func (m *Metrics) RecordLLMCall(success bool) {
	m.llmCalls.Add(1)
	if !success {
		m.llmErrors.Add(1)
	}
}

func (m *Metrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByKind[kind]++
}

// RecordLatency keeps a bounded window of recent request latencies.
func (m *Metrics) RecordLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySamples = append(m.latencySamples, ms)
	if len(m.latencySamples) > latencyWindow {
		m.latencySamples = m.latencySamples[len(m.latencySamples)-latencyWindow:]
	}
}

// Snapshot is the serializable view served by GET /metrics.
type Snapshot struct {
	UptimeSeconds  int64            `json:"uptime_seconds"`
	TotalRequests  int64            `json:"total_requests"`
	TotalSessions  int64            `json:"total_sessions"`
	QuestionsAsked int64            `json:"questions_asked"`
	LLMCalls       int64            `json:"llm_calls"`
	LLMErrors      int64            `json:"llm_errors"`
	Uploads        int64            `json:"pdf_uploads"`
	ErrorsByKind   map[string]int64 `json:"errors_by_kind"`
	Latency        LatencyStats     `json:"latency_ms"`
}

type LatencyStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		TotalRequests:  m.totalRequests.Load(),
		TotalSessions:  m.totalSessions.Load(),
		QuestionsAsked: m.questionsAsked.Load(),
		LLMCalls:       m.llmCalls.Load(),
		LLMErrors:      m.llmErrors.Load(),
		Uploads:        m.uploads.Load(),
		ErrorsByKind:   make(map[string]int64, len(m.errorsByKind)),
	}
	for k, v := range m.errorsByKind {
		snap.ErrorsByKind[k] = v
	}

	if n := len(m.latencySamples); n > 0 {
		snap.Latency.Count = n
		snap.Latency.Min = m.latencySamples[0]
		snap.Latency.Max = m.latencySamples[0]
		sum := 0.0
		for _, s := range m.latencySamples {
			sum += s
			if s < snap.Latency.Min {
				snap.Latency.Min = s
			}
			if s > snap.Latency.Max {
				snap.Latency.Max = s
			}
		}
		snap.Latency.Avg = sum / float64(n)
	}
	return snap
}
