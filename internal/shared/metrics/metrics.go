// Package metrics keeps process-local counters for the mock-PDF flow and
// renders them in the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// counterVec is a counter split by one label. An empty label name makes it a
// plain counter.
type counterVec struct {
	name  string
	help  string
	label string

	mu     sync.Mutex
	values map[string]*atomic.Uint64
}

func (c *counterVec) inc(value string) {
	c.mu.Lock()
	v, ok := c.values[value]
	if !ok {
		v = new(atomic.Uint64)
		c.values[value] = v
	}
	c.mu.Unlock()
	v.Add(1)
}

func (c *counterVec) write(w io.Writer) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
	c.mu.Lock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	slices.Sort(keys)

	if c.label == "" {
		var total uint64
		for _, k := range keys {
			total += c.load(k)
		}
		fmt.Fprintf(w, "%s %d\n", c.name, total)
		return
	}
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s=%q} %d\n", c.name, c.label, k, c.load(k))
	}
}

func (c *counterVec) load(k string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[k].Load()
}

var registry []*counterVec

func counter(name, help string) *counterVec { return labelled(name, help, "") }

func labelled(name, help, label string) *counterVec {
	c := &counterVec{name: name, help: help, label: label, values: map[string]*atomic.Uint64{}}
	registry = append(registry, c)
	return c
}

var (
	requestsCreated = labelled("mockpdf_requests_created_total", "Generation requests accepted", "pricing")
	jobsStarted     = counter("mockpdf_jobs_started_total", "Generation jobs moved to processing")
	jobsCompleted   = counter("mockpdf_jobs_completed_total", "Generation jobs completed")
	jobsFailed      = labelled("mockpdf_jobs_failed_total", "Generation jobs failed", "error_code")

	paymentOrders   = counter("mockpdf_payment_orders_created_total", "Payment orders created")
	paymentCaptures = counter("mockpdf_payment_captures_total", "Payments captured and verified")
	captureFailures = labelled("mockpdf_payment_capture_failures_total", "Payment captures rejected", "reason")

	workerMessages = labelled("mockpdf_worker_messages_total", "Queue messages handled by the worker", "outcome")

	generationDuration = newHistogram("mockpdf_generation_duration_ms", "Bundle generation duration in milliseconds",
		[]float64{250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000})
)

// IncBundleRequestCreated counts accepted generation requests by how they
// were priced.
func IncBundleRequestCreated(free bool) {
	if free {
		requestsCreated.inc("free")
		return
	}
	requestsCreated.inc("paid")
}

func IncBundleJobStarted()   { jobsStarted.inc("") }
func IncBundleJobCompleted() { jobsCompleted.inc("") }

// IncBundleJobFailed counts a failed job under its stored error code.
func IncBundleJobFailed(code string) { jobsFailed.inc(orUnknown(code)) }

func IncPaymentOrderCreated() { paymentOrders.inc("") }
func IncPaymentCaptured()     { paymentCaptures.inc("") }

// IncPaymentCaptureFailed counts a rejected capture, e.g. "invalid_signature".
func IncPaymentCaptureFailed(reason string) { captureFailures.inc(orUnknown(reason)) }

// Worker outcomes. Received is counted once per delivery, before the verdict.
func IncWorkerJobsReceived()             { workerMessages.inc("received") }
func IncWorkerJobsCompleted()            { workerMessages.inc("completed") }
func IncWorkerJobsFailed()               { workerMessages.inc("failed") }
func IncWorkerJobsDeletedUnrecoverable() { workerMessages.inc("dropped") }

// ObserveGenerationDurationMs records one generation run. Negative values
// count as zero.
func ObserveGenerationDurationMs(value float64) {
	generationDuration.Observe(max(0, value))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render writes every registered metric.
func Render() string {
	var b strings.Builder
	for _, c := range registry {
		c.write(&b)
	}
	generationDuration.write(&b)
	return b.String()
}

func orUnknown(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unknown"
	}
	return v
}

type histogram struct {
	name, help string

	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(name, help string, buckets []float64) *histogram {
	return &histogram{name: name, help: help, buckets: buckets, counts: make([]uint64, len(buckets))}
}

// Observe stores value in the first bucket whose bound is >= value.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if i, _ := slices.BinarySearch(h.buckets, value); i < len(h.buckets) {
		h.counts[i]++
	}
}

// write emits cumulative bucket counts.
func (h *histogram) write(w io.Writer) {
	h.mu.Lock()
	counts := slices.Clone(h.counts)
	sum, count := h.sum, h.count
	h.mu.Unlock()

	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += counts[i]
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, count)
	fmt.Fprintf(w, "%s_sum %s\n", h.name, formatFloat(sum))
	fmt.Fprintf(w, "%s_count %d\n", h.name, count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
