package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	reportRunStartedTotal   atomic.Uint64
	reportRunCompletedTotal atomic.Uint64
	reportRunFailedTotal    atomic.Uint64

	taskSucceededTotal atomic.Uint64
	taskFailedTotal    atomic.Uint64
	taskPartialTotal   atomic.Uint64

	directorySyncTotal atomic.Uint64

	workerJobsReceivedTotal      atomic.Uint64
	workerJobsCompletedTotal     atomic.Uint64
	workerJobsFailedTotal        atomic.Uint64
	workerJobsUnrecoverableTotal atomic.Uint64

	reportRunDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	taskExecDuration  = newHistogram([]float64{50, 100, 250, 500, 1000, 2000, 5000, 15000, 30000})
)

// IncReportRunStarted increments the started counter.
func IncReportRunStarted() {
	reportRunStartedTotal.Add(1)
}

// IncReportRunCompleted increments the completed counter.
func IncReportRunCompleted() {
	reportRunCompletedTotal.Add(1)
}

// IncReportRunFailed increments the failed counter.
func IncReportRunFailed() {
	reportRunFailedTotal.Add(1)
}

// IncTaskSucceeded increments the succeeded-task counter.
func IncTaskSucceeded() {
	taskSucceededTotal.Add(1)
}

// IncTaskFailed increments the failed-task counter.
func IncTaskFailed() {
	taskFailedTotal.Add(1)
}

// IncTaskPartial increments the partial-result counter.
func IncTaskPartial() {
	taskPartialTotal.Add(1)
}

// IncDirectorySync increments the directory sync counter.
func IncDirectorySync() {
	directorySyncTotal.Add(1)
}

// IncWorkerJobsReceived increments the received queue-job counter.
func IncWorkerJobsReceived() {
	workerJobsReceivedTotal.Add(1)
}

// IncWorkerJobsCompleted increments the completed queue-job counter.
func IncWorkerJobsCompleted() {
	workerJobsCompletedTotal.Add(1)
}

// IncWorkerJobsFailed increments the failed queue-job counter.
func IncWorkerJobsFailed() {
	workerJobsFailedTotal.Add(1)
}

// IncWorkerJobsDeletedUnrecoverable counts messages dropped because they can
// never be processed (empty, undecodable, or missing a run id).
func IncWorkerJobsDeletedUnrecoverable() {
	workerJobsUnrecoverableTotal.Add(1)
}

// ObserveReportRunDurationMs records a report run duration in milliseconds.
func ObserveReportRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	reportRunDuration.Observe(value)
}

// ObserveTaskExecDurationMs records a task execution duration in milliseconds.
func ObserveTaskExecDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	taskExecDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "report_run_started_total", "Total report runs started", reportRunStartedTotal.Load())
	writeCounter(&buf, "report_run_completed_total", "Total report runs completed", reportRunCompletedTotal.Load())
	writeCounter(&buf, "report_run_failed_total", "Total report runs failed", reportRunFailedTotal.Load())
	writeCounter(&buf, "execution_task_succeeded_total", "Total execution tasks succeeded", taskSucceededTotal.Load())
	writeCounter(&buf, "execution_task_failed_total", "Total execution tasks failed", taskFailedTotal.Load())
	writeCounter(&buf, "execution_task_partial_total", "Total execution tasks with partial results", taskPartialTotal.Load())
	writeCounter(&buf, "directory_sync_total", "Total directory sync operations", directorySyncTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total queue jobs received", workerJobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total queue jobs completed", workerJobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total queue jobs failed", workerJobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Total queue jobs dropped as unrecoverable", workerJobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "report_run_duration_ms", "Report run duration in milliseconds", reportRunDuration.Snapshot())
	writeHistogram(&buf, "execution_task_duration_ms", "Execution task duration in milliseconds", taskExecDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
