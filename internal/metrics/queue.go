package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/paas/internal/queue"
)

var queueJobsDesc = prometheus.NewDesc(
	"paas_queue_jobs",
	"Jobs held by each queue, by state",
	[]string{"queue", "state"}, nil,
)

// QueueCollector reports per-queue job counts at scrape time.
type QueueCollector struct {
	inspector queue.Inspector
}

func NewQueueCollector(inspector queue.Inspector) *QueueCollector {
	return &QueueCollector{inspector: inspector}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueJobsDesc
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := c.inspector.Stats("")
	if err != nil {
		ch <- prometheus.NewInvalidMetric(queueJobsDesc, err)
		return
	}
	for _, s := range stats {
		for state, n := range map[queue.State]int{
			queue.StateWaiting:   s.Counts.Waiting,
			queue.StateActive:    s.Counts.Active,
			queue.StateCompleted: s.Counts.Completed,
			queue.StateFailed:    s.Counts.Failed,
		} {
			ch <- prometheus.MustNewConstMetric(queueJobsDesc, prometheus.GaugeValue, float64(n), s.Name, string(state))
		}
	}
}
