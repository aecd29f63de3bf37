// Package metrics 同步引擎的 Prometheus 指标。所有方法对 nil 接收者安全，测试里可以不注入
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lundasync"

type Metrics struct {
	registry        *prometheus.Registry
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	tournaments     *prometheus.CounterVec
	playersCreated  prometheus.Counter
	pendingCreated  prometheus.Counter
	pendingResolved *prometheus.CounterVec
	archived        *prometheus.CounterVec
	eventsDropped   prometheus.Counter
}

// New 在独立 registry 上注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_runs_total", Help: "同步批次数，按最终状态",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sync_run_duration_seconds", Help: "同步批次耗时",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		tournaments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tournaments_processed_total", Help: "处理的快照赛事，按结果",
		}, []string{"result"}),
		playersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "players_created_total", Help: "新建选手数",
		}),
		pendingCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pending_created_total", Help: "新建待确认记录数",
		}),
		pendingResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pending_resolved_total", Help: "人工处理的待确认记录，按动作",
		}, []string{"action"}),
		archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tournaments_archived_total", Help: "归档赛事数，按原因",
		}, []string{"reason"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total", Help: "投递失败或被限流丢弃的外发事件",
		}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.tournaments, m.playersCreated, m.pendingCreated,
		m.pendingResolved, m.archived, m.eventsDropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

// TournamentProcessed result: created / updated / failed / invalid
func (m *Metrics) TournamentProcessed(result string) {
	if m == nil {
		return
	}
	m.tournaments.WithLabelValues(result).Inc()
}

func (m *Metrics) PlayersCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.playersCreated.Add(float64(n))
}

func (m *Metrics) PendingCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingCreated.Add(float64(n))
}

func (m *Metrics) PendingResolved(action string) {
	if m == nil {
		return
	}
	m.pendingResolved.WithLabelValues(action).Inc()
}

// Archived reason: aged / absent
func (m *Metrics) Archived(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.archived.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
