package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService Prometheus 指标；nil 接收者上所有方法都是空操作
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	reconcileTotal  *prometheus.CounterVec
	recordChanges   *prometheus.CounterVec
	monthTxDuration prometheus.Histogram
	monthCache      *prometheus.CounterVec
	importTotal     *prometheus.CounterVec
}

// NewMetricsService 注册全部指标
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP 请求总数",
		}, []string{"method", "path", "status"}),
		reconcileTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_reconcile_total",
			Help: "日程写操作次数（按类型与结果）",
		}, []string{"type", "result"}),
		recordChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_record_changes_total",
			Help: "日程记录变更条数",
		}, []string{"kind"}),
		monthTxDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedule_month_tx_duration_seconds",
			Help:    "单个月份文档事务耗时",
			Buckets: prometheus.DefBuckets,
		}),
		monthCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_month_cache_total",
			Help: "月份文档读缓存命中/未命中",
		}, []string{"result"}),
		importTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_import_total",
			Help: "表格导入次数（按结果）",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.reconcileTotal, m.recordChanges, m.monthTxDuration,
		m.monthCache, m.importTotal,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler Prometheus 抓取端点
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest 记录请求耗时与计数
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveWrite 记录一次日程写操作及其增删改条数
func (m *MetricsService) ObserveWrite(changeType string, err error, added, updated, deleted int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcileTotal.WithLabelValues(changeType, result).Inc()
	m.recordChanges.WithLabelValues("added").Add(float64(added))
	m.recordChanges.WithLabelValues("updated").Add(float64(updated))
	m.recordChanges.WithLabelValues("deleted").Add(float64(deleted))
}

// ObserveMonthTx 记录单个月份事务耗时
func (m *MetricsService) ObserveMonthTx(duration time.Duration) {
	if m == nil {
		return
	}
	m.monthTxDuration.Observe(duration.Seconds())
}

// RecordMonthCache 记录月份缓存命中情况
func (m *MetricsService) RecordMonthCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.monthCache.WithLabelValues("hit").Inc()
	} else {
		m.monthCache.WithLabelValues("miss").Inc()
	}
}

// ObserveImport 记录导入结果
func (m *MetricsService) ObserveImport(result string) {
	if m == nil {
		return
	}
	m.importTotal.WithLabelValues(result).Inc()
}
