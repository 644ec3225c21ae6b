package xsync

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// 指标前缀使用 "xsync.*"，与 OTel Meter scope name (Meter("xsync")) 保持一致。
const (
	// metricNameConflicts 版本冲突计数器
	metricNameConflicts = "xsync.conflicts.total"
	// metricNameSweeps 清扫轮数计数器
	metricNameSweeps = "xsync.sweeps.total"
	// metricNameDegraded 后端不可达降级计数器
	metricNameDegraded = "xsync.degraded.total"
	// metricNameStaleServed 陈旧副本响应计数器
	metricNameStaleServed = "xsync.stale_served.total"
	// metricNameEventsPublished 通知发布计数器
	metricNameEventsPublished = "xsync.events.published.total"
	// metricNameEventsReceived 通知处理计数器
	metricNameEventsReceived = "xsync.events.received.total"
)

// Metrics 同步管理器的 OTel 指标收集器。
// nil 接收者安全：未配置 MeterProvider 时所有方法为空操作。
type Metrics struct {
	conflicts       metric.Int64Counter
	sweeps          metric.Int64Counter
	degraded        metric.Int64Counter
	staleServed     metric.Int64Counter
	eventsPublished metric.Int64Counter
	eventsReceived  metric.Int64Counter
}

// NewMetrics 创建指标收集器。
// meterProvider 为 nil 时返回 (nil, nil)，表示不收集指标。
func NewMetrics(meterProvider metric.MeterProvider) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xsync")
	m := &Metrics{}

	var err error
	if m.conflicts, err = meter.Int64Counter(metricNameConflicts,
		metric.WithDescription("检测并解决的版本冲突数"), metric.WithUnit("{conflict}")); err != nil {
		return nil, err
	}
	if m.sweeps, err = meter.Int64Counter(metricNameSweeps,
		metric.WithDescription("已完成的清扫轮数"), metric.WithUnit("{sweep}")); err != nil {
		return nil, err
	}
	if m.degraded, err = meter.Int64Counter(metricNameDegraded,
		metric.WithDescription("后端不可达降级次数"), metric.WithUnit("{failure}")); err != nil {
		return nil, err
	}
	if m.staleServed, err = meter.Int64Counter(metricNameStaleServed,
		metric.WithDescription("降级期间以陈旧副本响应的读取次数"), metric.WithUnit("{read}")); err != nil {
		return nil, err
	}
	if m.eventsPublished, err = meter.Int64Counter(metricNameEventsPublished,
		metric.WithDescription("已发布的变更通知数"), metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	if m.eventsReceived, err = meter.Int64Counter(metricNameEventsReceived,
		metric.WithDescription("已处理的外部变更通知数"), metric.WithUnit("{event}")); err != nil {
		return nil, err
	}
	return m, nil
}

// AddConflict 累计版本冲突。
func (m *Metrics) AddConflict(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, n)
}

// AddSweep 累计清扫轮数。
func (m *Metrics) AddSweep(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.sweeps.Add(ctx, n)
}

// AddDegraded 累计降级次数。
func (m *Metrics) AddDegraded(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.degraded.Add(ctx, n)
}

// AddStaleServed 累计陈旧副本响应次数。
func (m *Metrics) AddStaleServed(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.staleServed.Add(ctx, n)
}

// AddEventPublished 累计通知发布数。
func (m *Metrics) AddEventPublished(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.eventsPublished.Add(ctx, n)
}

// AddEventReceived 累计通知处理数。
func (m *Metrics) AddEventReceived(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.eventsReceived.Add(ctx, n)
}
