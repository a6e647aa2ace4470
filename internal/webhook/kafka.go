package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"

	"idv/pkg/platform/circuit"
	"idv/pkg/platform/fallback"
)

const defaultDeliveryTimeout = 10 * time.Second

// Producer is the part of *kgo.Client the enqueuer needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Cluster is one delivery target. Clusters are tried in order.
type Cluster struct {
	Name     string
	Producer Producer
	Topic    string
}

// Metrics counts delivery outcomes.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Dropped   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_webhook_delivered_total",
			Help: "Webhook events delivered by cluster",
		}, []string{"cluster"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idv_webhook_dropped_total",
			Help: "Webhook events no cluster accepted",
		}),
	}
}

func (m *Metrics) delivered(cluster string) {
	if m != nil {
		m.Delivered.WithLabelValues(cluster).Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

// KafkaEnqueuer publishes events keyed by workflow so one applicant's events
// stay ordered within a partition. Enqueue returns immediately; delivery
// runs in the background and failures are logged and counted.
type KafkaEnqueuer struct {
	clusters []Cluster
	breakers []*circuit.Breaker
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	wg       sync.WaitGroup
}

// Option configures a KafkaEnqueuer.
type Option func(*KafkaEnqueuer)

func WithLogger(logger *slog.Logger) Option {
	return func(e *KafkaEnqueuer) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *KafkaEnqueuer) { e.metrics = m }
}

func WithDeliveryTimeout(d time.Duration) Option {
	return func(e *KafkaEnqueuer) { e.timeout = d }
}

func NewKafkaEnqueuer(clusters []Cluster, opts ...Option) *KafkaEnqueuer {
	e := &KafkaEnqueuer{
		clusters: clusters,
		timeout:  defaultDeliveryTimeout,
		logger:   slog.Default(),
	}
	for _, c := range clusters {
		e.breakers = append(e.breakers, circuit.New("webhook:"+c.Name))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *KafkaEnqueuer) Enqueue(ctx context.Context, events ...Event) {
	if len(events) == 0 {
		return
	}
	deliveryCtx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for _, ev := range events {
			e.deliver(deliveryCtx, ev)
		}
	}()
}

func (e *KafkaEnqueuer) deliver(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to encode webhook event", "event_id", ev.ID, "error", err)
		e.metrics.dropped()
		return
	}

	providers := make([]fallback.Provider[string], 0, len(e.clusters))
	for i, c := range e.clusters {
		providers = append(providers, fallback.Provider[string]{
			Name:    c.Name,
			Breaker: e.breakers[i],
			Call: func(ctx context.Context) (string, error) {
				rec := &kgo.Record{
					Topic: c.Topic,
					Key:   []byte(ev.WorkflowID.String()),
					Value: payload,
					Headers: []kgo.RecordHeader{
						{Key: "event_kind", Value: []byte(ev.Kind)},
						{Key: "tenant_id", Value: []byte(ev.TenantID.String())},
					},
				}
				if err := c.Producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
					return "", fmt.Errorf("produce to %s: %w", c.Name, err)
				}
				return c.Name, nil
			},
		})
	}

	used, _, err := fallback.Run(ctx, fallback.Policy{Logger: e.logger}, providers)
	if err != nil {
		e.logger.ErrorContext(ctx, "webhook delivery failed",
			"event_id", ev.ID,
			"event_kind", string(ev.Kind),
			"workflow_id", ev.WorkflowID.String(),
			"error", err,
		)
		e.metrics.dropped()
		return
	}
	e.metrics.delivered(used)
}

// Close waits for in-flight deliveries.
func (e *KafkaEnqueuer) Close() {
	e.wg.Wait()
}
