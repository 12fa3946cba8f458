// Package metrics counts transaction scopes with Prometheus collectors.
package metrics

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"txctl/internal/errs"
	"txctl/internal/txcontrol"
)

const namespace = "txctl"

type Recorder struct {
	begun     *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewRecorder registers the transaction collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		begun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_begun_total",
			Help:      "Transaction scopes begun, by propagation.",
		}, []string{"propagation"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_completed_total",
			Help:      "Transaction scopes completed, by propagation and final status.",
		}, []string{"propagation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scope_duration_seconds",
			Help:      "Time from scope begin to completion.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"propagation"}),
	}

	for _, c := range []prometheus.Collector{r.begun, r.completed, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errs.Wrap(err, "register transaction metrics")
		}
	}
	return r, nil
}

// Listener observes every scope a Control begins.
func (r *Recorder) Listener() txcontrol.ContextListener {
	return func(_ context.Context, p txcontrol.Propagation, tc txcontrol.TransactionContext) {
		label := p.String()
		r.begun.WithLabelValues(label).Inc()

		started := time.Now()
		_ = tc.PostCompletion(func(status txcontrol.Status) error {
			r.completed.WithLabelValues(label, status.String()).Inc()
			r.duration.WithLabelValues(label).Observe(time.Since(started).Seconds())
			return nil
		})
	}
}

// WriteText dumps everything g gathers in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errs.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errs.Wrap(err, "write metrics")
		}
	}
	return nil
}
