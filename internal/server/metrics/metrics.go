// Package metrics collects the Prometheus counters of the auth and users
// services and exposes them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by interceptors, services and
// background workers.
type Recorder interface {
	RecordAuthDecision(outcome string)
	RecordLogin(outcome string)
	RecordRevocation(inserted bool)
	RecordOutboxPublished(count int)
	RecordOutboxFailure()
	RecordReplicaApplied(applied bool)
	RecordReplicaFailure()
	RecordPruned(count int64)
}

type Collector struct {
	authDecisions    *prometheus.CounterVec
	logins           *prometheus.CounterVec
	revocations      *prometheus.CounterVec
	outboxPublished  prometheus.Counter
	outboxFailures   prometheus.Counter
	replicaApplied   *prometheus.CounterVec
	replicaFailures  prometheus.Counter
	revocationPruned prometheus.Counter
}

// NewCollector creates the collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamflow_auth_decisions_total",
			Help: "Authorization decisions by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamflow_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamflow_revocations_total",
			Help: "Revoke calls, split by whether a ledger row was created.",
		}, []string{"result"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamflow_outbox_published_total",
			Help: "Identity events handed off to the broker.",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamflow_outbox_publish_failures_total",
			Help: "Failed identity event publish attempts.",
		}),
		replicaApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamflow_replica_events_total",
			Help: "Identity events processed by the replica, split by applied or skipped.",
		}, []string{"result"}),
		replicaFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamflow_replica_failures_total",
			Help: "Identity events that failed to apply and were redelivered.",
		}),
		revocationPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streamflow_revocations_pruned_total",
			Help: "Expired revocation entries removed by the pruner.",
		}),
	}

	reg.MustRegister(
		c.authDecisions,
		c.logins,
		c.revocations,
		c.outboxPublished,
		c.outboxFailures,
		c.replicaApplied,
		c.replicaFailures,
		c.revocationPruned,
	)

	return c
}

func (c *Collector) RecordAuthDecision(outcome string) {
	c.authDecisions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRevocation(inserted bool) {
	c.revocations.WithLabelValues(result(inserted, "inserted", "duplicate")).Inc()
}

func (c *Collector) RecordOutboxPublished(count int) {
	c.outboxPublished.Add(float64(count))
}

func (c *Collector) RecordOutboxFailure() {
	c.outboxFailures.Inc()
}

func (c *Collector) RecordReplicaApplied(applied bool) {
	c.replicaApplied.WithLabelValues(result(applied, "applied", "skipped")).Inc()
}

func (c *Collector) RecordReplicaFailure() {
	c.replicaFailures.Inc()
}

func (c *Collector) RecordPruned(count int64) {
	c.revocationPruned.Add(float64(count))
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordAuthDecision(string) {}
func (Nop) RecordLogin(string)        {}
func (Nop) RecordRevocation(bool)     {}
func (Nop) RecordOutboxPublished(int) {}
func (Nop) RecordOutboxFailure()      {}
func (Nop) RecordReplicaApplied(bool) {}
func (Nop) RecordReplicaFailure()     {}
func (Nop) RecordPruned(int64)        {}
