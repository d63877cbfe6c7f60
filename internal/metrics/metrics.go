// Package metrics provides Prometheus counters and gauges for the relay pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "udp2redis"

// Drop reasons reported on datagrams_dropped_total.
const (
	DropReadError   = "read_error"
	DropInvalidUTF8 = "invalid_utf8"
	DropEmpty       = "empty"
	DropMalformed   = "malformed"
	DropAmbiguous   = "ambiguous"
	DropUnknown     = "unknown_shape"
	DropSerialize   = "serialize"
	DropNoKey       = "no_key"
)

// Backend operations reported on backend_errors_total.
const (
	OpSet     = "set"
	OpPublish = "publish"
)

var (
	datagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "datagrams_received_total",
		Help:      "Datagrams read from the UDP socket",
	})

	datagramsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "datagrams_dropped_total",
		Help:      "Datagrams or envelopes discarded before reaching the backend",
	}, []string{"reason"})

	envelopesForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "envelopes_forwarded_total",
		Help:      "Envelopes handed to the publishing worker",
	}, []string{"kind"})

	envelopesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "envelopes_published_total",
		Help:      "Envelopes successfully published",
	}, []string{"kind"})

	backendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "backend_errors_total",
		Help:      "Failed backend commands",
	}, []string{"op"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "publish",
		Name:      "queue_depth",
		Help:      "Envelopes waiting between the ingestion and publishing workers",
	})

	pipelinesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "started_total",
		Help:      "Pipelines that reached the running state",
	})

	pipelinesAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "aborted_total",
		Help:      "Pipelines that failed during startup",
	}, []string{"reason"})
)

func DatagramReceived() { datagramsReceived.Inc() }

func DatagramDropped(reason string) { datagramsDropped.WithLabelValues(reason).Inc() }

func EnvelopeForwarded(kind string) { envelopesForwarded.WithLabelValues(kind).Inc() }

func EnvelopePublished(kind string) { envelopesPublished.WithLabelValues(kind).Inc() }

func BackendError(op string) { backendErrors.WithLabelValues(op).Inc() }

func QueueDepth(n int) { queueDepth.Set(float64(n)) }

func PipelineStarted() { pipelinesStarted.Inc() }

func PipelineAborted(reason string) { pipelinesAborted.WithLabelValues(reason).Inc() }
