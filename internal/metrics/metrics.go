package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRequestsTotal tracks remote fetches by outcome ("success" or a failure class)
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagfetch_fetch_requests_total",
			Help: "Total number of remote fetches",
		},
		[]string{"outcome"},
	)

	// FetchAttemptsTotal tracks individual upstream attempts, retries included
	FetchAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flagfetch_fetch_attempts_total",
			Help: "Total number of upstream fetch attempts",
		},
	)

	// FetchRetriesTotal tracks scheduled retries by the class of the failure that caused them
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagfetch_fetch_retries_total",
			Help: "Total number of scheduled fetch retries",
		},
		[]string{"class"},
	)

	// FetchFailuresTotal tracks final fetch failures by class
	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagfetch_fetch_failures_total",
			Help: "Total number of failed fetches",
		},
		[]string{"class"},
	)

	// FetchDuration tracks end-to-end remote fetch latency
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flagfetch_fetch_duration_seconds",
			Help:    "Remote fetch latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// CacheLookupsTotal tracks cache lookups per tier ("local", "distributed")
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flagfetch_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"tier", "result"},
	)

	// CacheCoalescedTotal tracks callers that joined an in-flight fetch instead of starting one
	CacheCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flagfetch_cache_coalesced_total",
			Help: "Total number of callers coalesced onto an in-flight fetch",
		},
	)

	// CacheEntries tracks the number of entries held by the local tier
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flagfetch_cache_entries",
			Help: "Number of entries in the local cache tier",
		},
	)
)
