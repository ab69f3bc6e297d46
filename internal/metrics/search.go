// Package metrics holds the prometheus collectors and HTTP middleware.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SearchDuration observes wall-clock time of one federated search.
	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groupdex",
		Name:      "search_duration_seconds",
		Help:      "Federated search duration in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// SearchChunks observes analytical-store iterations per search.
	SearchChunks = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groupdex",
		Name:      "search_chunks",
		Help:      "Analytical-store query iterations per search",
		Buckets:   []float64{1, 2, 3, 4, 5, 7, 10, 15, 20},
	})

	// SearchCandidates observes relational pre-filter candidate counts.
	SearchCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groupdex",
		Name:      "search_candidates",
		Help:      "Relational pre-filter candidate count per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// SearchResultRows observes scored rows returned per analytical chunk.
	SearchResultRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groupdex",
		Name:      "search_result_rows",
		Help:      "Scored rows returned per analytical chunk",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	// SearchNoCandidates counts searches terminated by an empty pre-filter.
	SearchNoCandidates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "groupdex",
		Name:      "search_no_candidates_total",
		Help:      "Searches with zero relational candidates",
	})

	// SearchTooManyCandidates counts pre-filters discarded as over cap.
	SearchTooManyCandidates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "groupdex",
		Name:      "search_too_many_candidates_total",
		Help:      "Searches whose relational pre-filter exceeded the candidate cap",
	})
)

func init() {
	prometheus.MustRegister(
		SearchDuration,
		SearchChunks,
		SearchCandidates,
		SearchResultRows,
		SearchNoCandidates,
		SearchTooManyCandidates,
	)
}
