// Package metrics provides shared constants for metric definitions.
package metrics

import "time"

// Exponential histogram bucket parameters. Collectors share these triples so
// related histograms stay comparable across dashboards.
const (
	// BucketStart1ms with factor 2 over 12 buckets spans 1ms to ~4s, which
	// covers pipeline stage and request latencies.
	BucketStart1ms = 0.001
	// BucketStart100B with factor 10 over 6 buckets spans 100B to ~100MB,
	// which covers upload payload sizes.
	BucketStart100B = 100.0

	BucketFactor2  = 2
	BucketFactor10 = 10

	BucketCount6  = 6
	BucketCount8  = 8
	BucketCount12 = 12
)

const (
	// ShutdownTimeout bounds the metrics endpoint's graceful shutdown.
	ShutdownTimeout = 5 * time.Second
	// MillisecondsPerSecond converts second-denominated durations for
	// millisecond gauges.
	MillisecondsPerSecond = 1000.0
)
