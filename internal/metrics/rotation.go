package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RotationSnapshot is the part of a rotation status report exported as gauges.
type RotationSnapshot struct {
	ActiveVersion     int
	VersionCounts     map[int]int
	LegacyRecords     int
	UnreadableRecords int
	LastCompletedAt   *time.Time
}

// RotationMetrics records rotation worker progress.
type RotationMetrics interface {
	// RecordRewrapped adds the number of records a batch moved to the active version.
	RecordRewrapped(ctx context.Context, count int)
	// RecordSnapshot replaces the per-version record gauges.
	RecordSnapshot(ctx context.Context, snapshot RotationSnapshot)
}

type rotationMetrics struct {
	rewrapped     metric.Int64Counter
	records       metric.Int64Gauge
	activeVersion metric.Int64Gauge
	lastCompleted metric.Int64Gauge
	seenVersions  map[int]struct{}
}

// NewRotationMetrics creates a RotationMetrics on meterProvider.
func NewRotationMetrics(meterProvider metric.MeterProvider, namespace string) (RotationMetrics, error) {
	meter := meterProvider.Meter(namespace)

	rewrapped, err := meter.Int64Counter(
		fmt.Sprintf("%s_rotation_rewrapped_total", namespace),
		metric.WithDescription("Total number of stored keys rewrapped onto the active key version"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rewrapped counter: %w", err)
	}

	records, err := meter.Int64Gauge(
		fmt.Sprintf("%s_stored_keys", namespace),
		metric.WithDescription("Stored keys by format and key version"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stored keys gauge: %w", err)
	}

	activeVersion, err := meter.Int64Gauge(
		fmt.Sprintf("%s_active_key_version", namespace),
		metric.WithDescription("Key version used for new encryptions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active version gauge: %w", err)
	}

	lastCompleted, err := meter.Int64Gauge(
		fmt.Sprintf("%s_rotation_last_completed_timestamp_seconds", namespace),
		metric.WithDescription("Unix time of the last finished rotation pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last completed gauge: %w", err)
	}

	return &rotationMetrics{
		rewrapped:     rewrapped,
		records:       records,
		activeVersion: activeVersion,
		lastCompleted: lastCompleted,
		seenVersions:  make(map[int]struct{}),
	}, nil
}

func (r *rotationMetrics) RecordRewrapped(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	r.rewrapped.Add(ctx, int64(count))
}

// RecordSnapshot is called from a single worker goroutine. Versions that
// disappeared since the previous snapshot are reported as zero.
func (r *rotationMetrics) RecordSnapshot(ctx context.Context, snapshot RotationSnapshot) {
	for version := range snapshot.VersionCounts {
		r.seenVersions[version] = struct{}{}
	}
	for version := range r.seenVersions {
		r.records.Record(ctx, int64(snapshot.VersionCounts[version]), metric.WithAttributes(
			attribute.String("format", "envelope"),
			attribute.String("key_version", strconv.Itoa(version)),
		))
	}
	r.records.Record(ctx, int64(snapshot.LegacyRecords), metric.WithAttributes(
		attribute.String("format", "legacy"),
		attribute.String("key_version", "none"),
	))
	r.records.Record(ctx, int64(snapshot.UnreadableRecords), metric.WithAttributes(
		attribute.String("format", "unreadable"),
		attribute.String("key_version", "none"),
	))

	r.activeVersion.Record(ctx, int64(snapshot.ActiveVersion))
	if snapshot.LastCompletedAt != nil {
		r.lastCompleted.Record(ctx, snapshot.LastCompletedAt.Unix())
	}
}

// NoOpRotationMetrics is a RotationMetrics that records nothing.
type NoOpRotationMetrics struct{}

// NewNoOpRotationMetrics creates a no-op RotationMetrics implementation.
func NewNoOpRotationMetrics() RotationMetrics {
	return &NoOpRotationMetrics{}
}

// RecordRewrapped does nothing.
func (n *NoOpRotationMetrics) RecordRewrapped(ctx context.Context, count int) {}

// RecordSnapshot does nothing.
func (n *NoOpRotationMetrics) RecordSnapshot(ctx context.Context, snapshot RotationSnapshot) {}
