// Package metrics метрики Prometheus агента синхронизации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesync_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"}, // "ok", "offline", "paused", "backoff", "revoked", "error"
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipesync_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesync_operations_total",
			Help: "Operations processed by the coordinator by result",
		},
		[]string{"result"}, // "acked", "duplicate", "failed", "conflict", "released"
	)

	PendingOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesync_pending_operations",
			Help: "Operations not yet acknowledged by the server",
		},
	)

	OpenConflicts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesync_open_conflicts",
			Help: "Unresolved conflicts",
		},
	)

	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesync_online",
			Help: "1 if the last connectivity check succeeded",
		},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesync_circuit_breaker_state",
			Help: "Server backoff breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	Backups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesync_backups_total",
			Help: "Backups by type and final status",
		},
		[]string{"type", "status"},
	)

	BackupBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipesync_backup_size_bytes",
			Help:    "Size of backup artifacts",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	BackupsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipesync_backups_expired_total",
			Help: "Backups expired by retention or expiresAt",
		},
	)

	Restores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesync_restores_total",
			Help: "Restores by final status",
		},
		[]string{"status"},
	)

	RestoredEntities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipesync_restored_entities_total",
			Help: "Entities processed by restores by outcome",
		},
		[]string{"outcome"}, // "created", "replaced", "merged", "renamed", "unchanged", "conflict", "failed"
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipesync_status_stream_clients",
			Help: "Connected status stream websocket clients",
		},
	)
)
