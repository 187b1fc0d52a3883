package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub Metrics
var (
	// HubConnectedClients tracks the current number of clients attached to the hub
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_connected_clients",
			Help: "Current number of WebSocket clients attached to the hub",
		},
	)

	// HubBroadcastsTotal tracks total broadcasts fanned out to clients
	HubBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total broadcast messages fanned out to all clients",
		},
	)

	// HubSlowClientsEvicted tracks number of slow clients evicted
	HubSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total number of slow WebSocket clients evicted due to buffer full",
		},
	)

	// HubPanicsTotal tracks hub panic recoveries
	HubPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_panics_total",
			Help: "Total hub panic recoveries",
		},
	)

	// HubCommandChannelDepth tracks current command channel depth
	HubCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_command_channel_depth",
			Help: "Current command channel depth",
		},
	)

	// HubStopTimeoutsTotal tracks hub stops that exceeded timeout
	HubStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Hub stops that exceeded the shutdown timeout",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketConnectionsTotal tracks total WebSocket connection attempts by result
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total WebSocket connection attempts by result (success/error)",
		},
		[]string{"result"},
	)

	// WebSocketConnectionsRejected tracks rejected connection attempts by reason
	WebSocketConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (rate_limit/ip_limit/global_limit)",
		},
		[]string{"reason"},
	)

	// WebSocketConnectionDuration tracks WebSocket connection duration
	WebSocketConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_connection_duration_seconds",
			Help:    "WebSocket connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)

	// WebSocketMessageSendDuration tracks WebSocket message send duration
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	// WebSocketPingFailures tracks WebSocket ping failures
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures (client not responding)",
		},
	)
)

// Feed Metrics
var (
	// FeedMessagesTotal tracks inbound feed messages by type and result
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_messages_total",
			Help: "Total inbound feed messages by type and result (broadcast/snapshot/invalid/not_found/error/unknown)",
		},
		[]string{"type", "result"},
	)

	// FeedSnapshotDuration tracks how long it takes to load a full feed snapshot
	FeedSnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_snapshot_duration_seconds",
			Help:    "Feed snapshot load duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// FeedSnapshotArticles tracks the article count of the most recent snapshot
	FeedSnapshotArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_snapshot_articles",
			Help: "Number of articles in the most recently loaded feed snapshot",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks database query duration by query name
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks database errors by query name
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)

	// StoreBreakerStateChanges tracks store circuit breaker state transitions
	StoreBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_breaker_state_changes_total",
			Help: "Store circuit breaker state transitions by new state",
		},
		[]string{"state"},
	)

	// StoreBreakerState tracks current store circuit breaker state (0=closed, 1=half-open, 2=open)
	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_breaker_state",
			Help: "Current store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Go runtime and process metrics (go_*, process_*) come with the default
// registry served by promhttp on /metrics.
