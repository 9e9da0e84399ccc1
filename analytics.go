package toast

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EventMetrics tracks event-related metrics
var EventMetrics = struct {
	EventsTotal    *prometheus.CounterVec
	GatewayLatency *prometheus.GaugeVec
	MalformedTotal *prometheus.CounterVec
}{
	EventsTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_events_total",
			Help: "Total number of dispatch events received, split by identifier and event type",
		},
		[]string{"identifier", "event_type"},
	),
	GatewayLatency: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toast_gateway_latency_milliseconds",
			Help: "Gateway latency in milliseconds, measured by heartbeat",
		},
		[]string{"identifier", "shard_id"},
	),
	MalformedTotal: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_malformed_frames_total",
			Help: "Total number of frames that could not be decoded",
		},
		[]string{"identifier"},
	),
}

func RecordEvent(identifier, eventType string) {
	EventMetrics.EventsTotal.WithLabelValues(identifier, eventType).Inc()
}

func RecordMalformedFrame(identifier string) {
	EventMetrics.MalformedTotal.WithLabelValues(identifier).Inc()
}

func UpdateGatewayLatency(identifier string, shardID int32, latency float64) {
	EventMetrics.GatewayLatency.WithLabelValues(identifier, strconv.Itoa(int(shardID))).Set(latency)
}

// ShardMetrics tracks shard-related metrics
var ShardMetrics = struct {
	ManagerStatus *prometheus.GaugeVec
	ShardStatus   *prometheus.GaugeVec
	Reconnects    *prometheus.CounterVec
	Backlog       *prometheus.GaugeVec
}{
	ManagerStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toast_manager_status",
			Help: "Status of the shard manager",
		},
		[]string{"identifier"},
	),
	ShardStatus: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toast_shard_status",
			Help: "Status of the shard",
		},
		[]string{"identifier", "shard_id"},
	),
	Reconnects: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toast_shard_reconnects_total",
			Help: "Total number of shard reconnects, split by close code",
		},
		[]string{"identifier", "code"},
	),
	Backlog: promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toast_dispatch_backlog",
			Help: "Dispatch events withheld until every shard is ready",
		},
		[]string{"identifier"},
	),
}

func UpdateManagerStatus(identifier string, status ManagerStatus) {
	ShardMetrics.ManagerStatus.WithLabelValues(identifier).Set(float64(status))
}

func UpdateShardStatus(identifier string, shardID int32, status ShardStatus) {
	ShardMetrics.ShardStatus.WithLabelValues(identifier, strconv.Itoa(int(shardID))).Set(float64(status))
}

func RecordReconnect(identifier string, code int) {
	ShardMetrics.Reconnects.WithLabelValues(identifier, strconv.Itoa(code)).Inc()
}

func UpdateBacklog(identifier string, size int) {
	ShardMetrics.Backlog.WithLabelValues(identifier).Set(float64(size))
}
