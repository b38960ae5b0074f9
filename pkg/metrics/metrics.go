// Package metrics 提供 Prometheus 监控指标
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 连接指标
var (
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_connect_attempts_total",
		Help: "Connection attempts by outcome",
	}, []string{"result"})

	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_client_connected",
		Help: "Whether a transport connection is currently established",
	})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_reconnects_total",
		Help: "Connection teardowns by reason",
	}, []string{"reason"})

	SessionHandshakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_session_handshakes_total",
		Help: "Handshakes by kind (identify or resume)",
	}, []string{"kind"})
)

// 载荷指标
var (
	PayloadsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_payloads_received_total",
		Help: "Inbound payloads by opcode",
	}, []string{"op"})

	PayloadsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_payloads_sent_total",
		Help: "Outbound payloads by opcode",
	}, []string{"op"})

	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_client_decode_errors_total",
		Help: "Inbound frames dropped due to decode failure",
	})

	StreamDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_client_stream_dropped_total",
		Help: "Stream items dropped under keep-latest overflow",
	}, []string{"stream"})
)

// 心跳指标
var (
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_client_heartbeats_sent_total",
		Help: "Heartbeats written to the transport",
	})

	HeartbeatAcks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_client_heartbeat_acks_total",
		Help: "Heartbeat acknowledgements received",
	})
)

// Serve 在 addr 上暴露 /metrics
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
