package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	TransferSubmittedTotal *prometheus.CounterVec // labels: chain, path (relayed|self_signed)
	TransferFailedTotal    *prometheus.CounterVec // labels: chain, stage
	RelayerFallbackTotal   *prometheus.CounterVec // labels: chain, reason
	RelayerHealthy         *prometheus.GaugeVec   // labels: relayer
	ProofDuration          *prometheus.HistogramVec
	FeeUnitsTotal          *prometheus.CounterVec // labels: chain, kind (relayer|protocol|gas)
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		TransferSubmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shield_transfer_submitted_total",
			Help: "Transfers broadcast on-chain, by submission path",
		}, []string{"chain", "path"}),
		TransferFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shield_transfer_failed_total",
			Help: "Transfer attempts aborted, by pipeline stage",
		}, []string{"chain", "stage"}),
		RelayerFallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shield_relayer_fallback_total",
			Help: "Relayer submissions that fell back to self-signing",
		}, []string{"chain", "reason"}),
		RelayerHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shield_relayer_healthy",
			Help: "Last observed relayer health (1 healthy, 0 not)",
		}, []string{"relayer"}),
		ProofDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shield_proof_duration_seconds",
			Help:    "Wall time of proof generation",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"chain"}),
		FeeUnitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shield_fee_units_total",
			Help: "Fee token base units charged, by fee kind",
		}, []string{"chain", "kind"}),
	}
}
