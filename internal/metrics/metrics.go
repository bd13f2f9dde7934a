package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stark_signer"

// Metrics groups the collectors of the signing adapter. A nil *Metrics is a valid no-op.
type Metrics struct {
	Registry *prometheus.Registry

	signRequests  *prometheus.CounterVec
	deviceCalls   *prometheus.HistogramVec
	deployResults *prometheus.CounterVec
}

// New creates the collectors and registers them with a dedicated registry.
func New() (*Metrics, error) {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		signRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_requests_total",
			Help:      "Signing requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		deviceCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_call_duration_seconds",
			Help:      "Duration of device calls including physical confirmation.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation", "outcome"}),
		deployResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_deployments_total",
			Help:      "Deploy-if-absent runs by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.signRequests, m.deviceCalls, m.deployResults} {
		if err := m.Registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveSignRequest counts a finished signing request.
func (m *Metrics) ObserveSignRequest(operation string, err error) {
	if m == nil {
		return
	}
	m.signRequests.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveDeviceCall records how long a device call took.
func (m *Metrics) ObserveDeviceCall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.deviceCalls.WithLabelValues(operation, outcome(err)).Observe(d.Seconds())
}

// ObserveDeployment counts a deploy-if-absent result ("already_deployed", "deployed", "pending", "error").
func (m *Metrics) ObserveDeployment(result string) {
	if m == nil {
		return
	}
	m.deployResults.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
