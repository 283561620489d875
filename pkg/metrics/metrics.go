// Package metrics exposes Prometheus counters and gauges for the
// reservation engine. Collectors are registered at init so the sweep
// daemon's /metrics endpoint serves them without further wiring.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeviceCommandTotal counts CLI commands sent to devices, by the
	// device address and outcome.
	DeviceCommandTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blab_device_command_total",
		Help: "CLI commands issued to switches and backbones.",
	}, []string{"device", "outcome"})

	// DeviceCommandDuration observes command round-trip time.
	DeviceCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blab_device_command_duration_seconds",
		Help:    "Round-trip time of device CLI commands.",
		Buckets: prometheus.DefBuckets,
	}, []string{"device"})

	// OperationTotal counts lifecycle operations by name and outcome.
	OperationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blab_operation_total",
		Help: "Reservation and link lifecycle operations.",
	}, []string{"operation", "outcome"})

	// OperationDuration observes end-to-end lifecycle operation time,
	// including device provisioning and verification retries.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "blab_operation_duration_seconds",
		Help:    "End-to-end duration of lifecycle operations.",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	// ActiveReservations tracks the number of reserved switches.
	ActiveReservations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blab_active_reservations",
		Help: "Switches currently reserved.",
	})

	// ActiveLinks tracks the number of provisioned links.
	ActiveLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "blab_active_links",
		Help: "Links currently provisioned on the backbone.",
	})

	// SweepReleasedTotal counts reservations released by the expiry
	// sweep.
	SweepReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blab_sweep_released_total",
		Help: "Reservations released because their end date passed.",
	})

	// SweepErrorsTotal counts sweep release attempts that failed.
	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blab_sweep_errors_total",
		Help: "Expired reservations the sweep failed to release.",
	})
)

// ObserveOperation records one lifecycle operation.
func ObserveOperation(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	OperationTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveDeviceCommand records one device command round trip.
func ObserveDeviceCommand(device string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	DeviceCommandTotal.WithLabelValues(device, outcome).Inc()
	DeviceCommandDuration.WithLabelValues(device).Observe(time.Since(start).Seconds())
}
