package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveriesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch_service",
		Name:      "deliveries_created_total",
		Help:      "Number of delivery requests accepted.",
	})
	driverAssignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch_service",
		Name:      "driver_assignments_total",
		Help:      "Driver assignment attempts by result.",
	}, []string{"result"})
	statusUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch_service",
		Name:      "status_updates_total",
		Help:      "Delivery status updates by target status.",
	}, []string{"status"})
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dispatch_service",
		Name:      "ws_connections",
		Help:      "Currently open websocket connections.",
	})
	locationReports = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch_service",
		Name:      "location_reports_total",
		Help:      "Driver position reports accepted over websocket.",
	})
)

func RegisterMetrics() {
	prometheus.MustRegister(
		deliveriesCreated,
		driverAssignments,
		statusUpdates,
		wsConnections,
		locationReports,
	)
}
