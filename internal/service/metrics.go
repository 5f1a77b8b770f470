package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var maintenanceEventsEmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trackd_maintenance_events_emitted_total",
	Help: "Maintenance-required events emitted by odometer threshold crossings.",
})
