package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality; no per-player or per-room labels.
var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pong_rooms_active",
		Help: "Currently registered rooms",
	})

	tournamentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pong_tournaments_active",
		Help: "Currently live tournament brackets",
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pong_ticks_total",
		Help: "Total simulation ticks across all rooms",
	})

	broadcastsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pong_broadcasts_suppressed_total",
		Help: "Ticks whose snapshot matched the previous one and were not broadcast",
	})

	inputsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pong_inputs_rejected_total",
		Help: "Inputs dropped by the per-connection rate limiter",
	})
)

// RecordTick observes one room tick and whether it changed the snapshot.
func RecordTick(changed bool) {
	ticksTotal.Inc()
	if !changed {
		broadcastsSuppressed.Inc()
	}
}

// UpdateRooms sets the active-rooms gauge.
func UpdateRooms(n int) {
	roomsActive.Set(float64(n))
}

// UpdateTournaments sets the live-brackets gauge.
func UpdateTournaments(n int) {
	tournamentsActive.Set(float64(n))
}

// RecordInputRejected counts a rate-limited input.
func RecordInputRejected() {
	inputsRejected.Inc()
}
