package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpenRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coedit_open_rooms",
		Help: "Number of document rooms with at least one participant.",
	})

	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coedit_participants",
		Help: "Number of connected participants across all rooms.",
	})

	RelayedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coedit_relayed_events_total",
		Help: "Events relayed to room members, by event type.",
	}, []string{"type"})

	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coedit_dropped_events_total",
		Help: "Inbound events dropped before relay, by reason.",
	}, []string{"reason"})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coedit_saves_total",
		Help: "Document save checkpoints, by outcome.",
	}, []string{"status"})
)
